package rushtpl

import (
	"maps"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// ----------------------------- Context resolver -----------------------------

// Context is the data a template renders against. A render never mutates a
// Context; nested scopes are derived with With.
type Context map[string]any

// Lookup resolves a dot-path such as "user.name", "items.0.title" or
// "items[0]". Segments descend through maps with string keys, exported struct
// fields (case-insensitive), pointers, and slice indexes. "length" on a slice
// or string yields its length.
func (c Context) Lookup(path string) (any, bool) {
	if v, ok := c[path]; ok {
		return v, true
	}
	return compilePath(path).from(c)
}

// With returns a new Context holding c overlaid with each layer in order.
func (c Context) With(layers ...map[string]any) Context {
	n := len(c)
	for _, l := range layers {
		n += len(l)
	}
	out := make(Context, n)
	maps.Copy(out, c)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// lookupValue resolves path starting from an arbitrary value.
func lookupValue(root any, path string) (any, bool) {
	if path == "" || path == "this" {
		return root, root != nil
	}
	return compilePath(path).from(root)
}

type step interface{ next(in any) (any, bool) }

// fieldStep selects a map key, struct field or, when name is numeric, a slice index.
type fieldStep struct {
	name  string
	index int
}

func newFieldStep(name string) fieldStep {
	idx := -1
	if n, err := strconv.Atoi(name); err == nil && n >= 0 {
		idx = n
	}
	return fieldStep{name: name, index: idx}
}

func (s fieldStep) next(in any) (any, bool) {
	switch m := in.(type) {
	case Context:
		v, ok := m[s.name]
		return v, ok
	case map[string]any:
		v, ok := m[s.name]
		return v, ok
	case []any:
		if s.index >= 0 && s.index < len(m) {
			return m[s.index], true
		}
		if s.name == "length" {
			return len(m), true
		}
		return nil, false
	case string:
		if s.name == "length" {
			return utf8.RuneCountInString(m), true
		}
		return nil, false
	}

	rv := reflect.ValueOf(in)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		idx, ok := structField(rv.Type(), s.name)
		if !ok {
			return nil, false
		}
		fv, err := rv.FieldByIndexErr(idx)
		if err != nil || !fv.CanInterface() {
			return nil, false
		}
		return fv.Interface(), true
	case reflect.Map:
		kt := rv.Type().Key()
		if kt.Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(s.name).Convert(kt))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Slice, reflect.Array:
		if s.index >= 0 && s.index < rv.Len() {
			return rv.Index(s.index).Interface(), true
		}
		if s.name == "length" {
			return rv.Len(), true
		}
	case reflect.String:
		if s.name == "length" {
			return utf8.RuneCountInString(rv.String()), true
		}
	}
	return nil, false
}

type indexStep struct{ idx int }

func (s indexStep) next(in any) (any, bool) {
	return fieldStep{name: strconv.Itoa(s.idx), index: s.idx}.next(in)
}

type keyStep struct{ key string }

func (s keyStep) next(in any) (any, bool) {
	return fieldStep{name: s.key, index: -1}.next(in)
}

// ----------------------------- Struct field cache ---------------------------

type fieldKey struct {
	typ  reflect.Type
	name string
}

type fieldInfo struct {
	index []int
	found bool
}

var fieldCache sync.Map // fieldKey -> fieldInfo

func structField(t reflect.Type, name string) ([]int, bool) {
	key := fieldKey{typ: t, name: name}
	if fi, ok := fieldCache.Load(key); ok {
		info := fi.(fieldInfo)
		return info.index, info.found
	}
	sf, ok := t.FieldByName(name)
	if !ok {
		sf, ok = t.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
	}
	info := fieldInfo{found: ok && sf.IsExported()}
	if info.found {
		info.index = sf.Index
	}
	fieldCache.Store(key, info)
	return info.index, info.found
}

// ----------------------------- Path compiler --------------------------------

// accessor is a compiled dot-path.
type accessor struct {
	steps []step
}

func (a accessor) from(root any) (any, bool) {
	cur := root
	for _, st := range a.steps {
		v, ok := st.next(cur)
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

var pathCache sync.Map // string -> accessor

func compilePath(path string) accessor {
	if acc, ok := pathCache.Load(path); ok {
		return acc.(accessor)
	}
	acc := accessor{steps: parseSteps(fastTrim(path))}
	pathCache.Store(path, acc)
	return acc
}

func parseSteps(path string) []step {
	var steps []step
	rest := path
	for rest != "" {
		var name string
		var idxSteps []step
		name, rest, idxSteps = scanDotted(rest)
		if name != "" {
			steps = append(steps, newFieldStep(name))
		}
		steps = append(steps, idxSteps...)
	}
	return steps
}

// scanDotted reads one segment plus any [n] or ["key"] suffixes.
func scanDotted(s string) (ident string, rest string, idxSteps []step) {
	i := 0
	for i < len(s) && s[i] != '.' && s[i] != '[' {
		i++
	}
	ident = s[:i]
	j := i
	for j < len(s) {
		switch s[j] {
		case '[':
			k := j + 1
			if k < len(s) && (s[k] == '"' || s[k] == '\'') {
				q := s[k]
				k++
				start := k
				for k < len(s) && s[k] != q {
					k++
				}
				idxSteps = append(idxSteps, keyStep{key: s[start:k]})
				k++
				if k < len(s) && s[k] == ']' {
					k++
				}
				j = k
				continue
			}
			start := k
			for k < len(s) && isDigit(s[k]) {
				k++
			}
			if k > start {
				idx, _ := strconv.Atoi(s[start:k])
				idxSteps = append(idxSteps, indexStep{idx: idx})
			}
			for k < len(s) && s[k] != ']' {
				k++
			}
			if k < len(s) {
				k++
			}
			j = k
		case '.':
			return ident, s[j+1:], idxSteps
		default:
			return ident, s[j:], idxSteps
		}
	}
	return ident, "", idxSteps
}
