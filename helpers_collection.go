package rushtpl

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"
)

func firstHelper(_ Context, args ...any) (any, error) {
	seq, _ := toSlice(arg(args, 0))
	if len(seq) == 0 {
		return nil, nil
	}
	return seq[0], nil
}

func lastHelper(_ Context, args ...any) (any, error) {
	seq, _ := toSlice(arg(args, 0))
	if len(seq) == 0 {
		return nil, nil
	}
	return seq[len(seq)-1], nil
}

// sliceBounds clamps start and end like a JavaScript slice: negative values
// count from the end.
func sliceBounds(n, start, end int) (int, int) {
	clamp := func(i int) int {
		if i < 0 {
			i += n
		}
		return max(0, min(i, n))
	}
	start, end = clamp(start), clamp(end)
	if end < start {
		end = start
	}
	return start, end
}

func sliceHelper(_ Context, args ...any) (any, error) {
	v := arg(args, 0)
	if s, ok := v.(string); ok {
		rs := []rune(s)
		start, end := sliceBounds(len(rs), argInt(args, 1, 0), argInt(args, 2, len(rs)))
		return string(rs[start:end]), nil
	}
	seq, ok := toSlice(v)
	if !ok {
		return nil, fmt.Errorf("slice: %T is not a sequence", v)
	}
	start, end := sliceBounds(len(seq), argInt(args, 1, 0), argInt(args, 2, len(seq)))
	return seq[start:end], nil
}

// compareValues orders numbers numerically and everything else as text.
func compareValues(a, b any) int {
	fa, aok := toNumber(a)
	fb, bok := toNumber(b)
	if aok && bok && (isNumeric(a) || isNumeric(b)) {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(toString(a), toString(b))
}

func sortByHelper(_ Context, args ...any) (any, error) {
	seq, ok := toSlice(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("sortBy: %T is not a sequence", arg(args, 0))
	}
	key := argString(args, 1, "")
	out := make([]any, len(seq))
	copy(out, seq)
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := lookupValue(out[i], key)
		b, _ := lookupValue(out[j], key)
		return compareValues(a, b) < 0
	})
	return out, nil
}

func reverseHelper(_ Context, args ...any) (any, error) {
	v := arg(args, 0)
	if s, ok := v.(string); ok {
		rs := []rune(s)
		for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
			rs[i], rs[j] = rs[j], rs[i]
		}
		return string(rs), nil
	}
	seq, ok := toSlice(v)
	if !ok {
		return nil, fmt.Errorf("reverse: %T is not a sequence", v)
	}
	out := make([]any, len(seq))
	for i, el := range seq {
		out[len(seq)-1-i] = el
	}
	return out, nil
}

func joinHelper(_ Context, args ...any) (any, error) {
	seq, ok := toSlice(arg(args, 0))
	if !ok {
		return toString(arg(args, 0)), nil
	}
	parts := make([]string, len(seq))
	for i, el := range seq {
		parts[i] = toString(el)
	}
	return strings.Join(parts, argString(args, 1, ",")), nil
}

func uniqueHelper(_ Context, args ...any) (any, error) {
	seq, ok := toSlice(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("unique: %T is not a sequence", arg(args, 0))
	}
	seen := make(map[string]bool, len(seq))
	out := make([]any, 0, len(seq))
	for _, el := range seq {
		key := fmt.Sprintf("%T:%s", el, toString(el))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, el)
	}
	return out, nil
}

// filterHelper keeps elements whose key is truthy, whose key equals value, or
// for which a func(any) bool predicate returns true.
func filterHelper(_ Context, args ...any) (any, error) {
	seq, ok := toSlice(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("filter: %T is not a sequence", arg(args, 0))
	}
	var keep func(any) bool
	switch pred := arg(args, 1).(type) {
	case func(any) bool:
		keep = pred
	case nil:
		keep = truthy
	default:
		key := toString(pred)
		if len(args) > 2 {
			want := args[2]
			keep = func(el any) bool {
				v, _ := lookupValue(el, key)
				return looseEqual(v, want)
			}
		} else {
			keep = func(el any) bool {
				v, _ := lookupValue(el, key)
				return truthy(v)
			}
		}
	}
	out := make([]any, 0, len(seq))
	for _, el := range seq {
		if keep(el) {
			out = append(out, el)
		}
	}
	return out, nil
}

func mapHelper(_ Context, args ...any) (any, error) {
	seq, ok := toSlice(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("map: %T is not a sequence", arg(args, 0))
	}
	key := argString(args, 1, "")
	out := make([]any, len(seq))
	for i, el := range seq {
		out[i], _ = lookupValue(el, key)
	}
	return out, nil
}

func lengthHelper(_ Context, args ...any) (any, error) {
	switch v := arg(args, 0).(type) {
	case nil:
		return 0, nil
	case string:
		return utf8.RuneCountInString(v), nil
	}
	rv := reflect.ValueOf(arg(args, 0))
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len(), nil
	case reflect.String:
		return utf8.RuneCountInString(rv.String()), nil
	}
	return 0, nil
}

func keysHelper(_ Context, args ...any) (any, error) {
	m, ok := toMap(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("keys: %T is not a map", arg(args, 0))
	}
	keys := sortedKeys(m)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out, nil
}

func valuesHelper(_ Context, args ...any) (any, error) {
	m, ok := toMap(arg(args, 0))
	if !ok {
		return nil, fmt.Errorf("values: %T is not a map", arg(args, 0))
	}
	keys := sortedKeys(m)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out, nil
}

func hasHelper(_ Context, args ...any) (any, error) {
	if m, ok := toMap(arg(args, 0)); ok {
		_, found := m[argString(args, 1, "")]
		return found, nil
	}
	if seq, ok := toSlice(arg(args, 0)); ok {
		for _, el := range seq {
			if looseEqual(el, arg(args, 1)) {
				return true, nil
			}
		}
	}
	return false, nil
}
