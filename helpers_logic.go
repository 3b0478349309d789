package rushtpl

import (
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/ohler55/ojg/jp"
)

// looseEqual treats numbers of any Go type as equal by value and compares
// strings against their text form.
func looseEqual(a, b any) bool {
	if isNumeric(a) || isNumeric(b) {
		fa, aok := toNumber(a)
		fb, bok := toNumber(b)
		if aok && bok {
			return fa == fb
		}
	}
	switch a.(type) {
	case string, SafeHTML:
		if b != nil {
			return toString(a) == toString(b)
		}
	}
	return reflect.DeepEqual(a, b)
}

func compareHelper(test func(c int, eq bool) bool) HelperFunc {
	return func(_ Context, args ...any) (any, error) {
		a, b := arg(args, 0), arg(args, 1)
		return test(compareValues(a, b), looseEqual(a, b)), nil
	}
}

func andHelper(_ Context, args ...any) (any, error) {
	if len(args) == 0 {
		return false, nil
	}
	for _, a := range args {
		if !truthy(a) {
			return false, nil
		}
	}
	return true, nil
}

func orHelper(_ Context, args ...any) (any, error) {
	for _, a := range args {
		if truthy(a) {
			return true, nil
		}
	}
	return false, nil
}

func notHelper(_ Context, args ...any) (any, error) {
	return !truthy(arg(args, 0)), nil
}

// defaultHelper returns the fallback when value is missing, nil or an
// empty string. Empty sequences and maps are values.
func defaultHelper(_ Context, args ...any) (any, error) {
	v := arg(args, 0)
	switch v := v.(type) {
	case nil:
		return arg(args, 1), nil
	case string:
		if v == "" {
			return arg(args, 1), nil
		}
	case SafeHTML:
		if v == "" {
			return arg(args, 1), nil
		}
	}
	return v, nil
}

const maxJSONIndent = 10

func jsonHelper(_ Context, args ...any) (any, error) {
	indent := min(argInt(args, 1, 2), maxJSONIndent)
	var (
		b   []byte
		err error
	)
	if indent <= 0 {
		b, err = json.Marshal(arg(args, 0))
	} else {
		b, err = json.MarshalIndent(arg(args, 0), "", strings.Repeat(" ", indent))
	}
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func uuidHelper(_ Context, _ ...any) (any, error) {
	return uuid.NewString(), nil
}

// jsonpathHelper evaluates a JSONPath expression such as "$.items[*].name".
// A single match is returned as-is, several as a sequence.
func jsonpathHelper(_ Context, args ...any) (any, error) {
	x, err := jp.ParseString(argString(args, 1, "$"))
	if err != nil {
		return nil, err
	}
	data := normalizeJSON(arg(args, 0))
	res := x.Get(data)
	switch len(res) {
	case 0:
		return nil, nil
	case 1:
		return res[0], nil
	}
	return res, nil
}

// normalizeJSON converts typed maps and slices into the generic shapes the
// JSONPath evaluator walks.
func normalizeJSON(v any) any {
	switch x := v.(type) {
	case nil, string, bool, float64, int, int64, map[string]any, []any:
		return x
	case Context:
		return map[string]any(x)
	}
	if m, ok := toMap(v); ok {
		return m
	}
	if s, ok := toSlice(v); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
