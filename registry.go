package rushtpl

import (
	"fmt"
	"sort"
	"sync"
)

// ----------------------------- Helpers & filters ----------------------------

// HelperFunc is called for `{{ name arg... }}`. Arguments are already resolved
// against the render context. Helpers run synchronously on the rendering
// goroutine; a helper that needs I/O blocks until its result is ready.
type HelperFunc func(ctx Context, args ...any) (any, error)

// FilterFunc transforms a piped value: `{{ value | name arg... }}`.
type FilterFunc func(value any, args ...any) (any, error)

// Registry maps names to helpers and filters. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	helpers map[string]HelperFunc
	filters map[string]FilterFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		helpers: make(map[string]HelperFunc),
		filters: make(map[string]FilterFunc),
	}
}

// RegisterHelper adds or replaces a helper.
func (r *Registry) RegisterHelper(name string, fn HelperFunc) {
	r.mu.Lock()
	r.helpers[name] = fn
	r.mu.Unlock()
}

// RegisterFilter adds or replaces a filter.
func (r *Registry) RegisterFilter(name string, fn FilterFunc) {
	r.mu.Lock()
	r.filters[name] = fn
	r.mu.Unlock()
}

// Helper returns the helper registered under name.
func (r *Registry) Helper(name string) (HelperFunc, bool) {
	r.mu.RLock()
	fn, ok := r.helpers[name]
	r.mu.RUnlock()
	return fn, ok
}

// Filter returns the filter registered under name. Without one, a helper of
// the same name is adapted with the piped value as its first argument.
func (r *Registry) Filter(name string) (FilterFunc, bool) {
	r.mu.RLock()
	fn, ok := r.filters[name]
	h, hok := r.helpers[name]
	r.mu.RUnlock()
	if ok {
		return fn, true
	}
	if !hok {
		return nil, false
	}
	return func(value any, args ...any) (any, error) {
		return h(nil, append([]any{value}, args...)...)
	}, true
}

// pipe returns the filter for name, or the same-named helper when no filter exists.
func (r *Registry) pipe(name string) (FilterFunc, HelperFunc) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.filters[name]; ok {
		return fn, nil
	}
	return nil, r.helpers[name]
}

// Names lists every registered helper and filter name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	seen := make(map[string]bool, len(r.helpers)+len(r.filters))
	for n := range r.helpers {
		seen[n] = true
	}
	for n := range r.filters {
		seen[n] = true
	}
	r.mu.RUnlock()
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// callHelper invokes fn and turns a panic into an error.
func callHelper(fn HelperFunc, ctx Context, args []any) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx, args...)
}

func callFilter(fn FilterFunc, value any, args []any) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(value, args...)
}

// ----- argument accessors -----

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func argString(args []any, i int, def string) string {
	if i < len(args) && args[i] != nil {
		return toString(args[i])
	}
	return def
}

func argFloat(args []any, i int, def float64) float64 {
	if i < len(args) {
		if f, ok := toNumber(args[i]); ok {
			return f
		}
	}
	return def
}

func argInt(args []any, i int, def int) int {
	return int(argFloat(args, i, float64(def)))
}

// stringHelper adapts a func(string) string to a helper over its first argument.
func stringHelper(fn func(string) string) HelperFunc {
	return func(_ Context, args ...any) (any, error) {
		return fn(argString(args, 0, "")), nil
	}
}
