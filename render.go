package rushtpl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ----------------------------- Renderer -------------------------------------

const (
	fragmentComponent = "Fragment"
	localeKey         = "$locale"
	metaKey           = "$meta"
	slotsKey          = "$slots"
	childrenKey       = "$children"
	contentKey        = "content"
	contentAliasKey   = "$content"
)

// renderer walks a node tree on the calling goroutine. One renderer serves a
// single top-level render call.
type renderer struct {
	ctx      context.Context
	registry *Registry
	loader   *Loader
	log      *slog.Logger
	debug    bool
	maxDepth int
	depth    int
}

func (r *renderer) render(w io.Writer, nodes []Node, data Context) error {
	for _, n := range nodes {
		if err := r.renderNode(w, n, data); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(w io.Writer, n Node, data Context) error {
	switch n := n.(type) {
	case Text:
		_, err := io.WriteString(w, n.Content)
		return err
	case Variable:
		return r.renderVariable(w, n, data)
	case Helper:
		return r.renderHelper(w, n, data)
	case Block:
		if n.Kind == BlockEach {
			return r.renderEach(w, n, data)
		}
		if truthy(r.eval(n.Expr, data)) {
			return r.render(w, n.Children, data)
		}
		return nil
	case Component:
		return r.renderComponent(w, n, data)
	case Partial:
		return r.renderPartial(w, n, data)
	case Layout:
		return r.renderLayout(w, n, data)
	case nil:
		return nil
	default:
		return fmt.Errorf("rushtpl: unsupported node %T", n)
	}
}

// miss records a non-fatal problem: a diagnostic comment in debug mode,
// nothing otherwise.
func (r *renderer) miss(w io.Writer, format string, args ...any) error {
	if !r.debug {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	r.log.Debug("render issue", slog.String("detail", msg))
	_, err := io.WriteString(w, diagnostic("%s", msg))
	return err
}

func writeValue(w io.Writer, v any, escape bool) error {
	if s, ok := v.(SafeHTML); ok {
		_, err := io.WriteString(w, string(s))
		return err
	}
	s := toString(v)
	if escape {
		s = htmlEscapeFast(s)
	}
	_, err := io.WriteString(w, s)
	return err
}

// resolveArg applies the helper argument rules to one token.
func resolveArg(tok string, data Context) any {
	switch tok {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil", "undefined":
		return nil
	}
	if isQuoted(tok) {
		return unquote(tok)
	}
	if n, ok := numberLiteral(tok); ok {
		return n
	}
	if isPath(tok) {
		v, _ := data.Lookup(tok)
		return v
	}
	return tok
}

func resolveArgs(toks []string, data Context) []any {
	args := make([]any, len(toks))
	for i, t := range toks {
		args[i] = resolveArg(t, data)
	}
	return args
}

// eval resolves a block expression: a path, or a helper call such as
// `eq status "active"`.
func (r *renderer) eval(expr string, data Context) any {
	fields := splitFieldsFast(expr)
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return resolveArg(fields[0], data)
	}
	fn, ok := r.registry.Helper(fields[0])
	if !ok {
		return nil
	}
	v, err := callHelper(fn, data, resolveArgs(fields[1:], data))
	if err != nil {
		r.log.Debug("helper failed", slog.String("helper", fields[0]), slog.Any("error", err))
		return nil
	}
	return v
}

func (r *renderer) renderVariable(w io.Writer, n Variable, data Context) error {
	v, ok := data.Lookup(n.Path)
	if !ok {
		// a bare name such as {{ now }} calls the helper without arguments
		if fn, found := r.registry.Helper(n.Path); found {
			hv, err := callHelper(fn, data, nil)
			if err != nil {
				return r.miss(w, "helper %q: %v", n.Path, err)
			}
			v, ok = hv, true
		}
	}
	if !ok && len(n.Filters) == 0 {
		return r.miss(w, "unresolved %q", n.Path)
	}
	for _, f := range n.Filters {
		args := resolveArgs(f.Args, data)
		filter, helper := r.registry.pipe(f.Name)
		var err error
		switch {
		case filter != nil:
			v, err = callFilter(filter, v, args)
		case helper != nil:
			v, err = callHelper(helper, data, append([]any{v}, args...))
		default:
			return r.miss(w, "unknown filter %q", f.Name)
		}
		if err != nil {
			return r.miss(w, "filter %q: %v", f.Name, err)
		}
	}
	return writeValue(w, v, n.Escape)
}

func (r *renderer) renderHelper(w io.Writer, n Helper, data Context) error {
	fn, ok := r.registry.Helper(n.Name)
	if !ok {
		return r.miss(w, "unknown helper %q", n.Name)
	}
	v, err := callHelper(fn, data, resolveArgs(n.Args, data))
	if err != nil {
		return r.miss(w, "helper %q: %v", n.Name, err)
	}
	return writeValue(w, v, n.Escape)
}

func (r *renderer) renderEach(w io.Writer, n Block, data Context) error {
	seq, ok := toSlice(r.eval(n.Expr, data))
	if !ok {
		return nil
	}
	alias := n.Alias
	if alias == "" {
		alias = "this"
	}
	for i, el := range seq {
		elemKeys, _ := toMap(el)
		meta := map[string]any{
			alias:     el,
			"this":    el,
			"@index":  i,
			"@first":  i == 0,
			"@last":   i == len(seq)-1,
			"@length": len(seq),
		}
		if err := r.render(w, n.Children, data.With(elemKeys, meta)); err != nil {
			return err
		}
	}
	return nil
}

// props evaluates prop values. A nameless expression prop contributes the
// keys of the map it resolves to.
func (r *renderer) props(props []Prop, data Context, skip string) map[string]any {
	out := make(map[string]any, len(props))
	for _, p := range props {
		if p.Name == skip && skip != "" {
			continue
		}
		if p.Kind == PropLiteral {
			out[p.Name] = p.Value
			continue
		}
		v := r.eval(p.Value, data)
		if p.Name == "" {
			if m, ok := toMap(v); ok {
				for k, mv := range m {
					out[k] = mv
				}
			}
			continue
		}
		out[p.Name] = v
	}
	return out
}

func (r *renderer) propString(props []Prop, name string, data Context) string {
	p, ok := findProp(props, name)
	if !ok {
		return ""
	}
	if p.Kind == PropLiteral {
		return p.Value
	}
	return toString(r.eval(p.Value, data))
}

// load resolves a reference. Failures of any kind become a nil result;
// storage errors are only logged in debug mode.
func (r *renderer) load(kind Kind, name string) *ParseResult {
	pr, err := r.loader.Load(r.ctx, kind, name)
	if err != nil {
		if r.debug {
			r.log.Warn("loading reference failed",
				slog.String("kind", kind.String()),
				slog.String("name", name),
				slog.Any("error", err))
		}
		return nil
	}
	return pr
}

// enter bounds recursion through partials, components and layouts.
func (r *renderer) enter() bool {
	if r.depth >= r.maxDepth {
		return false
	}
	r.depth++
	return true
}

func (r *renderer) leave() { r.depth-- }

func (r *renderer) renderPartial(w io.Writer, n Partial, data Context) error {
	pr := r.load(KindPartial, n.Name)
	if pr == nil {
		return r.miss(w, "partial %q not found", n.Name)
	}
	if !r.enter() {
		return r.miss(w, "partial %q exceeds max depth %d", n.Name, r.maxDepth)
	}
	defer r.leave()
	return r.render(w, pr.Nodes, data.With(r.props(n.Props, data, "")))
}

// capture renders nodes into a string that is written unescaped later.
func (r *renderer) capture(nodes []Node, data Context) (SafeHTML, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := r.render(buf, nodes, data); err != nil {
		return "", err
	}
	return SafeHTML(buf.String()), nil
}

// slotName reads the slot prop of a component's child. Brace-wrapped
// values are evaluated against the caller's data.
func (r *renderer) slotName(n Node, data Context) string {
	var props []Prop
	switch n := n.(type) {
	case Component:
		props = n.Props
	case Partial:
		props = n.Props
	case Layout:
		props = n.Props
	default:
		return ""
	}
	return r.propString(props, "slot", data)
}

func (r *renderer) renderComponent(w io.Writer, n Component, data Context) error {
	if n.Name == fragmentComponent {
		return r.render(w, n.Children, data)
	}
	pr := r.load(KindComponent, n.Name)
	if pr == nil {
		return r.miss(w, "component %q not found", n.Name)
	}
	if !r.enter() {
		return r.miss(w, "component %q exceeds max depth %d", n.Name, r.maxDepth)
	}
	defer r.leave()

	var all strings.Builder
	buckets := map[string]*strings.Builder{"default": {}}
	for _, child := range n.Children {
		html, err := r.capture([]Node{child}, data)
		if err != nil {
			return err
		}
		all.WriteString(string(html))
		name := r.slotName(child, data)
		if name == "" {
			name = "default"
		}
		b, ok := buckets[name]
		if !ok {
			b = &strings.Builder{}
			buckets[name] = b
		}
		b.WriteString(string(html))
	}
	slots := make(map[string]any, len(buckets))
	for name, b := range buckets {
		slots[name] = SafeHTML(b.String())
	}

	scope := data.With(r.props(n.Props, data, ""), map[string]any{
		slotsKey:    slots,
		childrenKey: SafeHTML(all.String()),
	})
	return r.render(w, pr.Nodes, scope)
}

func (r *renderer) renderLayout(w io.Writer, n Layout, data Context) error {
	name := r.propString(n.Props, "name", data)
	pr := r.load(KindLayout, name)
	if pr == nil {
		return r.miss(w, "layout %q not found", name)
	}
	if !r.enter() {
		return r.miss(w, "layout %q exceeds max depth %d", name, r.maxDepth)
	}
	defer r.leave()

	content, err := r.capture(n.Children, data)
	if err != nil {
		return err
	}
	scope := data.With(r.props(n.Props, data, "name"), map[string]any{
		contentKey:      content,
		contentAliasKey: content,
	})
	return r.renderResult(w, pr, scope)
}

// renderResult renders a template or layout, binding its frontmatter as
// $meta and wrapping it in the layout its frontmatter names.
func (r *renderer) renderResult(w io.Writer, pr *ParseResult, data Context) error {
	if len(pr.Metadata.Frontmatter) > 0 {
		data = data.With(map[string]any{metaKey: pr.Metadata.Frontmatter})
	}
	if pr.Metadata.Layout == "" {
		return r.render(w, pr.Nodes, data)
	}
	wrapper := Layout{
		Props:    []Prop{{Name: "name", Value: pr.Metadata.Layout, Kind: PropLiteral}},
		Children: pr.Nodes,
	}
	return r.renderLayout(w, wrapper, data)
}
