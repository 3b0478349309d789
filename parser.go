package rushtpl

import (
	"strings"
)

// ----------------------------- Parser ---------------------------------------

// closer identifies the tag that ends an open block or component.
type closer struct {
	syntax byte // 'm' mustache, 'a' angle-percent, 't' component tag
	name   string
}

type parser struct {
	src   string
	i     int
	debug bool
	open  []closer
	// openers known to run to EOF unclosed, by source offset
	unclosed map[int]bool
}

// Parse turns template text into a node tree. It never fails: malformed
// markup is kept as literal text.
func Parse(text string) *ParseResult {
	return parse(text, false)
}

// ParseDebug is Parse, except malformed markup becomes an HTML comment
// describing the problem.
func ParseDebug(text string) *ParseResult {
	return parse(text, true)
}

func parse(text string, debug bool) *ParseResult {
	fm, body := splitFrontmatter(text)
	p := &parser{src: body, debug: debug}
	nodes, _ := p.parseNodes()
	return &ParseResult{Nodes: nodes, Metadata: collectMetadata(nodes, fm)}
}

func (p *parser) eof() bool { return p.i >= len(p.src) }

// nextMarker returns the offset of the next `{{`, `<%`, `<Name` or `</Name`.
func (p *parser) nextMarker() int {
	s := p.src
	for j := p.i; j+1 < len(s); j++ {
		switch s[j] {
		case '{':
			if s[j+1] == '{' {
				return j
			}
		case '<':
			c := s[j+1]
			if c == '%' || isUpper(c) {
				return j
			}
			if c == '/' && j+2 < len(s) && isUpper(s[j+2]) {
				return j
			}
		}
	}
	return -1
}

// parseNodes reads nodes until EOF or the closer of the innermost open block.
// closed is false when input ended, or an outer block's closer was reached,
// before the innermost block closed.
func (p *parser) parseNodes() (nodes []Node, closed bool) {
	nodes = make([]Node, 0, 8)
	for !p.eof() {
		j := p.nextMarker()
		if j < 0 {
			nodes = appendText(nodes, p.src[p.i:])
			p.i = len(p.src)
			break
		}
		nodes = appendText(nodes, p.src[p.i:j])
		p.i = j

		var n Node
		var c *closer
		switch {
		case strings.HasPrefix(p.src[j:], "{{"):
			n, c, nodes = p.parseMustache(nodes)
		case strings.HasPrefix(p.src[j:], "<%"):
			n, c, nodes = p.parseAngle(nodes)
		case p.src[j+1] == '/':
			c, nodes = p.parseCloseTag(nodes)
		default:
			n, nodes = p.parseComponent(nodes)
		}

		if c != nil {
			switch p.closerDepth(*c) {
			case 0:
				return nodes, true
			case -1:
				// stray closer; the literal was already emitted
			default:
				p.i = j
				return nodes, false
			}
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, len(p.open) == 0
}

// closerDepth is 0 when c closes the innermost block, its distance when it
// closes an outer block, and -1 when nothing open matches.
func (p *parser) closerDepth(c closer) int {
	for d := 0; d < len(p.open); d++ {
		if p.open[len(p.open)-1-d] == c {
			return d
		}
	}
	return -1
}

// degrade emits the literal source of a malformed construct, or a diagnostic
// in debug mode, and resumes scanning after it.
func (p *parser) degrade(nodes []Node, start, end int, format string, args ...any) []Node {
	p.i = end
	if p.debug {
		return append(nodes, Text{Content: diagnostic(format, args...)})
	}
	return appendText(nodes, p.src[start:end])
}

// children parses the body of a block opened with c. On failure the opener is
// degraded and scanning restarts right after it.
func (p *parser) children(nodes []Node, c closer, start, openEnd int, what string) ([]Node, []Node, bool) {
	if !p.unclosed[start] {
		p.open = append(p.open, c)
		body, closed := p.parseNodes()
		p.open = p.open[:len(p.open)-1]
		if closed {
			return nodes, body, true
		}
		if p.eof() {
			if p.unclosed == nil {
				p.unclosed = make(map[int]bool)
			}
			p.unclosed[start] = true
		}
	}
	return p.degrade(nodes, start, openEnd, "unclosed %s", what), nil, false
}

// ----- Mustache -----

func (p *parser) parseMustache(nodes []Node) (Node, *closer, []Node) {
	start := p.i
	if strings.HasPrefix(p.src[start:], "{{{") {
		end := strings.Index(p.src[start+3:], "}}}")
		if end < 0 {
			return nil, nil, p.degrade(nodes, start, start+3, "unterminated {{{")
		}
		inner := fastTrim(p.src[start+3 : start+3+end])
		p.i = start + 3 + end + 3
		if inner == "" {
			return nil, nil, p.degrade(nodes, start, p.i, "empty tag")
		}
		return expressionNode(inner, false), nil, nodes
	}

	end := strings.Index(p.src[start+2:], "}}")
	if end < 0 {
		return nil, nil, p.degrade(nodes, start, start+2, "unterminated {{")
	}
	inner := fastTrim(p.src[start+2 : start+2+end])
	tagEnd := start + 2 + end + 2
	p.i = tagEnd

	switch {
	case inner == "":
		return nil, nil, p.degrade(nodes, start, tagEnd, "empty tag")
	case inner[0] == '!':
		return nil, nil, nodes
	case inner[0] == '/':
		c := closer{syntax: 'm', name: fastTrim(inner[1:])}
		if p.closerDepth(c) < 0 {
			return nil, nil, p.degrade(nodes, start, tagEnd, "unexpected {{/%s}}", c.name)
		}
		return nil, &c, nodes
	case inner[0] == '>':
		fields := splitFieldsFast(inner[1:])
		if len(fields) == 0 {
			return nil, nil, p.degrade(nodes, start, tagEnd, "partial without a name")
		}
		return Partial{Name: unquote(fields[0]), Props: parseProps(fields[1:])}, nil, nodes
	case inner[0] == '#':
		return p.parseMustacheBlock(nodes, inner[1:], start, tagEnd)
	}
	return expressionNode(inner, true), nil, nodes
}

func (p *parser) parseMustacheBlock(nodes []Node, tag string, start, tagEnd int) (Node, *closer, []Node) {
	keyword, rest, _ := strings.Cut(fastTrim(tag), " ")
	rest = fastTrim(rest)

	var block Block
	switch keyword {
	case "if":
		if rest == "" {
			return nil, nil, p.degrade(nodes, start, tagEnd, "{{#if}} without a condition")
		}
		block = Block{Kind: BlockIf, Expr: rest}
	case "each":
		expr, alias, ok := parseEachExpr(rest)
		if !ok {
			return nil, nil, p.degrade(nodes, start, tagEnd, "malformed {{#each %s}}", rest)
		}
		block = Block{Kind: BlockEach, Expr: expr, Alias: alias}
	default:
		return nil, nil, p.degrade(nodes, start, tagEnd, "unknown block {{#%s}}", keyword)
	}

	nodes, body, ok := p.children(nodes, closer{syntax: 'm', name: keyword}, start, tagEnd, "{{#"+keyword+"}}")
	if !ok {
		return nil, nil, nodes
	}
	block.Children = body
	return block, nil, nodes
}

// parseEachExpr accepts "items", "items as item", "items as |item|" and "item in items".
func parseEachExpr(s string) (expr, alias string, ok bool) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 1:
		return fields[0], "this", true
	case len(fields) == 3 && fields[1] == "as":
		return fields[0], strings.Trim(fields[2], "|"), true
	case len(fields) == 3 && fields[1] == "in":
		return fields[2], fields[0], true
	}
	return "", "", false
}

// expressionNode classifies tag content as a variable, a piped variable or a
// helper call.
func expressionNode(inner string, escape bool) Node {
	if isPath(inner) {
		return Variable{Path: inner, Escape: escape}
	}
	segments := splitOutsideQuotes(inner, '|')
	if len(segments) > 1 {
		if head := fastTrim(segments[0]); isPath(head) {
			v := Variable{Path: head, Escape: escape}
			for _, seg := range segments[1:] {
				if fc, ok := parseFilterCall(seg); ok {
					v.Filters = append(v.Filters, fc)
				}
			}
			return v
		}
	}
	fields := splitFieldsFast(inner)
	if len(fields) > 1 {
		return Helper{Name: fields[0], Args: fields[1:], Escape: escape}
	}
	return Variable{Path: inner, Escape: escape}
}

// parseFilterCall reads "name arg arg" or "name:arg:arg".
func parseFilterCall(seg string) (FilterCall, bool) {
	seg = fastTrim(seg)
	if seg == "" {
		return FilterCall{}, false
	}
	fields := splitFieldsFast(seg)
	if len(fields) == 1 {
		parts := splitOutsideQuotes(fields[0], ':')
		fc := FilterCall{Name: parts[0]}
		for _, a := range parts[1:] {
			if a = fastTrim(a); a != "" {
				fc.Args = append(fc.Args, a)
			}
		}
		return fc, true
	}
	return FilterCall{Name: fields[0], Args: fields[1:]}, true
}

// parseProps reads key=value tokens. A token without '=' is an expression
// whose map value is merged into the props.
func parseProps(tokens []string) []Prop {
	props := make([]Prop, 0, len(tokens))
	for _, tok := range tokens {
		name, value, ok := strings.Cut(tok, "=")
		if !ok {
			props = append(props, Prop{Value: tok, Kind: PropExpr})
			continue
		}
		props = append(props, propValue(name, value))
	}
	return props
}

func propValue(name, value string) Prop {
	switch {
	case isQuoted(value):
		return Prop{Name: name, Value: unquote(value), Kind: PropLiteral}
	case len(value) >= 2 && value[0] == '{' && value[len(value)-1] == '}':
		return Prop{Name: name, Value: fastTrim(value[1 : len(value)-1]), Kind: PropExpr}
	}
	return Prop{Name: name, Value: value, Kind: PropExpr}
}

// ----- Angle-percent -----

func (p *parser) parseAngle(nodes []Node) (Node, *closer, []Node) {
	start := p.i
	end := strings.Index(p.src[start+2:], "%>")
	if end < 0 {
		return nil, nil, p.degrade(nodes, start, start+2, "unterminated <%%")
	}
	raw := p.src[start+2 : start+2+end]
	tagEnd := start + 2 + end + 2
	p.i = tagEnd

	switch {
	case strings.HasPrefix(raw, "="):
		return p.angleExpression(nodes, raw[1:], true, start, tagEnd)
	case strings.HasPrefix(raw, "-"):
		return p.angleExpression(nodes, raw[1:], false, start, tagEnd)
	case strings.HasPrefix(raw, "#"):
		return nil, nil, nodes
	}

	inner := fastTrim(raw)
	keyword, rest, _ := strings.Cut(inner, " ")
	rest = fastTrim(rest)
	switch keyword {
	case "":
		return nil, nil, p.degrade(nodes, start, tagEnd, "empty tag")
	case "endif", "endfor":
		c := closer{syntax: 'a', name: keyword}
		if p.closerDepth(c) < 0 {
			return nil, nil, p.degrade(nodes, start, tagEnd, "unexpected <%% %s %%>", keyword)
		}
		return nil, &c, nodes
	case "if":
		if rest == "" {
			return nil, nil, p.degrade(nodes, start, tagEnd, "<%% if %%> without a condition")
		}
		nodes, body, ok := p.children(nodes, closer{syntax: 'a', name: "endif"}, start, tagEnd, "<% if %>")
		if !ok {
			return nil, nil, nodes
		}
		return Block{Kind: BlockIf, Expr: rest, Children: body}, nil, nodes
	case "for":
		fields := strings.Fields(rest)
		if len(fields) != 3 || (fields[1] != "in" && fields[1] != "of") {
			return nil, nil, p.degrade(nodes, start, tagEnd, "malformed <%% for %s %%>", rest)
		}
		nodes, body, ok := p.children(nodes, closer{syntax: 'a', name: "endfor"}, start, tagEnd, "<% for %>")
		if !ok {
			return nil, nil, nodes
		}
		return Block{Kind: BlockEach, Expr: fields[2], Alias: fields[0], Children: body}, nil, nodes
	}
	return expressionNode(inner, true), nil, nodes
}

func (p *parser) angleExpression(nodes []Node, raw string, escape bool, start, tagEnd int) (Node, *closer, []Node) {
	inner := fastTrim(raw)
	if inner == "" {
		return nil, nil, p.degrade(nodes, start, tagEnd, "empty tag")
	}
	return expressionNode(inner, escape), nil, nodes
}

// ----- Component tags -----

func isTagNameChar(c byte) bool {
	return isAlphaNum(c) || c == '_' || c == '-' || c == '.' || c == ':'
}

func (p *parser) parseCloseTag(nodes []Node) (*closer, []Node) {
	start := p.i
	j := start + 2
	for j < len(p.src) && isTagNameChar(p.src[j]) {
		j++
	}
	name := p.src[start+2 : j]
	for j < len(p.src) && isSpace(p.src[j]) {
		j++
	}
	if j >= len(p.src) || p.src[j] != '>' {
		return nil, p.degrade(nodes, start, start+2, "malformed closing tag </%s", name)
	}
	end := j + 1
	p.i = end
	c := closer{syntax: 't', name: name}
	if p.closerDepth(c) < 0 {
		return nil, p.degrade(nodes, start, end, "unexpected </%s>", name)
	}
	return &c, nodes
}

func (p *parser) parseComponent(nodes []Node) (Node, []Node) {
	start := p.i
	s := p.src
	j := start + 1
	for j < len(s) && isTagNameChar(s[j]) {
		j++
	}
	name := s[start+1 : j]

	var props []Prop
	selfClosing := false
	for {
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		if j >= len(s) {
			return nil, p.degrade(nodes, start, start+1, "unterminated <%s>", name)
		}
		if s[j] == '>' {
			j++
			break
		}
		if strings.HasPrefix(s[j:], "/>") {
			j += 2
			selfClosing = true
			break
		}

		k := j
		for k < len(s) && !isSpace(s[k]) && s[k] != '=' && s[k] != '>' && s[k] != '/' {
			k++
		}
		if k == j {
			return nil, p.degrade(nodes, start, start+1, "malformed attribute in <%s>", name)
		}
		attr := s[j:k]
		if k >= len(s) || s[k] != '=' {
			props = append(props, Prop{Name: attr, Value: "true", Kind: PropExpr})
			j = k
			continue
		}
		v, next, ok := scanAttrValue(s, k+1)
		if !ok {
			return nil, p.degrade(nodes, start, start+1, "malformed value for %s in <%s>", attr, name)
		}
		props = append(props, propValue(attr, v))
		j = next
	}

	openEnd := j
	p.i = openEnd
	var children []Node
	if !selfClosing {
		var ok bool
		nodes, children, ok = p.children(nodes, closer{syntax: 't', name: name}, start, openEnd, "<"+name+">")
		if !ok {
			return nil, nodes
		}
	}

	if name == "Layout" {
		return Layout{Props: props, Children: children}, nodes
	}
	return Component{Name: name, Props: props, Children: children}, nodes
}

// scanAttrValue reads a quoted, brace-wrapped or bare attribute value starting
// at i and returns it with its delimiters.
func scanAttrValue(s string, i int) (string, int, bool) {
	if i >= len(s) {
		return "", i, false
	}
	switch q := s[i]; q {
	case '"', '\'':
		end := strings.IndexByte(s[i+1:], q)
		if end < 0 {
			return "", i, false
		}
		return s[i : i+1+end+1], i + 1 + end + 1, true
	case '{':
		depth := 0
		for k := i; k < len(s); k++ {
			switch s[k] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[i : k+1], k + 1, true
				}
			}
		}
		return "", i, false
	}
	k := i
	for k < len(s) && !isSpace(s[k]) && s[k] != '>' && !strings.HasPrefix(s[k:], "/>") {
		k++
	}
	if k == i {
		return "", i, false
	}
	return s[i:k], k, true
}

// ----- Metadata -----

func collectMetadata(nodes []Node, fm map[string]any) Metadata {
	m := Metadata{Frontmatter: fm}
	seen := map[string]bool{}
	add := func(kind, name string) {
		key := kind + ":" + name
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		m.Dependencies = append(m.Dependencies, key)
		switch kind {
		case "partial":
			m.Partials = append(m.Partials, name)
		case "component":
			m.Components = append(m.Components, name)
		}
	}

	if v, ok := fm["layout"]; ok {
		m.Layout = toString(v)
		add("layout", m.Layout)
	}

	var walk func([]Node)
	walk = func(ns []Node) {
		for _, n := range ns {
			switch n := n.(type) {
			case Partial:
				add("partial", n.Name)
			case Component:
				if n.Name != fragmentComponent {
					add("component", n.Name)
				}
				walk(n.Children)
			case Layout:
				if p, ok := findProp(n.Props, "name"); ok && p.Kind == PropLiteral {
					add("layout", p.Value)
				}
				walk(n.Children)
			case Block:
				walk(n.Children)
			}
		}
	}
	walk(nodes)
	return m
}
