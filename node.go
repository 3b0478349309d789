package rushtpl

// ----------------------------- Node tree ------------------------------------

// Node is one element of a parsed template. The set of node types is closed:
// Text, Variable, Helper, Block, Component, Partial and Layout.
type Node interface {
	node()
}

// Text is literal output.
type Text struct {
	Content string
}

// Variable prints the value found at Path, optionally piped through filters.
type Variable struct {
	Path    string
	Escape  bool
	Filters []FilterCall
}

// FilterCall is one `| name arg...` segment of a variable.
type FilterCall struct {
	Name string
	Args []string
}

// Helper calls a registered helper with raw argument tokens.
type Helper struct {
	Name   string
	Args   []string
	Escape bool
}

// BlockKind distinguishes conditional and loop blocks.
type BlockKind uint8

const (
	BlockIf BlockKind = iota
	BlockEach
)

func (k BlockKind) String() string {
	if k == BlockEach {
		return "each"
	}
	return "if"
}

// Block is an if or each section. Alias is only set for each blocks.
type Block struct {
	Kind     BlockKind
	Expr     string
	Alias    string
	Children []Node
}

// Component is a capitalized tag resolved by name at render time.
type Component struct {
	Name     string
	Props    []Prop
	Children []Node
}

// Partial is a `{{> name}}` reference.
type Partial struct {
	Name  string
	Props []Prop
}

// Layout wraps its children in a named layout. The layout name is the "name" prop.
type Layout struct {
	Props    []Prop
	Children []Node
}

func (Text) node()      {}
func (Variable) node()  {}
func (Helper) node()    {}
func (Block) node()     {}
func (Component) node() {}
func (Partial) node()   {}
func (Layout) node()    {}

// PropKind tells how a prop value is interpreted at render time.
type PropKind uint8

const (
	// PropLiteral values were quoted in the source and are used as-is.
	PropLiteral PropKind = iota
	// PropExpr values follow the helper argument rules (lookup, number, bool).
	PropExpr
)

// Prop is a named attribute of a component, partial or layout.
type Prop struct {
	Name  string
	Value string
	Kind  PropKind
}

// ParseResult is the immutable output of Parse.
type ParseResult struct {
	Nodes    []Node
	Metadata Metadata
}

// Metadata lists what a template references. Dependencies are "kind:name" strings.
type Metadata struct {
	Dependencies []string
	Components   []string
	Partials     []string
	Layout       string
	Frontmatter  map[string]any
}

func findProp(props []Prop, name string) (Prop, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return Prop{}, false
}

// appendText merges adjacent text so the tree stays compact.
func appendText(nodes []Node, s string) []Node {
	if s == "" {
		return nodes
	}
	if n := len(nodes); n > 0 {
		if t, ok := nodes[n-1].(Text); ok && !isDiagnostic(t.Content) {
			nodes[n-1] = Text{Content: t.Content + s}
			return nodes
		}
	}
	return append(nodes, Text{Content: s})
}
