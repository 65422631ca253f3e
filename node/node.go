// Package node defines the generic kind-tagged tree that arbor consumes as
// input. A parser (the bundled tree-sitter adapter, or any external one)
// produces Nodes; the walker classifies them by Kind and recurses through
// their fields without knowing the full grammar.
//
// A Node carries a Kind tag, an optional byte-offset Range, and an ordered
// list of named fields. Field values may be *Node, []*Node, or opaque
// scalars (string, bool, int). The walker treats unrecognized kinds by
// recursing into every field that holds nodes, so a parser may emit
// arbitrary structure and still have nested declarations discovered.
package node

// Canonical kind tags recognized by the walker. Parsers should normalize
// their grammar's node types to these where a construct matches; anything
// else keeps its native tag and is handled by generic recursion.
const (
	KindDoc       = "doc"
	KindNamespace = "namespace"
	KindClass     = "class"
	KindInterface = "interface"
	KindTrait     = "trait"
	KindFunction  = "function"
	KindVariable  = "variable"
	KindAssign    = "assign"
	KindInclude   = "include"
	KindIf        = "if"
	KindTry       = "try"
	KindCatch     = "catch"
	KindBlock     = "block"
	KindProgram   = "program"
)

// Range is a half-open byte-offset span [Start, End) in the source file.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether the offset falls inside the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Field is a named slot on a Node. Fields preserve source order, which the
// walker relies on for declaration ordering.
type Field struct {
	Name  string
	Value any
}

// Node is a single kind-tagged tree node. A Node with an empty Kind is
// structural/auxiliary data (an operator token, punctuation) and is ignored
// by the walker.
type Node struct {
	Kind   string
	Range  *Range
	fields []Field
}

// New returns a Node with the given kind tag and byte range.
func New(kind string, start, end int) *Node {
	return &Node{Kind: kind, Range: &Range{Start: start, End: end}}
}

// NewUntagged returns a node without a kind tag. The walker skips these.
func NewUntagged() *Node {
	return &Node{}
}

// Set appends or replaces the named field and returns the node for chaining.
func (n *Node) Set(name string, value any) *Node {
	for i := range n.fields {
		if n.fields[i].Name == name {
			n.fields[i].Value = value
			return n
		}
	}
	n.fields = append(n.fields, Field{Name: name, Value: value})
	return n
}

// Fields returns the node's fields in source order. The returned slice is
// the node's own backing storage; callers must not mutate it.
func (n *Node) Fields() []Field {
	return n.fields
}

// Field returns the named field's value, or (nil, false) if absent.
func (n *Node) Field(name string) (any, bool) {
	for _, f := range n.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Node returns the named field as a *Node, or nil.
func (n *Node) Node(name string) *Node {
	v, _ := n.Field(name)
	child, _ := v.(*Node)
	return child
}

// Nodes returns the named field as a []*Node, or nil.
func (n *Node) Nodes(name string) []*Node {
	v, _ := n.Field(name)
	children, _ := v.([]*Node)
	return children
}

// String returns the named field as a string, or "".
func (n *Node) String(name string) string {
	v, _ := n.Field(name)
	s, _ := v.(string)
	return s
}

// Bool returns the named field as a bool, or false.
func (n *Node) Bool(name string) bool {
	v, _ := n.Field(name)
	b, _ := v.(bool)
	return b
}

// Span returns the node's range, or the zero range if the node has none.
func (n *Node) Span() Range {
	if n.Range == nil {
		return Range{}
	}
	return *n.Range
}
