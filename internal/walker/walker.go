// Package walker consumes kind-tagged trees into symbol scopes. It
// recognizes a small set of canonical node kinds (see the node package) via
// a dispatch table; every other tagged node is handled by generic structural
// recursion over its fields, which keeps the walker resilient to the full
// grammar surface without enumerating every construct.
//
// The walker never mutates the input tree. Its only side effects are
// creating entities and appending them to the target scope's lists.
package walker

import (
	"github.com/jward/arbor/internal/symbol"
	"github.com/jward/arbor/node"
)

// handler consumes one classified node into scope. pending is the trailing
// documentation text carried from earlier siblings; the handler returns the
// pending text to carry forward ("" once a created entity consumed it).
type handler func(w *walker, scope *symbol.Entity, n *node.Node, pending string) string

// handlers is populated in init to avoid an initialization cycle with the
// recursive consume functions.
var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		node.KindDoc:       consumeDoc,
		node.KindNamespace: consumeNamespace,
		node.KindClass:     consumeClass,
		node.KindFunction:  consumeFunction,
		node.KindInclude:   consumeInclude,
		node.KindIf:        consumeIf,
		node.KindTry:       consumeTry,
		node.KindAssign:    consumeAssign,
	}
}

type walker struct {
	file *symbol.File
}

// Consume walks the given nodes into scope in source order, populating the
// scope's entity lists and recursing into nested scopes.
func Consume(scope *symbol.Entity, nodes ...*node.Node) {
	w := &walker{file: scope.File()}
	w.consumeList(scope, nodes)
}

// consumeList processes sibling nodes in source order, threading the
// pending-doc accumulator between them. At most one doc is pending at a
// time: a second documentation node before any declaration overwrites the
// first.
func (w *walker) consumeList(scope *symbol.Entity, nodes []*node.Node) {
	pending := ""
	for _, n := range nodes {
		pending = w.consumeChild(scope, n, pending)
	}
}

// consumeChild classifies a single node. Nodes without a kind tag are
// structural data and are ignored; unknown kinds fall back to generic
// recursion so nested declarations are still discovered.
func (w *walker) consumeChild(scope *symbol.Entity, n *node.Node, pending string) string {
	if n == nil || n.Kind == "" {
		return pending
	}
	if h, ok := handlers[n.Kind]; ok {
		return h(w, scope, n, pending)
	}
	return w.generic(scope, n, pending)
}

// generic recurses into every field of an unclassified node that holds
// nested nodes. The outer pending doc is preserved: a passthrough node
// (wrapper statement, expression) does not consume it.
func (w *walker) generic(scope *symbol.Entity, n *node.Node, pending string) string {
	for _, f := range n.Fields() {
		switch v := f.Value.(type) {
		case *node.Node:
			w.consumeChild(scope, v, "")
		case []*node.Node:
			w.consumeList(scope, v)
		case []any:
			var nested []*node.Node
			for _, item := range v {
				if child, ok := item.(*node.Node); ok {
					nested = append(nested, child)
				}
			}
			w.consumeList(scope, nested)
		}
	}
	return pending
}

func consumeDoc(_ *walker, _ *symbol.Entity, n *node.Node, _ string) string {
	return n.String("text")
}

func consumeClass(w *walker, scope *symbol.Entity, n *node.Node, pending string) string {
	class := symbol.NewEntity(symbol.KindClass, n.String("name"), n.Span())
	class.Doc = pending
	scope.Adopt(class)
	registerInNamespace(scope, class)
	w.consumeBody(class, n)
	return ""
}

func consumeFunction(w *walker, scope *symbol.Entity, n *node.Node, pending string) string {
	fn := symbol.NewEntity(symbol.KindFunction, n.String("name"), n.Span())
	fn.Doc = pending
	scope.Adopt(fn)
	registerInNamespace(scope, fn)
	w.consumeBody(fn, n)
	return ""
}

// consumeNamespace handles a namespace declaration wherever it appears,
// including nested inside a conditional block. Namespaces are always rooted
// at the file, never owned by the lexical parent.
func consumeNamespace(w *walker, scope *symbol.Entity, n *node.Node, pending string) string {
	ns := symbol.NewEntity(symbol.KindNamespace, n.String("name"), n.Span())
	ns.Doc = pending
	if w.file != nil {
		w.file.AddNamespace(ns)
	} else {
		scope.Adopt(ns)
	}
	w.consumeBody(ns, n)
	if kids := n.Nodes("children"); kids != nil {
		w.consumeList(ns, kids)
	}
	return ""
}

// consumeInclude records an include/require-like directive as an external
// reference. The target is kept as a descriptor string and resolved against
// the repository during relink; the walker never recurses into it.
func consumeInclude(w *walker, scope *symbol.Entity, n *node.Node, pending string) string {
	target := n.String("target")
	if target == "" {
		if tn := n.Node("target"); tn != nil {
			target = tn.String("value")
		}
	}
	ext := symbol.NewEntity(symbol.KindExternal, target, n.Span())
	ext.Doc = pending
	ext.Target = target
	ext.Once = n.Bool("once")
	ext.Require = n.Bool("require")
	scope.Adopt(ext)
	if w.file != nil {
		w.file.QueueExternal(ext)
	}
	return ""
}

// consumeIf creates one block scope per present branch. The branches are
// siblings of each other, never merged.
func consumeIf(w *walker, scope *symbol.Entity, n *node.Node, pending string) string {
	consumed := false
	if body := n.Node("body"); body != nil {
		w.consumeBlock(scope, body, pick(pending, &consumed))
	}
	if alt := n.Node("alternate"); alt != nil {
		w.consumeBlock(scope, alt, pick(pending, &consumed))
	}
	if consumed {
		return ""
	}
	return pending
}

// consumeTry creates a block for the try body, one per catch clause in
// source order, and one for a finally body if present.
func consumeTry(w *walker, scope *symbol.Entity, n *node.Node, pending string) string {
	consumed := false
	if body := n.Node("body"); body != nil {
		w.consumeBlock(scope, body, pick(pending, &consumed))
	}
	for _, c := range n.Nodes("catches") {
		if c == nil {
			continue
		}
		body := c.Node("body")
		if body == nil {
			body = c
		}
		w.consumeBlock(scope, body, pick(pending, &consumed))
	}
	if always := n.Node("always"); always != nil {
		w.consumeBlock(scope, always, pick(pending, &consumed))
	}
	if consumed {
		return ""
	}
	return pending
}

// consumeAssign creates a variable entity when the left-hand side is a
// variable reference. Other assignment shapes fall back to generic
// recursion. Variables introduced via global/static declarations are a
// known gap in this version and are not captured.
func consumeAssign(w *walker, scope *symbol.Entity, n *node.Node, pending string) string {
	left := n.Node("left")
	if left == nil || left.Kind != node.KindVariable {
		return w.generic(scope, n, pending)
	}
	v := symbol.NewEntity(symbol.KindVariable, left.String("name"), n.Span())
	v.Doc = pending
	scope.Adopt(v)
	return ""
}

// consumeBody walks a declaration's body node, if any, into the new scope.
// The body starts with a fresh pending doc; trailing docs do not leak across
// scope boundaries.
func (w *walker) consumeBody(scope *symbol.Entity, n *node.Node) {
	if body := n.Node("body"); body != nil {
		w.consumeChild(scope, body, "")
	}
}

// consumeBlock wraps a branch body in a block scope owned by scope and
// recurses into it.
func (w *walker) consumeBlock(scope *symbol.Entity, body *node.Node, doc string) {
	blk := symbol.NewEntity(symbol.KindBlock, "", body.Span())
	blk.Doc = doc
	scope.Adopt(blk)
	w.consumeChild(blk, body, "")
}

// registerInNamespace adds a class or function declared outside a namespace
// scope to the enclosing namespace's membership view.
func registerInNamespace(scope, ent *symbol.Entity) {
	if scope.Kind == symbol.KindNamespace {
		return
	}
	if ns := scope.Namespace(); ns != nil {
		ns.Register(ent)
	}
}

// pick hands the pending doc to the first taker and marks it consumed.
func pick(pending string, consumed *bool) string {
	if *consumed {
		return ""
	}
	*consumed = true
	return pending
}
