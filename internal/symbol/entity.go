// Package symbol implements arbor's entity graph: typed declarations
// organized into a tree of lexical scopes, one File per source unit.
//
// Ownership is strictly tree-shaped. Every entity except a File's root is
// owned by exactly one scope; the parent link is a non-owning back-reference
// used to walk upward (enclosing scope, enclosing namespace, owning file).
// Entities are created once during a walk and not mutated afterward, apart
// from the late external-target relink performed on snapshot import.
package symbol

import "github.com/jward/arbor/node"

// Entity is a single classified symbol-graph node. Scope kinds (file,
// namespace, class, function, block) additionally own declaration lists.
//
// The exported kind lists (Variables, Functions, ...) are membership views:
// an entity always appears in its owning scope's list, and class/function
// declarations are also registered in the enclosing namespace's list. The
// ownership tree used for traversal is kept separately, so an entity is
// never visited twice even when it appears in two lists.
type Entity struct {
	Kind  Kind
	Name  string
	Range node.Range
	Doc   string

	// Declaration lists, populated for scope kinds.
	Variables  []*Entity
	Defines    []*Entity
	Functions  []*Entity
	Classes    []*Entity
	Interfaces []*Entity
	Traits     []*Entity
	Blocks     []*Entity

	// External-reference payload (KindExternal): an include/require-like
	// directive. Target holds the raw target expression or literal;
	// targetFile is resolved against the repository during relink.
	Target  string
	Once    bool
	Require bool

	parent     *Entity
	children   []*Entity
	targetFile *File
	file       *File // set on a File's root entity only
}

// NewEntity creates an entity of the given kind. It is not attached to any
// scope until adopted.
func NewEntity(kind Kind, name string, rng node.Range) *Entity {
	return &Entity{Kind: kind, Name: name, Range: rng}
}

// Parent returns the enclosing scope, or nil for a File root.
func (e *Entity) Parent() *Entity {
	return e.parent
}

// Children returns the entities this scope owns, in declaration order.
func (e *Entity) Children() []*Entity {
	return e.children
}

// Adopt makes e the owner of child: sets the parent back-reference, appends
// to the ownership list, and registers the child in the matching kind list.
func (e *Entity) Adopt(child *Entity) {
	child.parent = e
	e.children = append(e.children, child)
	e.Register(child)
}

// Register appends child to e's kind list without taking ownership. Used for
// the namespace membership views (a class declared at file level belongs to
// the file and is visible in the default namespace).
func (e *Entity) Register(child *Entity) {
	switch child.Kind {
	case KindVariable:
		e.Variables = append(e.Variables, child)
	case KindDefine:
		e.Defines = append(e.Defines, child)
	case KindFunction:
		e.Functions = append(e.Functions, child)
	case KindClass:
		e.Classes = append(e.Classes, child)
	case KindInterface:
		e.Interfaces = append(e.Interfaces, child)
	case KindTrait:
		e.Traits = append(e.Traits, child)
	case KindBlock:
		e.Blocks = append(e.Blocks, child)
	}
}

// File returns the file owning this entity, or nil for a detached entity.
func (e *Entity) File() *File {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.file != nil {
			return cur.file
		}
	}
	return nil
}

// Namespace returns the nearest enclosing namespace scope, starting with the
// receiver itself. Entities outside any declared namespace resolve to their
// file's default namespace.
func (e *Entity) Namespace() *Entity {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.Kind == KindNamespace {
			return cur
		}
		if cur.file != nil {
			return cur.file.DefaultNamespace()
		}
	}
	return nil
}

// TargetFile returns the file an external reference resolves to, if the
// relink pass could match its target. ok is false for unresolved references.
func (e *Entity) TargetFile() (*File, bool) {
	return e.targetFile, e.targetFile != nil
}

// GetByType returns up to limit entities of the requested kind found
// anywhere under this scope, depth-first in source order. limit <= 0 means
// unbounded.
func (e *Entity) GetByType(kind Kind, limit int) []*Entity {
	var out []*Entity
	e.walk(func(ent *Entity) bool {
		if ent.Kind == kind {
			out = append(out, ent)
		}
		return limit <= 0 || len(out) < limit
	})
	return out
}

// GetByName returns up to limit entities of the requested kind with an exact
// name match. limit <= 0 means unbounded.
func (e *Entity) GetByName(kind Kind, name string, limit int) []*Entity {
	var out []*Entity
	e.walk(func(ent *Entity) bool {
		if ent.Kind == kind && ent.Name == name {
			out = append(out, ent)
		}
		return limit <= 0 || len(out) < limit
	})
	return out
}

// GetFirstByName returns the first entity of the requested kind and name in
// depth-first source order. Absence is an ordinary outcome, reported via ok.
func (e *Entity) GetFirstByName(kind Kind, name string) (*Entity, bool) {
	matches := e.GetByName(kind, name, 1)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0], true
}

// ScopeAt returns the innermost scope whose range contains the byte offset.
// Later declarations win ties, so for nested blocks the deepest one is
// returned. Returns nil when no scope under e contains the offset.
func (e *Entity) ScopeAt(offset int) *Entity {
	var best *Entity
	if e.Kind.IsScope() && e.Range.Contains(offset) {
		best = e
	}
	for _, child := range e.children {
		if inner := child.ScopeAt(offset); inner != nil {
			best = inner
		}
	}
	return best
}

// CountSymbols returns the number of entities owned under this scope,
// excluding the scope itself.
func (e *Entity) CountSymbols() int {
	n := 0
	e.walk(func(*Entity) bool {
		n++
		return true
	})
	return n
}

// walk visits every owned descendant depth-first in declaration order. The
// visitor returns false to stop early. The receiver itself is not visited.
func (e *Entity) walk(visit func(*Entity) bool) bool {
	for _, child := range e.children {
		if !visit(child) {
			return false
		}
		if !child.walk(visit) {
			return false
		}
	}
	return true
}
