package symbol

import (
	"time"

	"github.com/jward/arbor/node"
)

// DefaultNamespaceName is the name of the synthetic namespace every file
// carries for declarations made outside any explicit namespace.
const DefaultNamespaceName = `\`

// File is the root scope for one source unit. Its Name is the path string
// the repository keys it by; Hash/Size/ModTime support change detection.
type File struct {
	Entity

	Hash    string
	Size    int64
	ModTime time.Time

	// Namespaces holds every file-rooted namespace scope, the synthetic
	// default namespace first. Declared namespaces are appended in source
	// order by the walker.
	Namespaces []*Entity

	defaultNS *Entity

	// pending holds external references whose targets still need resolving
	// against the repository, queued by snapshot import and by the walker.
	pending []*Entity
}

// NewFile creates an empty file scope for the given path and source span.
func NewFile(name string, rng node.Range) *File {
	f := &File{
		Entity: Entity{Kind: KindFile, Name: name, Range: rng},
	}
	f.Entity.file = f

	f.defaultNS = NewEntity(KindNamespace, DefaultNamespaceName, rng)
	f.defaultNS.parent = &f.Entity
	f.Namespaces = append(f.Namespaces, f.defaultNS)
	return f
}

// DefaultNamespace returns the file's synthetic top-level namespace.
func (f *File) DefaultNamespace() *Entity {
	return f.defaultNS
}

// AddNamespace records a declared namespace scope as file-rooted: the file
// owns it regardless of where in the tree its declaration appeared.
func (f *File) AddNamespace(ns *Entity) {
	f.Entity.Adopt(ns)
	f.Namespaces = append(f.Namespaces, ns)
}

// QueueExternal registers an external reference for the next relink pass.
func (f *File) QueueExternal(ext *Entity) {
	f.pending = append(f.pending, ext)
}

// Relink resolves queued external references against the repository. lookup
// returns the live file for a path, or nil. References whose target cannot
// be matched stay unresolved; that is an explicit marker, not an error.
func (f *File) Relink(lookup func(name string) *File) {
	for _, ext := range f.pending {
		if target := lookup(ext.Target); target != nil {
			ext.targetFile = target
		}
	}
	f.pending = nil
}

// Rename updates the file's path. The repository keeps its files map key in
// sync with this name.
func (f *File) Rename(name string) {
	f.Entity.Name = name
}

// Detach drops the file's entity tree, making it eligible for reclamation.
// Used when a file is removed from the repository or replaced by a re-parse.
func (f *File) Detach() {
	f.Entity.children = nil
	f.Entity.Variables = nil
	f.Entity.Defines = nil
	f.Entity.Functions = nil
	f.Entity.Classes = nil
	f.Entity.Interfaces = nil
	f.Entity.Traits = nil
	f.Entity.Blocks = nil
	f.Namespaces = nil
	f.defaultNS = nil
	f.pending = nil
}
