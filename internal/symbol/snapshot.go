package symbol

import (
	"fmt"
	"time"

	"github.com/jward/arbor/node"
)

// EntitySnapshot is the plain, serializable form of an Entity. Children are
// the ownership tree in declaration order; the namespace membership views
// are not serialized — they are deterministic from the tree shape and are
// rebuilt on import. Cross-entity references (an external's resolved file)
// are encoded as the target descriptor string and relinked after import.
type EntitySnapshot struct {
	Kind     string            `json:"kind"`
	Name     string            `json:"name,omitempty"`
	Start    int               `json:"start"`
	End      int               `json:"end"`
	Doc      string            `json:"doc,omitempty"`
	Target   string            `json:"target,omitempty"`
	Once     bool              `json:"once,omitempty"`
	Require  bool              `json:"require,omitempty"`
	Children []*EntitySnapshot `json:"children,omitempty"`
}

// FileSnapshot is the exported form of a File, suitable for persistence.
type FileSnapshot struct {
	Name    string          `json:"name"`
	Hash    string          `json:"hash,omitempty"`
	Size    int64           `json:"size,omitempty"`
	ModTime time.Time       `json:"mtime,omitzero"`
	Root    *EntitySnapshot `json:"root"`
}

// Export produces a snapshot of the file's entity tree with live references
// stripped, suitable for persistence and for ImportFile.
func (f *File) Export() *FileSnapshot {
	return &FileSnapshot{
		Name:    f.Entity.Name,
		Hash:    f.Hash,
		Size:    f.Size,
		ModTime: f.ModTime,
		Root:    exportEntity(&f.Entity),
	}
}

func exportEntity(e *Entity) *EntitySnapshot {
	snap := &EntitySnapshot{
		Kind:    e.Kind.String(),
		Name:    e.Name,
		Start:   e.Range.Start,
		End:     e.Range.End,
		Doc:     e.Doc,
		Target:  e.Target,
		Once:    e.Once,
		Require: e.Require,
	}
	for _, child := range e.children {
		snap.Children = append(snap.Children, exportEntity(child))
	}
	return snap
}

// ImportFile reconstructs a File from a snapshot without re-walking any AST.
// External references are queued with descriptor targets; call Relink once
// every file of the batch is present to resolve them.
func ImportFile(snap *FileSnapshot) (*File, error) {
	if snap == nil || snap.Root == nil {
		return nil, fmt.Errorf("import %q: empty snapshot", snapName(snap))
	}
	if KindFromString(snap.Root.Kind) != KindFile {
		return nil, fmt.Errorf("import %q: root kind %q is not a file", snap.Name, snap.Root.Kind)
	}

	f := NewFile(snap.Name, node.Range{Start: snap.Root.Start, End: snap.Root.End})
	f.Hash = snap.Hash
	f.Size = snap.Size
	f.ModTime = snap.ModTime
	f.Entity.Doc = snap.Root.Doc

	for _, child := range snap.Root.Children {
		if err := importEntity(f, &f.Entity, child); err != nil {
			return nil, fmt.Errorf("import %q: %w", snap.Name, err)
		}
	}
	return f, nil
}

func importEntity(f *File, owner *Entity, snap *EntitySnapshot) error {
	kind := KindFromString(snap.Kind)
	if kind == KindInvalid || kind == KindFile {
		return fmt.Errorf("entity %q: bad kind %q", snap.Name, snap.Kind)
	}

	e := NewEntity(kind, snap.Name, node.Range{Start: snap.Start, End: snap.End})
	e.Doc = snap.Doc
	e.Target = snap.Target
	e.Once = snap.Once
	e.Require = snap.Require

	switch kind {
	case KindNamespace:
		// Namespaces are always file-rooted; the snapshot tree already
		// reflects that, so owner is the file root here.
		f.AddNamespace(e)
	case KindExternal:
		owner.Adopt(e)
		f.QueueExternal(e)
	default:
		owner.Adopt(e)
		// Rebuild the namespace membership view the walker maintains for
		// classes and functions declared outside a namespace scope.
		if (kind == KindClass || kind == KindFunction) && owner.Kind != KindNamespace {
			if ns := owner.Namespace(); ns != nil {
				ns.Register(e)
			}
		}
	}

	for _, child := range snap.Children {
		if err := importEntity(f, e, child); err != nil {
			return err
		}
	}
	return nil
}

func snapName(snap *FileSnapshot) string {
	if snap == nil {
		return ""
	}
	return snap.Name
}
