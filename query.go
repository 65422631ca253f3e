package arbor

import (
	"sort"
	"strings"

	"github.com/jward/arbor/internal/symbol"
)

// Namespace is the read-only, query-time merge of every file-rooted
// namespace scope sharing a name. It is recomputed per query; no persistent
// cross-file namespace object exists, and mutating its slices has no effect
// on the index.
type Namespace struct {
	Name       string
	Variables  []*Entity
	Defines    []*Entity
	Functions  []*Entity
	Classes    []*Entity
	Interfaces []*Entity
	Traits     []*Entity
}

// NormalizeNamespace canonicalizes a namespace name: a single leading
// separator, no trailing separator. `App\Sub\` and `\App\Sub` both
// normalize to `\App\Sub`; the empty name is the root namespace `\`.
func NormalizeNamespace(name string) string {
	return `\` + strings.Trim(name, `\`)
}

// GetNamespace merges all namespace scopes with the given name across the
// index. ok is false when no file declares the namespace.
func (ix *Index) GetNamespace(name string) (*Namespace, bool) {
	want := NormalizeNamespace(name)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	merged := &Namespace{Name: want}
	found := false
	for _, f := range ix.loadedFilesLocked() {
		for _, ns := range f.Namespaces {
			if NormalizeNamespace(ns.Name) != want {
				continue
			}
			found = true
			merged.Variables = append(merged.Variables, ns.Variables...)
			merged.Defines = append(merged.Defines, ns.Defines...)
			merged.Functions = append(merged.Functions, ns.Functions...)
			merged.Classes = append(merged.Classes, ns.Classes...)
			merged.Interfaces = append(merged.Interfaces, ns.Interfaces...)
			merged.Traits = append(merged.Traits, ns.Traits...)
		}
	}
	if !found {
		return nil, false
	}
	return merged, true
}

// GetByType returns up to limit entities of the requested kind across all
// loaded files. limit <= 0 means unbounded. Results are ordered within each
// file; no cross-file order is guaranteed.
func (ix *Index) GetByType(kind Kind, limit int) []*Entity {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var out []*Entity
	for _, f := range ix.loadedFilesLocked() {
		remaining := 0
		if limit > 0 {
			remaining = limit - len(out)
			if remaining <= 0 {
				break
			}
		}
		out = append(out, f.GetByType(kind, remaining)...)
	}
	return out
}

// GetByName returns up to limit entities of the requested kind with an exact
// name match, across all loaded files. limit <= 0 means unbounded.
func (ix *Index) GetByName(kind Kind, name string, limit int) []*Entity {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var out []*Entity
	for _, f := range ix.loadedFilesLocked() {
		remaining := 0
		if limit > 0 {
			remaining = limit - len(out)
			if remaining <= 0 {
				break
			}
		}
		out = append(out, f.GetByName(kind, name, remaining)...)
	}
	return out
}

// GetFirstByName returns the first match across the index. Absence is an
// ordinary outcome, reported via ok.
func (ix *Index) GetFirstByName(kind Kind, name string) (*Entity, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, f := range ix.loadedFilesLocked() {
		if ent, ok := f.GetFirstByName(kind, name); ok {
			return ent, true
		}
	}
	return nil, false
}

// ScopeAt returns the innermost scope containing the byte offset in the
// named file. ok is false when the file is not loaded or no scope contains
// the offset.
func (ix *Index) ScopeAt(filename string, offset int) (*Entity, bool) {
	ix.mu.Lock()
	f := ix.lookupLocked(filename)
	ix.mu.Unlock()
	if f == nil {
		return nil, false
	}
	scope := f.ScopeAt(offset)
	return scope, scope != nil
}

// GetFile returns the loaded File for a path.
func (ix *Index) GetFile(filename string) (*File, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	f := ix.lookupLocked(filename)
	return f, f != nil
}

// Filenames returns the paths of all loaded files, sorted.
func (ix *Index) Filenames() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	names := make([]string, 0, len(ix.files))
	for name, e := range ix.files {
		if e.state == stateLoaded {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// loadedFilesLocked returns loaded files sorted by name for deterministic
// query output. Callers hold ix.mu.
func (ix *Index) loadedFilesLocked() []*symbol.File {
	names := make([]string, 0, len(ix.files))
	for name, e := range ix.files {
		if e.state == stateLoaded {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	files := make([]*symbol.File, 0, len(names))
	for _, name := range names {
		files = append(files, ix.files[name].file)
	}
	return files
}
