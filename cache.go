package arbor

import (
	"fmt"

	"github.com/jward/arbor/internal/symbol"
)

// Snapshot is the serialized form of a whole index: the directory plus each
// file's exported entity tree. Cross-file references inside the file
// snapshots are descriptors, resolved back to live references by Load's
// relink pass. This is the only persisted wire format.
type Snapshot struct {
	Directory string                   `json:"directory"`
	Files     map[string]*FileSnapshot `json:"files"`
}

// Snapshot exports every loaded file. Loading and failed files are omitted.
func (ix *Index) Snapshot() *Snapshot {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap := &Snapshot{
		Directory: ix.directory,
		Files:     make(map[string]*FileSnapshot, len(ix.files)),
	}
	for name, e := range ix.files {
		if e.state == stateLoaded {
			snap.Files[name] = e.file.Export()
		}
	}
	return snap
}

// Load replaces the file set wholesale from a snapshot, then performs a
// second pass relinking cross-file references once every file is present.
// Files whose snapshots are malformed are skipped and reported together;
// the rest of the batch still loads.
func (ix *Index) Load(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("load cache: nil snapshot")
	}

	// Phase 1: rebuild every entity tree with descriptor placeholders.
	files := make(map[string]*fileEntry, len(snap.Files))
	var errs []error
	for name, fs := range snap.Files {
		f, err := symbol.ImportFile(fs)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		done := make(chan struct{})
		close(done)
		files[name] = &fileEntry{state: stateLoaded, file: f, done: done}
	}

	ix.mu.Lock()
	if snap.Directory != "" {
		ix.directory = snap.Directory
	}
	ix.files = files
	ix.counters = Counters{}
	for _, e := range files {
		ix.counters.Loaded++
		ix.counters.Symbols += e.file.CountSymbols()
		ix.counters.Size += e.file.Size
	}

	// Phase 2: every file is present — resolve descriptors to live
	// references. Anything still unresolved stays an explicit marker.
	for _, e := range files {
		e.file.Relink(ix.lookupLocked)
	}
	ix.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("load cache had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}
