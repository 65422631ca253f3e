package arbor

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jward/arbor/internal/parser"
	"github.com/jward/arbor/internal/symbol"
	"github.com/jward/arbor/internal/walker"
	"github.com/jward/arbor/node"
)

// Parser turns source bytes into the generic tagged tree the walker
// consumes. The bundled implementation uses tree-sitter PHP; callers may
// supply their own via WithParser.
type Parser interface {
	Parse(ctx context.Context, filename string, src []byte) (*node.Node, error)
}

// Counters reports index bookkeeping for progress display.
type Counters struct {
	Total   int // files tracked (loaded, loading, or failed)
	Loading int // parses currently in flight
	Loaded  int // files with a live entity tree
	Errors  int // files whose last read/parse failed
	Symbols int // entities across all loaded files
	Size    int64
}

// skipDirs are directories excluded from Scan.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// entryState tracks the per-filename lifecycle:
// absent → loading → loaded, or loading → failed.
type entryState uint8

const (
	stateLoading entryState = iota + 1
	stateLoaded
	stateFailed
)

// fileEntry is one slot in the files map. While loading it acts as the
// pending-parse marker: concurrent refreshes wait on done and observe the
// same result instead of starting a duplicate parse.
type fileEntry struct {
	state entryState
	file  *symbol.File
	err   error
	done  chan struct{}
}

// Index owns the set of indexed files, drives scan/parse/refresh,
// deduplicates in-flight parses, and answers aggregate queries.
//
// The files map is the only shared mutable structure; every mutation happens
// under the mutex, never interleaved with an in-progress walk for the same
// filename. Walks themselves run outside the lock.
type Index struct {
	mu        sync.Mutex
	directory string
	parser    Parser
	exts      map[string]bool
	skip      map[string]bool
	observer  func(Event)
	files     map[string]*fileEntry
	counters  Counters
}

// Option configures an Index.
type Option func(*Index)

// WithParser replaces the bundled tree-sitter PHP parser.
func WithParser(p Parser) Option {
	return func(ix *Index) { ix.parser = p }
}

// WithObserver registers a callback for lifecycle events. Events fire
// outside the index lock; the callback must not call back into the Index.
func WithObserver(fn func(Event)) Option {
	return func(ix *Index) { ix.observer = fn }
}

// WithExtensions restricts Scan to files with the given extensions
// (e.g. ".php"). Defaults to the bundled parser's extensions.
func WithExtensions(exts ...string) Option {
	return func(ix *Index) {
		ix.exts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			ix.exts[strings.ToLower(ext)] = true
		}
	}
}

// WithSkipDirs replaces the default set of directories Scan ignores.
func WithSkipDirs(dirs ...string) Option {
	return func(ix *Index) {
		ix.skip = make(map[string]bool, len(dirs))
		for _, d := range dirs {
			ix.skip[d] = true
		}
	}
}

// New creates an empty Index rooted at directory.
func New(directory string, opts ...Option) *Index {
	ix := &Index{
		directory: directory,
		parser:    parser.NewPHP(),
		skip:      skipDirs,
		files:     make(map[string]*fileEntry),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Directory returns the index's root path.
func (ix *Index) Directory() string {
	return ix.directory
}

// Stats returns a snapshot of the index counters.
func (ix *Index) Stats() Counters {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	c := ix.counters
	c.Total = len(ix.files)
	return c
}

// Parse reads and walks a file into a new File, replacing any prior entry.
// If a parse for the filename is already in flight, Parse waits for it and
// returns its result instead of starting another.
func (ix *Index) Parse(ctx context.Context, filename string) (*symbol.File, error) {
	ix.mu.Lock()
	if e, ok := ix.files[filename]; ok && e.state == stateLoading {
		done := e.done
		ix.mu.Unlock()
		<-done
		return e.file, e.err
	}
	entry := ix.beginLoad(filename)
	ix.mu.Unlock()

	return ix.load(ctx, filename, entry, nil)
}

// Refresh re-validates filename and re-parses only on change. An absent file
// is parsed; a loading file's pending result is returned; an unchanged file
// is a cache hit returning the identical File without re-walking.
func (ix *Index) Refresh(ctx context.Context, filename string) (*symbol.File, error) {
	ix.mu.Lock()
	e, ok := ix.files[filename]
	if ok && e.state == stateLoading {
		done := e.done
		ix.mu.Unlock()
		<-done
		return e.file, e.err
	}
	if !ok || e.state != stateLoaded {
		entry := ix.beginLoad(filename)
		ix.mu.Unlock()
		return ix.load(ctx, filename, entry, nil)
	}
	prev := e.file
	ix.mu.Unlock()

	// Fast path: unchanged modification metadata.
	info, statErr := os.Stat(filename)
	if statErr == nil && info.Size() == prev.Size && info.ModTime().Equal(prev.ModTime) {
		ix.emit(Event{Type: EventCacheHit, Filename: filename, File: prev})
		return prev, nil
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, ix.failEntry(filename, fmt.Errorf("read %s: %w", filename, err))
	}
	if contentHash(content) == prev.Hash {
		// Content unchanged but the metadata moved (e.g. touch). Adopt the
		// new metadata so the stat fast path matches again next time.
		ix.mu.Lock()
		if ix.files[filename] == e && statErr == nil {
			prev.Size = info.Size()
			prev.ModTime = info.ModTime()
		}
		ix.mu.Unlock()
		ix.emit(Event{Type: EventCacheHit, Filename: filename, File: prev})
		return prev, nil
	}

	ix.mu.Lock()
	if cur := ix.files[filename]; cur != e || cur.state != stateLoaded {
		// Lost a race with another mutation; retry from the top.
		ix.mu.Unlock()
		return ix.Refresh(ctx, filename)
	}
	entry := ix.beginLoad(filename)
	ix.mu.Unlock()

	return ix.load(ctx, filename, entry, content)
}

// Scan enumerates candidate files under the index directory matching the
// extension filters and refreshes each. Errors on individual files are
// collected; scanning continues.
func (ix *Index) Scan(ctx context.Context) error {
	paths, err := ix.listFiles()
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := ix.Refresh(ctx, path); err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("scan had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// listFiles walks the directory tree, skipping hidden directories and the
// configured skip set, and returns paths matching the extension filters.
func (ix *Index) listFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(ix.directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != ix.directory && (strings.HasPrefix(name, ".") || ix.skip[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if ix.supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

func (ix *Index) supported(path string) bool {
	if ix.exts != nil {
		return ix.exts[strings.ToLower(filepath.Ext(path))]
	}
	return parser.Supported(path)
}

// Remove deletes filename from the index and detaches its entity tree.
// Reports whether an entry existed.
func (ix *Index) Remove(filename string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.files[filename]
	if !ok {
		return false
	}
	delete(ix.files, filename)
	if e.state == stateLoaded {
		ix.counters.Loaded--
		ix.counters.Symbols -= e.file.CountSymbols()
		ix.counters.Size -= e.file.Size
		e.file.Detach()
	} else if e.state == stateFailed {
		ix.counters.Errors--
	}
	return true
}

// Rename updates the files map key and the File's name atomically. Renaming
// a file whose parse is in flight is an error.
func (ix *Index) Rename(oldName, newName string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.files[oldName]
	if !ok {
		return fmt.Errorf("rename %s: not indexed", oldName)
	}
	if e.state == stateLoading {
		return fmt.Errorf("rename %s: parse in flight", oldName)
	}
	if _, taken := ix.files[newName]; taken {
		return fmt.Errorf("rename %s: %s already indexed", oldName, newName)
	}
	delete(ix.files, oldName)
	ix.files[newName] = e
	if e.file != nil {
		e.file.Rename(newName)
	}
	return nil
}

// beginLoad installs a loading entry for filename, replacing any prior
// entry, and adjusts counters for whatever the prior entry held.
// Callers hold ix.mu.
func (ix *Index) beginLoad(filename string) *fileEntry {
	if prev, ok := ix.files[filename]; ok {
		switch prev.state {
		case stateLoaded:
			ix.counters.Loaded--
			ix.counters.Symbols -= prev.file.CountSymbols()
			ix.counters.Size -= prev.file.Size
		case stateFailed:
			ix.counters.Errors--
		}
	}
	entry := &fileEntry{state: stateLoading, done: make(chan struct{})}
	ix.files[filename] = entry
	ix.counters.Loading++
	return entry
}

// load reads (unless content was already read), parses, and walks filename
// into a new File, then publishes the result on entry.
func (ix *Index) load(ctx context.Context, filename string, entry *fileEntry, content []byte) (*symbol.File, error) {
	if content == nil {
		ix.emit(Event{Type: EventReadStarted, Filename: filename})
		var err error
		content, err = os.ReadFile(filename)
		if err != nil {
			return nil, ix.finishLoad(filename, entry, nil, fmt.Errorf("read %s: %w", filename, err))
		}
	}

	root, err := ix.parser.Parse(ctx, filename, content)
	if err != nil {
		return nil, ix.finishLoad(filename, entry, nil, fmt.Errorf("parse %s: %w", filename, err))
	}

	f := symbol.NewFile(filename, node.Range{Start: 0, End: len(content)})
	f.Hash = contentHash(content)
	f.Size = int64(len(content))
	if info, err := os.Stat(filename); err == nil {
		f.ModTime = info.ModTime()
	} else {
		f.ModTime = time.Now()
	}
	walker.Consume(&f.Entity, root)

	if err := ix.finishLoad(filename, entry, f, nil); err != nil {
		return nil, err
	}
	return f, nil
}

// finishLoad publishes a load result. If the entry was removed or replaced
// while the walk ran, the result is discarded (the map mutation won).
func (ix *Index) finishLoad(filename string, entry *fileEntry, f *symbol.File, err error) error {
	ix.mu.Lock()
	entry.file = f
	entry.err = err
	if err != nil {
		entry.state = stateFailed
	} else {
		entry.state = stateLoaded
	}

	if ix.files[filename] == entry {
		ix.counters.Loading--
		if err != nil {
			ix.counters.Errors++
		} else {
			ix.counters.Loaded++
			ix.counters.Symbols += f.CountSymbols()
			ix.counters.Size += f.Size
			f.Relink(ix.lookupLocked)
		}
	} else if ix.counters.Loading > 0 {
		ix.counters.Loading--
	}
	close(entry.done)
	ix.mu.Unlock()

	if err != nil {
		ix.emit(Event{Type: EventError, Filename: filename, Err: err})
	} else {
		ix.emit(Event{Type: EventParsed, Filename: filename, File: f})
	}
	return err
}

// failEntry records a refresh failure for a previously loaded file.
func (ix *Index) failEntry(filename string, err error) error {
	ix.mu.Lock()
	if e, ok := ix.files[filename]; ok && e.state == stateLoaded {
		ix.counters.Loaded--
		ix.counters.Symbols -= e.file.CountSymbols()
		ix.counters.Size -= e.file.Size
		ix.counters.Errors++
		e.file.Detach()
		done := make(chan struct{})
		close(done)
		ix.files[filename] = &fileEntry{state: stateFailed, err: err, done: done}
	}
	ix.mu.Unlock()
	ix.emit(Event{Type: EventError, Filename: filename, Err: err})
	return err
}

// lookupLocked resolves a filename to its loaded File. Callers hold ix.mu.
func (ix *Index) lookupLocked(name string) *symbol.File {
	if e, ok := ix.files[name]; ok && e.state == stateLoaded {
		return e.file
	}
	return nil
}

func contentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
