// Package watch drives incremental index refreshes from filesystem events.
// It recursively watches a project directory via fsnotify, filters out
// non-source files and ignored directories, and debounces rapid events
// (editors often trigger multiple writes per save).
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ignoreDirs are directories never watched.
var ignoreDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".arbor":       true,
}

const debounceInterval = 50 * time.Millisecond

// Change is one filesystem change relevant to the index.
type Change struct {
	Path    string
	Removed bool
}

// debouncer coalesces event bursts per path, firing once after the path has
// been quiet for the wait interval. Trailing-edge: every event extends the
// quiet timer, so the last write of a burst is the one that gets delivered.
type debouncer struct {
	wait time.Duration
	fire func(path string)

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func newDebouncer(wait time.Duration, fire func(path string)) *debouncer {
	return &debouncer{
		wait:   wait,
		fire:   fire,
		timers: make(map[string]*time.Timer),
	}
}

// hit records an event for path, starting its quiet timer or extending a
// running one.
func (d *debouncer) hit(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if t, ok := d.timers[path]; ok {
		t.Reset(d.wait)
		return
	}
	d.timers[path] = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return
		}
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(path)
	})
}

// cancel drops any pending event for path, so a queued write cannot
// resurrect a file that was removed meanwhile.
func (d *debouncer) cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[path]; ok {
		t.Stop()
		delete(d.timers, path)
	}
}

// close stops every pending timer; no fires happen afterward.
func (d *debouncer) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}

// Watcher monitors a directory tree and reports source file changes.
type Watcher struct {
	fw      *fsnotify.Watcher
	accept  func(path string) bool
	done    chan struct{}
	mu      sync.Mutex
	deb     *debouncer
	stopped bool
}

// New creates a watcher. accept filters file paths (typically the index's
// extension filter); directories are filtered by the ignore set.
func New(accept func(path string) bool) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:     fw,
		accept: accept,
		done:   make(chan struct{}),
	}, nil
}

// Watch monitors root recursively and invokes onChange for each debounced
// source file change. It returns after the watch goroutine is running; stop
// with Close.
func (w *Watcher) Watch(root string, onChange func(Change)) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if info.IsDir() {
			if path != absRoot && shouldIgnoreDir(info.Name()) {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	deb := newDebouncer(debounceInterval, func(path string) {
		onChange(Change{Path: path})
	})
	w.mu.Lock()
	w.deb = deb
	w.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				path := event.Name

				// New directories join the watch list.
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(path); err == nil && info.IsDir() {
						if !shouldIgnoreDir(info.Name()) {
							w.fw.Add(path)
						}
						continue
					}
				}

				if !w.accept(path) {
					continue
				}

				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					deb.cancel(path)
					onChange(Change{Path: path, Removed: true})
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					deb.hit(path)
				}

			case _, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				// Watch errors are transient; keep going.

			case <-w.done:
				return
			}
		}
	}()
	return nil
}

// Close stops event delivery, cancels pending debounced changes, and
// releases the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.deb != nil {
		w.deb.close()
	}
	close(w.done)
	return w.fw.Close()
}

func shouldIgnoreDir(name string) bool {
	return ignoreDirs[name] || strings.HasPrefix(name, ".")
}
