// Package arbor builds and maintains a cross-file symbol index from
// kind-tagged AST trees. Editors, linters, and completion engines query it
// for declarations (namespaces, classes, functions, variables, blocks) and
// for what is in scope at a byte offset in a file.
//
// # Pipeline
//
// A parser (the bundled tree-sitter PHP adapter, or any Parser
// implementation) turns source bytes into a generic tagged tree. The walker
// classifies nodes into typed entities, attaches trailing documentation
// comments to the following declaration, and nests lexical scopes into a
// navigable tree rooted at a File. Files register in an Index keyed by path.
//
// # Usage
//
// Create an Index over a directory, scan it, and query:
//
//	ix := arbor.New("path/to/project")
//	ctx := context.Background()
//	err := ix.Scan(ctx)
//
//	classes := ix.GetByType(arbor.KindClass, 100)
//	ns, ok := ix.GetNamespace(`\App`)
//	scope, ok := ix.ScopeAt("src/main.php", 120)
//
// # Incremental refresh
//
// [Index.Refresh] re-validates a file by modification metadata and content
// hash; an unchanged file is a cache hit that returns the existing File
// without re-walking. Concurrent refreshes of a filename already loading
// observe the same pending parse — at most one parse is in flight per
// filename. Lifecycle signals (read-started, cache-hit, parsed, error) reach
// an observer registered with [WithObserver].
//
// # Namespace merge
//
// Same-named namespaces declared across files are merged on demand:
// [Index.GetNamespace] returns a fresh, read-only aggregate of every
// file-rooted namespace scope sharing the normalized name. No persistent
// cross-file namespace object exists.
//
// # Cache snapshots
//
// [Index.Snapshot] exports the whole index as a plain serializable value;
// [Index.Load] replaces the file set from a snapshot without re-walking any
// AST, then relinks cross-file references in a second pass. The internal
// store package persists snapshots in bbolt for warm starts.
package arbor
