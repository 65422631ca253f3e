package arbor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/arbor/node"
)

// fakeParser returns canned trees keyed by filename and counts calls, so
// tests can assert on cache hits and in-flight deduplication without real
// grammar involvement.
type fakeParser struct {
	mu    sync.Mutex
	calls map[string]int
	trees map[string]*node.Node
	errs  map[string]error
	gate  chan struct{} // when set, Parse blocks until closed
}

func newFakeParser() *fakeParser {
	return &fakeParser{
		calls: make(map[string]int),
		trees: make(map[string]*node.Node),
		errs:  make(map[string]error),
	}
}

func (p *fakeParser) Parse(_ context.Context, filename string, src []byte) (*node.Node, error) {
	p.mu.Lock()
	p.calls[filename]++
	tree := p.trees[filename]
	err := p.errs[filename]
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if tree == nil {
		tree = node.New(node.KindProgram, 0, len(src))
	}
	return tree, nil
}

func (p *fakeParser) callCount(filename string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[filename]
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func classNode(name string, start, end int) *node.Node {
	return node.New(node.KindClass, start, end).Set("name", name)
}

func funcNode(name string, start, end int) *node.Node {
	return node.New(node.KindFunction, start, end).Set("name", name)
}

func program(end int, children ...*node.Node) *node.Node {
	return node.New(node.KindProgram, 0, end).Set("children", children)
}

func namespaceNode(name string, start, end int, children ...*node.Node) *node.Node {
	return node.New(node.KindNamespace, start, end).
		Set("name", name).
		Set("children", children)
}

func TestParse_IndexesFile(t *testing.T) {
	dir := t.TempDir()
	src := "<?php class Foo {} function bar() {}"
	path := writeFile(t, dir, "app.php", src)

	fp := newFakeParser()
	fp.trees[path] = program(len(src),
		classNode("Foo", 6, 18),
		funcNode("bar", 19, 37),
	)
	ix := New(dir, WithParser(fp))

	f, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Name)
	assert.Equal(t, int64(len(src)), f.Size)
	assert.NotEmpty(t, f.Hash)
	assert.False(t, f.ModTime.IsZero())

	stats := ix.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 0, stats.Loading)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 2, stats.Symbols)
	assert.Equal(t, int64(len(src)), stats.Size)

	foo, ok := ix.GetFirstByName(KindClass, "Foo")
	require.True(t, ok)
	assert.Same(t, f, foo.File())
}

func TestRefresh_UnchangedFileIsCacheHit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.php", "<?php class Foo {}")

	fp := newFakeParser()
	ix := New(dir, WithParser(fp))

	first, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)

	second, err := ix.Refresh(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second, "unchanged file keeps the identical File")
	assert.Equal(t, 1, fp.callCount(path), "no re-parse on cache hit")
}

func TestRefresh_HashHitAdoptsNewMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.php", "<?php class Foo {}")

	fp := newFakeParser()
	ix := New(dir, WithParser(fp))

	first, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)

	// Touch the file: metadata moves, content does not.
	touched := first.ModTime.Add(2 * time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, touched, touched))

	second, err := ix.Refresh(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second, "unchanged content is a cache hit")
	assert.Equal(t, 1, fp.callCount(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, second.ModTime.Equal(info.ModTime()),
		"hash hit adopts the new metadata so the stat fast path matches again")

	// The next refresh short-circuits on metadata alone.
	third, err := ix.Refresh(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, third)
	assert.Equal(t, 1, fp.callCount(path))
}

func TestRefresh_ChangedContentReparses(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.php", "<?php class Foo {}")

	fp := newFakeParser()
	ix := New(dir, WithParser(fp))

	first, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)

	writeFile(t, dir, "app.php", "<?php class Foo {} class Bar {}")
	second, err := ix.Refresh(context.Background(), path)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, fp.callCount(path))
	assert.Equal(t, 1, ix.Stats().Loaded, "re-parse replaces, never accumulates")
}

func TestRefresh_AbsentFileIsParsed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.php", "<?php")

	fp := newFakeParser()
	ix := New(dir, WithParser(fp))

	f, err := ix.Refresh(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 1, fp.callCount(path))
}

func TestParse_ReadFailureRecorded(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone.php")

	var events []Event
	ix := New(dir, WithParser(newFakeParser()), WithObserver(func(ev Event) {
		events = append(events, ev)
	}))

	_, err := ix.Parse(context.Background(), missing)
	require.Error(t, err)

	stats := ix.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.Loaded)

	_, ok := ix.GetFile(missing)
	assert.False(t, ok, "failed files stay absent from queries")

	require.Len(t, events, 2)
	assert.Equal(t, EventReadStarted, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
	assert.Error(t, events[1].Err)
}

func TestParse_ParserErrorRecorded(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.php", "<?php @@")

	fp := newFakeParser()
	fp.errs[path] = errors.New("unexpected token")
	ix := New(dir, WithParser(fp))

	_, err := ix.Parse(context.Background(), path)
	require.ErrorContains(t, err, "unexpected token")
	assert.Equal(t, 1, ix.Stats().Errors)

	// A later refresh retries a failed file.
	fp.mu.Lock()
	delete(fp.errs, path)
	fp.mu.Unlock()
	_, err = ix.Refresh(context.Background(), path)
	require.NoError(t, err)
	stats := ix.Stats()
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 1, stats.Loaded)
}

func TestParse_ConcurrentCallsShareOneParse(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.php", "<?php class Foo {}")

	fp := newFakeParser()
	fp.gate = make(chan struct{})
	ix := New(dir, WithParser(fp))

	const n = 8
	results := make([]*File, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := ix.Parse(context.Background(), path)
			assert.NoError(t, err)
			results[i] = f
		}(i)
	}

	close(fp.gate)
	wg.Wait()

	assert.Equal(t, 1, fp.callCount(path), "at most one parse in flight per file")
	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, ix.Stats().Loaded)
}

func TestGetNamespace_MergesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	srcA := "<?php namespace Shared; function a() {}"
	srcB := "<?php namespace Shared; function b() {}"
	pathA := writeFile(t, dir, "a.php", srcA)
	pathB := writeFile(t, dir, "b.php", srcB)

	fp := newFakeParser()
	fp.trees[pathA] = program(len(srcA),
		namespaceNode("Shared", 6, len(srcA), funcNode("a", 24, len(srcA))))
	fp.trees[pathB] = program(len(srcB),
		namespaceNode("Shared", 6, len(srcB), funcNode("b", 24, len(srcB))))
	ix := New(dir, WithParser(fp))

	_, err := ix.Parse(context.Background(), pathA)
	require.NoError(t, err)
	_, err = ix.Parse(context.Background(), pathB)
	require.NoError(t, err)

	ns, ok := ix.GetNamespace("Shared")
	require.True(t, ok)
	require.Len(t, ns.Functions, 2)
	assert.Equal(t, "a", ns.Functions[0].Name)
	assert.Equal(t, "b", ns.Functions[1].Name)

	// Leading and trailing separators normalize to the same namespace.
	slashed, ok := ix.GetNamespace(`\Shared`)
	require.True(t, ok)
	assert.Len(t, slashed.Functions, 2)
	trailing, ok := ix.GetNamespace(`Shared\`)
	require.True(t, ok)
	assert.Len(t, trailing.Functions, 2)

	_, ok = ix.GetNamespace("Other")
	assert.False(t, ok)
}

func TestGetNamespace_MergeIsPerQuery(t *testing.T) {
	dir := t.TempDir()
	src := "<?php namespace App; class Foo {}"
	path := writeFile(t, dir, "app.php", src)

	fp := newFakeParser()
	fp.trees[path] = program(len(src),
		namespaceNode("App", 6, len(src), classNode("Foo", 21, len(src))))
	ix := New(dir, WithParser(fp))
	_, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)

	first, ok := ix.GetNamespace("App")
	require.True(t, ok)
	first.Classes = nil

	second, ok := ix.GetNamespace("App")
	require.True(t, ok)
	assert.Len(t, second.Classes, 1, "merged namespaces are synthetic, recomputed per query")
}

func TestNamespacedFileQueries(t *testing.T) {
	// namespace App; class Foo {} function bar() {}
	dir := t.TempDir()
	src := "<?php namespace App; class Foo {} function bar() {}"
	path := writeFile(t, dir, "app.php", src)

	fp := newFakeParser()
	fp.trees[path] = program(len(src),
		namespaceNode("App", 6, len(src),
			classNode("Foo", 21, 33),
			funcNode("bar", 34, len(src)),
		))
	ix := New(dir, WithParser(fp))
	_, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)

	classes := ix.GetByType(KindClass, 0)
	require.Len(t, classes, 1)
	assert.Equal(t, "Foo", classes[0].Name)

	ns, ok := ix.GetNamespace("App")
	require.True(t, ok)
	require.Len(t, ns.Functions, 1)
	assert.Equal(t, "bar", ns.Functions[0].Name)

	def, ok := ix.GetNamespace(`\`)
	require.True(t, ok)
	assert.Empty(t, def.Classes, "namespaced declarations stay out of the default namespace")
}

func TestGetByType_LimitSpansFiles(t *testing.T) {
	dir := t.TempDir()
	fp := newFakeParser()
	ix := New(dir, WithParser(fp))

	for i := 0; i < 3; i++ {
		src := "<?php class C {}"
		path := writeFile(t, dir, fmt.Sprintf("f%d.php", i), src)
		fp.trees[path] = program(len(src),
			classNode(fmt.Sprintf("C%d", i), 6, len(src)))
		_, err := ix.Parse(context.Background(), path)
		require.NoError(t, err)
	}

	assert.Len(t, ix.GetByType(KindClass, 0), 3)
	assert.Len(t, ix.GetByType(KindClass, 2), 2)
	assert.Empty(t, ix.GetByType(KindTrait, 0))
}

func TestGetByName_AcrossFiles(t *testing.T) {
	dir := t.TempDir()
	fp := newFakeParser()
	ix := New(dir, WithParser(fp))

	for _, name := range []string{"a", "b"} {
		src := "<?php class Foo {}"
		path := writeFile(t, dir, name+".php", src)
		fp.trees[path] = program(len(src), classNode("Foo", 6, len(src)))
		_, err := ix.Parse(context.Background(), path)
		require.NoError(t, err)
	}

	assert.Len(t, ix.GetByName(KindClass, "Foo", 0), 2,
		"same-named declarations in different files are both kept")
	assert.Len(t, ix.GetByName(KindClass, "Foo", 1), 1)

	first, ok := ix.GetFirstByName(KindClass, "Foo")
	require.True(t, ok)
	assert.Equal(t, "Foo", first.Name)

	_, ok = ix.GetFirstByName(KindClass, "Missing")
	assert.False(t, ok)
}

func TestScopeAt(t *testing.T) {
	dir := t.TempDir()
	src := "<?php function run() { /* body */ }"
	path := writeFile(t, dir, "app.php", src)

	fp := newFakeParser()
	fp.trees[path] = program(len(src), funcNode("run", 6, len(src)))
	ix := New(dir, WithParser(fp))
	_, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)

	scope, ok := ix.ScopeAt(path, 10)
	require.True(t, ok)
	assert.Equal(t, KindFunction, scope.Kind)

	root, ok := ix.ScopeAt(path, 2)
	require.True(t, ok)
	assert.Equal(t, KindFile, root.Kind)

	_, ok = ix.ScopeAt(filepath.Join(dir, "other.php"), 0)
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	src := "<?php class Foo {}"
	path := writeFile(t, dir, "app.php", src)

	fp := newFakeParser()
	fp.trees[path] = program(len(src), classNode("Foo", 6, len(src)))
	ix := New(dir, WithParser(fp))
	_, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)

	assert.True(t, ix.Remove(path))
	assert.False(t, ix.Remove(path), "second removal reports absence")

	stats := ix.Stats()
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0, stats.Symbols)
	assert.Equal(t, int64(0), stats.Size)
	assert.Empty(t, ix.GetByName(KindClass, "Foo", 0))
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "old.php", "<?php")
	newPath := filepath.Join(dir, "new.php")

	fp := newFakeParser()
	ix := New(dir, WithParser(fp))
	_, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, ix.Rename(path, newPath))

	f, ok := ix.GetFile(newPath)
	require.True(t, ok)
	assert.Equal(t, newPath, f.Name)
	_, ok = ix.GetFile(path)
	assert.False(t, ok)

	assert.Error(t, ix.Rename(path, newPath), "old name is no longer indexed")

	other := writeFile(t, dir, "other.php", "<?php")
	_, err = ix.Parse(context.Background(), other)
	require.NoError(t, err)
	assert.Error(t, ix.Rename(other, newPath), "target name already indexed")
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.php", "<?php")
	writeFile(t, dir, "sub/b.php", "<?php")
	writeFile(t, dir, "vendor/skip.php", "<?php")
	writeFile(t, dir, ".hidden/skip.php", "<?php")
	writeFile(t, dir, "notes.txt", "plain text")

	ix := New(dir, WithParser(newFakeParser()), WithExtensions(".php"))
	require.NoError(t, ix.Scan(context.Background()))

	names := ix.Filenames()
	assert.Equal(t, []string{
		filepath.Join(dir, "a.php"),
		filepath.Join(dir, "sub", "b.php"),
	}, names)
}

func TestScan_CollectsPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.php", "<?php")
	bad := writeFile(t, dir, "bad.php", "<?php @@")

	fp := newFakeParser()
	fp.errs[bad] = errors.New("unexpected token")
	ix := New(dir, WithParser(fp), WithExtensions(".php"))

	err := ix.Scan(context.Background())
	require.ErrorContains(t, err, "1 error(s)")

	_, ok := ix.GetFile(good)
	assert.True(t, ok, "scan continues past failing files")
	assert.Equal(t, 1, ix.Stats().Errors)
}

func TestScan_HonorsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.php", "<?php")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix := New(dir, WithParser(newFakeParser()), WithExtensions(".php"))
	assert.ErrorIs(t, ix.Scan(ctx), context.Canceled)
}

func TestEvents_ParseThenCacheHit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.php", "<?php")

	var events []Event
	ix := New(dir, WithParser(newFakeParser()), WithObserver(func(ev Event) {
		events = append(events, ev)
	}))

	_, err := ix.Parse(context.Background(), path)
	require.NoError(t, err)
	_, err = ix.Refresh(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, EventReadStarted, events[0].Type)
	assert.Equal(t, EventParsed, events[1].Type)
	assert.Equal(t, EventCacheHit, events[2].Type)
	assert.Same(t, events[1].File, events[2].File)
	assert.Equal(t, path, events[2].Filename)
}

func TestRelink_ResolvesIncludesAcrossParses(t *testing.T) {
	dir := t.TempDir()
	libSrc := "<?php function helper() {}"
	mainSrc := "<?php require_once 'lib.php';"
	libPath := writeFile(t, dir, "lib.php", libSrc)
	mainPath := writeFile(t, dir, "main.php", mainSrc)

	fp := newFakeParser()
	fp.trees[libPath] = program(len(libSrc), funcNode("helper", 6, len(libSrc)))
	fp.trees[mainPath] = program(len(mainSrc),
		node.New(node.KindInclude, 6, len(mainSrc)).
			Set("target", libPath).
			Set("once", true).
			Set("require", true))
	ix := New(dir, WithParser(fp))

	lib, err := ix.Parse(context.Background(), libPath)
	require.NoError(t, err)
	entry, err := ix.Parse(context.Background(), mainPath)
	require.NoError(t, err)

	exts := entry.GetByType(KindExternal, 0)
	require.Len(t, exts, 1)
	target, ok := exts[0].TargetFile()
	require.True(t, ok)
	assert.Same(t, lib, target)
}

func TestNormalizeNamespace(t *testing.T) {
	cases := map[string]string{
		"":          `\`,
		`\`:         `\`,
		"App":       `\App`,
		`\App`:      `\App`,
		`App\`:      `\App`,
		`\App\Sub\`: `\App\Sub`,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeNamespace(in), "input %q", in)
	}
}
