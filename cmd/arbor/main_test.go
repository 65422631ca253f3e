package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("yaml"))
	assert.Error(t, validateFormat(""))
}

func TestResolveCachePath(t *testing.T) {
	defer func() { flagCache = "" }()

	flagCache = ""
	assert.Equal(t, filepath.Join("/srv/app", ".arbor", "index.db"), resolveCachePath("/srv/app"))

	flagCache = "custom.db"
	assert.Equal(t, filepath.Join("/srv/app", "custom.db"), resolveCachePath("/srv/app"))

	flagCache = "/var/cache/arbor.db"
	assert.Equal(t, "/var/cache/arbor.db", resolveCachePath("/srv/app"))
}

func TestResolveTargetDir(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)

	file := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = resolveTargetDir([]string{file})
	assert.ErrorContains(t, err, "not a directory")
}

func TestFormatEntitiesText(t *testing.T) {
	var buf bytes.Buffer
	formatEntitiesText(&buf, []CLIEntity{
		{Name: "Foo", Kind: "class", File: "a.php", Start: 6, End: 18},
	})
	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Foo")
	assert.Contains(t, out, "class")
	assert.Contains(t, out, "a.php")
}

func TestFormatNamespaceText(t *testing.T) {
	var buf bytes.Buffer
	formatNamespaceText(&buf, CLINamespace{
		Name:      `\App`,
		Classes:   []CLIEntity{{Name: "Foo", File: "a.php", Start: 6}},
		Functions: []CLIEntity{{Name: "bar", File: "b.php", Start: 10}},
	})
	out := buf.String()
	assert.Contains(t, out, `Namespace: \App`)
	assert.Contains(t, out, "Classes:")
	assert.Contains(t, out, "Functions:")
	assert.NotContains(t, out, "Traits:", "empty sections are omitted")
}

func TestResultLen(t *testing.T) {
	assert.Equal(t, 0, resultLen(nil))
	assert.Equal(t, 2, resultLen([]CLIEntity{{}, {}}))
	assert.Equal(t, 1, resultLen([]string{"a.php"}))
	assert.Equal(t, 1, resultLen(CLIStats{}))
}
