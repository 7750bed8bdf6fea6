package loader

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvoice/courtvoice/pkg/action"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadAllMergesCollections(t *testing.T) {
	root := t.TempDir()
	writeScript(t, filepath.Join(root, "standard"), "alpha.lua",
		"return { signature = \"alpha\", description = \"d\", args = {}, check = function() end, run = function() end }")
	writeScript(t, filepath.Join(root, "custom"), "beta.lua",
		"return { signature = \"beta\", description = \"d\", args = {}, check = function() end, run = function() end }")

	defs, statuses, err := New(root, testLogger()).LoadAll()
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, action.ProvenanceStandard, defs["alpha"].Provenance)
	assert.Equal(t, action.ProvenanceCustom, defs["beta"].Provenance)
	assert.True(t, statuses["alpha"].Valid)
	assert.True(t, statuses["beta"].Valid)
}

func TestLoadAllRecordsInvalidPlaceholder(t *testing.T) {
	root := t.TempDir()
	writeScript(t, filepath.Join(root, "custom"), "broken.lua", "this is not lua at all {{{")

	defs, statuses, err := New(root, testLogger()).LoadAll()
	require.NoError(t, err)

	// Invalid scripts are keyed by filename so the failure can be surfaced.
	require.Contains(t, defs, "broken.lua")
	status := statuses["broken.lua"]
	assert.False(t, status.Valid)
	assert.NotEmpty(t, status.Message)
}

func TestLoadAllDuplicateSignature(t *testing.T) {
	root := t.TempDir()
	std := filepath.Join(root, "standard")
	writeScript(t, std, "a_first.lua",
		"return { signature = \"dup\", description = \"d\", args = {}, check = function() end, run = function() end }")
	writeScript(t, std, "b_second.lua",
		"return { signature = \"dup\", description = \"d\", args = {}, check = function() end, run = function() end }")

	defs, statuses, err := New(root, testLogger()).LoadAll()
	require.NoError(t, err)

	assert.True(t, statuses["dup"].Valid)
	assert.Equal(t, filepath.Join(std, "a_first.lua"), defs["dup"].Path)

	second := statuses["b_second.lua"]
	assert.False(t, second.Valid)
	assert.Contains(t, second.Message, "duplicate signature")
}

func TestLoadAllSkipsNonScripts(t *testing.T) {
	root := t.TempDir()
	std := filepath.Join(root, "standard")
	writeScript(t, std, "notes.txt", "not a script")
	writeScript(t, std, "real.lua",
		"return { signature = \"real\", description = \"d\", args = {}, check = function() end, run = function() end }")
	require.NoError(t, os.MkdirAll(filepath.Join(std, "subdir"), 0o755))

	defs, _, err := New(root, testLogger()).LoadAll()
	require.NoError(t, err)
	assert.Len(t, defs, 1)
	assert.Contains(t, defs, "real")
}

func TestLoadAllMissingDirectories(t *testing.T) {
	defs, statuses, err := New(t.TempDir(), testLogger()).LoadAll()
	require.NoError(t, err)
	assert.Empty(t, defs)
	assert.Empty(t, statuses)
}

func TestLoadAllIdempotent(t *testing.T) {
	root := t.TempDir()
	writeScript(t, filepath.Join(root, "standard"), "alpha.lua",
		"return { signature = \"alpha\", description = \"d\", args = {}, check = function() end, run = function() end }")

	ld := New(root, testLogger())
	first, _, err := ld.LoadAll()
	require.NoError(t, err)
	second, _, err := ld.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}
