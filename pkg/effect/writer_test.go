package effect

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvoice/courtvoice/pkg/court"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGame(t *testing.T, ids ...int64) *court.GameData {
	t.Helper()
	g := court.NewGameData()
	for _, id := range ids {
		require.NoError(t, g.AddCharacter(&court.Character{ID: id}))
	}
	return g
}

func TestCharacterIndex(t *testing.T) {
	g := testGame(t, 50, 10, 30)

	idx, err := CharacterIndex(g, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = CharacterIndex(g, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = CharacterIndex(g, 99)
	assert.ErrorContains(t, err, "character 99 not found")
}

func TestComposeSourceOnly(t *testing.T) {
	g := testGame(t, 1, 2, 3)

	out, err := Compose(g, 3, nil, "add_gold = 10")
	require.NoError(t, err)

	expected := "ordered_in_global_list = {\n" +
		"\tvariable = votc_characters\n" +
		"\tposition = 2\n" +
		"\tsave_scope_as = votc_action_source\n" +
		"}\n" +
		"add_gold = 10\n\n"
	assert.Equal(t, expected, out)
}

func TestComposeSourceAndTarget(t *testing.T) {
	g := testGame(t, 1, 2, 3)
	target := int64(2)

	out, err := Compose(g, 1, &target, "votc_action_source = { imprison = votc_action_target }\n")
	require.NoError(t, err)

	expected := "ordered_in_global_list = {\n" +
		"\tvariable = votc_characters\n" +
		"\tposition = 0\n" +
		"\tsave_scope_as = votc_action_source\n" +
		"}\n" +
		"ordered_in_global_list = {\n" +
		"\tvariable = votc_characters\n" +
		"\tposition = 1\n" +
		"\tsave_scope_as = votc_action_target\n" +
		"}\n" +
		"votc_action_source = { imprison = votc_action_target }\n\n"
	assert.Equal(t, expected, out)
}

func TestComposeUnknownCharacter(t *testing.T) {
	g := testGame(t, 1)

	_, err := Compose(g, 99, nil, "body")
	assert.Error(t, err)

	badTarget := int64(42)
	_, err = Compose(g, 1, &badTarget, "body")
	assert.Error(t, err)
}

func TestWriterAppendAndTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "effects.txt")
	w := NewWriter(path, testLogger())
	assert.Equal(t, path, w.Path())

	require.NoError(t, w.Append("first = yes\n\n"))
	require.NoError(t, w.Append("second = yes\n\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first = yes\n\nsecond = yes\n\n", string(data))

	require.NoError(t, w.Truncate())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
