// Package effect composes engine-script effects and appends them to the
// run file the game polls. The scope-binding preamble and variable names
// are part of the wire contract with the game-side script and must be
// reproduced byte-exactly.
package effect

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/courtvoice/courtvoice/pkg/court"
)

// Wire contract with the game-side polling script.
const (
	listVariable = "votc_characters"
	sourceScope  = "votc_action_source"
	targetScope  = "votc_action_target"
)

// CharacterIndex returns the 0-based position of a character id in the
// insertion-ordered collection. A missing id is a caller bug, not a
// runtime condition, and is reported as an error.
func CharacterIndex(game *court.GameData, id int64) (int, error) {
	for i, c := range game.Characters {
		if c.ID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("character %d not found in game data", id)
}

// Compose prefixes the effect body with scope-binding blocks for the
// source and, when present, the target character. The positional lookup
// must match the order the engine assigns to the same list.
func Compose(game *court.GameData, sourceID int64, targetID *int64, body string) (string, error) {
	var sb strings.Builder

	sourceIndex, err := CharacterIndex(game, sourceID)
	if err != nil {
		return "", err
	}
	writeScopeBlock(&sb, sourceIndex, sourceScope)

	if targetID != nil {
		targetIndex, err := CharacterIndex(game, *targetID)
		if err != nil {
			return "", err
		}
		writeScopeBlock(&sb, targetIndex, targetScope)
	}

	sb.WriteString(strings.TrimRight(body, "\n"))
	sb.WriteString("\n\n")
	return sb.String(), nil
}

func writeScopeBlock(sb *strings.Builder, position int, scopeName string) {
	fmt.Fprintf(sb, "ordered_in_global_list = {\n\tvariable = %s\n\tposition = %d\n\tsave_scope_as = %s\n}\n", listVariable, position, scopeName)
}

// Writer appends composed effects to the run file. Appends are serialized
// so concurrent compositions within a turn can never interleave: the game
// consumes the file line by line.
type Writer struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

func NewWriter(path string, log *slog.Logger) *Writer {
	return &Writer{path: path, log: log}
}

// Append writes one composed effect to the end of the run file.
func (w *Writer) Append(effectText string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open run file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(effectText); err != nil {
		return fmt.Errorf("failed to append to run file: %w", err)
	}
	w.log.Debug("Effect appended", "bytes", len(effectText))
	return nil
}

// Truncate clears the run file. Called between major phases by the
// conversation driver, after the game has consumed prior effects.
func (w *Writer) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.WriteFile(w.path, nil, 0o644); err != nil {
		return fmt.Errorf("failed to truncate run file: %w", err)
	}
	return nil
}

// Path returns the run file location.
func (w *Writer) Path() string {
	return w.path
}
