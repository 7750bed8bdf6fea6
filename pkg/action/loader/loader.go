// Package loader discovers action scripts on disk and extracts their
// metadata through the evaluation sandbox.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/action/sandbox"
)

const scriptExtension = ".lua"

// Loader scans the two fixed collections under the actions root:
// "standard" (bundled defaults) and "custom" (user-authored). Both are
// scanned non-recursively and merged into one signature-keyed catalog.
type Loader struct {
	root string
	log  *slog.Logger
}

func New(root string, log *slog.Logger) *Loader {
	return &Loader{root: root, log: log}
}

// result is one full scan of the actions root. Invalid scripts get a
// placeholder definition keyed by filename so callers can surface the
// failure; their status marks them unavailable.
type result struct {
	Definitions map[string]*action.Definition
	Statuses    map[string]action.ValidationStatus
}

// LoadAll re-scans both collections from scratch. It is idempotent: the
// returned catalog fully replaces any previous one.
func (ld *Loader) LoadAll() (map[string]*action.Definition, map[string]action.ValidationStatus, error) {
	res := &result{
		Definitions: make(map[string]*action.Definition),
		Statuses:    make(map[string]action.ValidationStatus),
	}
	for _, provenance := range []string{action.ProvenanceStandard, action.ProvenanceCustom} {
		dir := filepath.Join(ld.root, provenance)
		if err := ld.loadDir(res, dir, provenance); err != nil {
			return nil, nil, err
		}
	}
	return res.Definitions, res.Statuses, nil
}

func (ld *Loader) loadDir(res *result, dir string, provenance string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			ld.log.Debug("Actions directory missing, skipping", "dir", dir)
			return nil
		}
		return fmt.Errorf("failed to read actions directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), scriptExtension) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ld.loadFile(res, path, provenance)
	}
	return nil
}

// loadFile loads a single script. Failures never abort the scan; they are
// recorded as invalid entries.
func (ld *Loader) loadFile(res *result, path string, provenance string) {
	filename := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		ld.record(res, placeholder(filename, path, provenance), action.ValidationStatus{
			Valid:   false,
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
		return
	}

	def, err := sandbox.ExtractDefinition(string(data), ld.log)
	if err != nil {
		ld.record(res, placeholder(filename, path, provenance), action.ValidationStatus{
			Valid:   false,
			Message: err.Error(),
		})
		ld.log.Warn("Invalid action script", "path", path, "error", err)
		return
	}

	def.Path = path
	def.Provenance = provenance

	if _, exists := res.Definitions[def.Signature]; exists {
		ld.record(res, placeholder(filename, path, provenance), action.ValidationStatus{
			Valid:   false,
			Message: fmt.Sprintf("duplicate signature %q", def.Signature),
		})
		return
	}

	ld.record(res, def, action.ValidationStatus{Valid: true})
}

func (ld *Loader) record(res *result, def *action.Definition, status action.ValidationStatus) {
	res.Definitions[def.Signature] = def
	res.Statuses[def.Signature] = status
}

// placeholder builds a stub definition for a script that failed to load,
// keyed by its filename.
func placeholder(filename, path, provenance string) *action.Definition {
	return &action.Definition{
		Signature:  filename,
		Path:       path,
		Provenance: provenance,
	}
}
