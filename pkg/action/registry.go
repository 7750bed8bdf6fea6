package action

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
)

// CatalogSource produces a fresh signature-keyed catalog. Implemented by
// the on-disk loader; tests swap in fakes.
type CatalogSource interface {
	LoadAll() (map[string]*Definition, map[string]ValidationStatus, error)
}

// SettingsStore persists per-signature user state so it survives reloads
// and restarts.
type SettingsStore interface {
	LoadActionSettings(ctx context.Context) (*Settings, error)
	SaveActionSettings(ctx context.Context, settings *Settings) error
}

// Settings is the registry-level record kept separate from the loaded
// definitions: user toggles plus the last validation outcome per
// signature. It is replaced whole on every write.
type Settings struct {
	Disabled             map[string]bool             `json:"disabled,omitempty"`
	DestructiveOverrides map[string]bool             `json:"destructive_overrides,omitempty"`
	Validation           map[string]ValidationStatus `json:"validation,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		Disabled:             make(map[string]bool),
		DestructiveOverrides: make(map[string]bool),
		Validation:           make(map[string]ValidationStatus),
	}
}

func (s *Settings) clone() *Settings {
	return &Settings{
		Disabled:             maps.Clone(s.Disabled),
		DestructiveOverrides: maps.Clone(s.DestructiveOverrides),
		Validation:           maps.Clone(s.Validation),
	}
}

// Registry is the in-memory catalog of loaded actions. It starts empty
// and is populated only via Reload. One instance is constructed at
// startup and injected where needed.
type Registry struct {
	mu          sync.RWMutex
	source      CatalogSource
	store       SettingsStore
	log         *slog.Logger
	defs        map[string]*Definition
	settings    *Settings
	subscribers []func([]*Definition)
}

func NewRegistry(source CatalogSource, store SettingsStore, log *slog.Logger) *Registry {
	return &Registry{
		source:   source,
		store:    store,
		log:      log,
		defs:     make(map[string]*Definition),
		settings: NewSettings(),
	}
}

// Reload discards the current catalog and re-scans both action
// collections. User toggles are kept for signatures that still exist and
// dropped for ones that disappeared. Subscribers are notified with the
// full fresh list.
func (r *Registry) Reload(ctx context.Context) error {
	defs, statuses, err := r.source.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load actions: %w", err)
	}

	stored, err := r.store.LoadActionSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load action settings: %w", err)
	}
	if stored == nil {
		stored = NewSettings()
	}

	next := NewSettings()
	for sig, status := range statuses {
		next.Validation[sig] = status
	}
	for sig, disabled := range stored.Disabled {
		if _, exists := defs[sig]; exists && disabled {
			next.Disabled[sig] = true
		}
	}
	for sig, override := range stored.DestructiveOverrides {
		if _, exists := defs[sig]; exists {
			next.DestructiveOverrides[sig] = override
		}
	}

	if err := r.store.SaveActionSettings(ctx, next); err != nil {
		return fmt.Errorf("failed to save action settings: %w", err)
	}

	r.mu.Lock()
	r.defs = defs
	r.settings = next
	subscribers := r.subscribers
	r.mu.Unlock()

	r.log.Info("Actions reloaded", "count", len(defs))

	all := r.GetAllActions(true)
	for _, notify := range subscribers {
		notify(all)
	}
	return nil
}

// GetAllActions returns valid actions. With includeDisabled false,
// signatures in the disabled set are filtered out as well. Order is not
// significant.
func (r *Registry) GetAllActions(includeDisabled bool) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.defs))
	for sig, def := range r.defs {
		if !r.settings.Validation[sig].Valid {
			continue
		}
		if !includeDisabled && r.settings.Disabled[sig] {
			continue
		}
		out = append(out, def)
	}
	return out
}

// Get returns the definition for a signature, valid or not.
func (r *Registry) Get(signature string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[signature]
	return def, ok
}

// Status returns the last validation outcome for a signature.
func (r *Registry) Status(signature string) (ValidationStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.settings.Validation[signature]
	return status, ok
}

// SetActionDisabled toggles a signature's disabled flag. The flag lives
// in the settings record, so it survives a reload while the signature
// still exists.
func (r *Registry) SetActionDisabled(ctx context.Context, signature string, disabled bool) error {
	return r.updateSettings(ctx, signature, func(s *Settings) {
		if disabled {
			s.Disabled[signature] = true
		} else {
			delete(s.Disabled, signature)
		}
	})
}

// SetDestructiveOverride sets or clears (nil) the per-signature
// destructiveness override.
func (r *Registry) SetDestructiveOverride(ctx context.Context, signature string, override *bool) error {
	return r.updateSettings(ctx, signature, func(s *Settings) {
		if override == nil {
			delete(s.DestructiveOverrides, signature)
		} else {
			s.DestructiveOverrides[signature] = *override
		}
	})
}

func (r *Registry) updateSettings(ctx context.Context, signature string, mutate func(*Settings)) error {
	r.mu.Lock()
	if _, exists := r.defs[signature]; !exists {
		r.mu.Unlock()
		return fmt.Errorf("unknown action %q", signature)
	}
	next := r.settings.clone()
	mutate(next)
	r.settings = next
	r.mu.Unlock()

	if err := r.store.SaveActionSettings(ctx, next); err != nil {
		return fmt.Errorf("failed to save action settings: %w", err)
	}
	return nil
}

// EffectiveDestructive resolves a signature's destructiveness: the user
// override when present, otherwise the definition's own flag.
func (r *Registry) EffectiveDestructive(signature string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if override, ok := r.settings.DestructiveOverrides[signature]; ok {
		return override
	}
	if def, ok := r.defs[signature]; ok {
		return def.IsDestructive
	}
	return false
}

// IsDisabled reports whether a signature is currently disabled.
func (r *Registry) IsDisabled(signature string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings.Disabled[signature]
}

// Subscribe registers a callback invoked with the full action list after
// every reload.
func (r *Registry) Subscribe(fn func([]*Definition)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}
