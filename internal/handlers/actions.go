package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/courtvoice/courtvoice/pkg/action"
)

// ActionSummary is the API view of one loaded action.
type ActionSummary struct {
	Signature     string `json:"signature"`
	Title         string `json:"title,omitempty"`
	Provenance    string `json:"provenance"`
	IsDestructive bool   `json:"isDestructive"`
	Disabled      bool   `json:"disabled"`
	Valid         bool   `json:"valid"`
	Message       string `json:"message,omitempty"`
}

// ActionsHandler serves the action catalog: listing, reload, and
// per-signature user toggles.
type ActionsHandler struct {
	log      *slog.Logger
	registry *action.Registry
}

func NewActionsHandler(log *slog.Logger, registry *action.Registry) *ActionsHandler {
	return &ActionsHandler{
		log:      log,
		registry: registry,
	}
}

func (h *ActionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/actions")
	path = strings.Trim(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case path == "reload" && r.Method == http.MethodPost:
		h.handleReload(w, r)
	case path != "" && path != "reload" && r.Method == http.MethodPatch:
		h.handlePatch(w, r, path)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ActionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("includeDisabled") == "true"

	defs := h.registry.GetAllActions(includeDisabled)
	summaries := make([]ActionSummary, 0, len(defs))
	for _, def := range defs {
		status, _ := h.registry.Status(def.Signature)
		summaries = append(summaries, ActionSummary{
			Signature:     def.Signature,
			Title:         def.Title,
			Provenance:    def.Provenance,
			IsDestructive: h.registry.EffectiveDestructive(def.Signature),
			Disabled:      h.registry.IsDisabled(def.Signature),
			Valid:         status.Valid,
			Message:       status.Message,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"actions": summaries}); err != nil {
		h.log.Error("Failed to encode actions list", "error", err)
	}
}

func (h *ActionsHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Reload(r.Context()); err != nil {
		h.log.Error("Failed to reload actions", "error", err)
		http.Error(w, "Failed to reload actions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"reloaded": true,
		"count":    len(h.registry.GetAllActions(true)),
	})
}

// patchRequest distinguishes an absent destructive override from an
// explicit null, which clears it.
type patchRequest struct {
	Disabled            *bool           `json:"disabled"`
	DestructiveOverride json.RawMessage `json:"destructiveOverride"`
}

func (h *ActionsHandler) handlePatch(w http.ResponseWriter, r *http.Request, signature string) {
	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if req.Disabled != nil {
		if err := h.registry.SetActionDisabled(ctx, signature, *req.Disabled); err != nil {
			h.log.Warn("Failed to set disabled flag", "signature", signature, "error", err)
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	if len(req.DestructiveOverride) > 0 {
		var override *bool
		if string(req.DestructiveOverride) != "null" {
			var v bool
			if err := json.Unmarshal(req.DestructiveOverride, &v); err != nil {
				http.Error(w, "destructiveOverride must be a boolean or null", http.StatusBadRequest)
				return
			}
			override = &v
		}
		if err := h.registry.SetDestructiveOverride(ctx, signature, override); err != nil {
			h.log.Warn("Failed to set destructive override", "signature", signature, "error", err)
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	status, _ := h.registry.Status(signature)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ActionSummary{
		Signature:     signature,
		IsDestructive: h.registry.EffectiveDestructive(signature),
		Valid:         status.Valid,
		Message:       status.Message,
	})
}
