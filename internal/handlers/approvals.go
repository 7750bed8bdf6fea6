package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/courtvoice/courtvoice/pkg/turn"
)

// ApprovalsHandler exposes the pending approval set and its decisions.
type ApprovalsHandler struct {
	log       *slog.Logger
	approvals *turn.Approvals
}

func NewApprovalsHandler(log *slog.Logger, approvals *turn.Approvals) *ApprovalsHandler {
	return &ApprovalsHandler{
		log:       log,
		approvals: approvals,
	}
}

func (h *ApprovalsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/approvals")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, verb := parts[0], parts[1]

	switch verb {
	case "preview":
		h.handlePreview(w, r, id)
	case "approve":
		h.handleDecision(w, r, id, h.approvals.Approve)
	case "decline":
		h.handleDecision(w, r, id, h.approvals.Decline)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *ApprovalsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	pending := h.approvals.List()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"approvals": pending}); err != nil {
		h.log.Error("Failed to encode approvals list", "error", err)
	}
}

func (h *ApprovalsHandler) handlePreview(w http.ResponseWriter, r *http.Request, id string) {
	res, err := h.approvals.Preview(id)
	if err != nil {
		if errors.Is(err, turn.ErrApprovalNotFound) {
			http.Error(w, "Pending approval not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to preview approval", "error", err, "id", id)
		http.Error(w, "Failed to preview", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)
}

func (h *ApprovalsHandler) handleDecision(w http.ResponseWriter, r *http.Request, id string, decide func(string) error) {
	if err := decide(id); err != nil {
		if errors.Is(err, turn.ErrApprovalNotFound) {
			http.Error(w, "Pending approval not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to resolve approval", "error", err, "id", id)
		http.Error(w, "Failed to resolve approval", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "resolved": true})
}
