package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/internal/services"
	queueSvc "github.com/courtvoice/courtvoice/internal/services/queue"
	"github.com/courtvoice/courtvoice/pkg/queue"
)

// TurnRequest asks for one character's turn to be evaluated.
type TurnRequest struct {
	SessionID         uuid.UUID `json:"sessionId"`
	SourceCharacterID int64     `json:"sourceCharacterId"`
}

// TurnResponse acknowledges a queued turn.
type TurnResponse struct {
	RequestID string `json:"requestId"`
	Queued    bool   `json:"queued"`
}

// TurnHandler enqueues turn evaluations for the worker. Turns are never
// evaluated inline; the queue keeps them strictly sequential.
type TurnHandler struct {
	log     *slog.Logger
	storage services.Storage
	queue   *queueSvc.TurnQueue
}

func NewTurnHandler(log *slog.Logger, storage services.Storage, turnQueue *queueSvc.TurnQueue) *TurnHandler {
	return &TurnHandler{
		log:     log,
		storage: storage,
		queue:   turnQueue,
	}
}

func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == uuid.Nil {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	game, err := h.storage.LoadGameData(ctx, req.SessionID)
	if err != nil {
		h.log.Error("Failed to load game data", "error", err, "session_id", req.SessionID)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	if game == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if game.Character(req.SourceCharacterID) == nil {
		http.Error(w, "Source character not found in session", http.StatusNotFound)
		return
	}

	turnReq := queue.NewRequest(req.SessionID, req.SourceCharacterID)
	if err := h.queue.Enqueue(ctx, turnReq); err != nil {
		h.log.Error("Failed to enqueue turn", "error", err, "session_id", req.SessionID)
		http.Error(w, "Failed to enqueue turn", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(TurnResponse{
		RequestID: turnReq.RequestID,
		Queued:    true,
	})
}
