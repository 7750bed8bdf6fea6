package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/internal/services"
	"github.com/courtvoice/courtvoice/pkg/court"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionsHandler manages court sessions: the persisted character
// snapshot a turn evaluation runs against.
//
// Routes:
// POST /v1/sessions         - Create a session from an initial court
// GET /v1/sessions/{id}     - Read a session by ID
// DELETE /v1/sessions/{id}  - Delete a session by ID
type SessionsHandler struct {
	storage services.Storage
	logger  *slog.Logger
}

func NewSessionsHandler(logger *slog.Logger, storage services.Storage) *SessionsHandler {
	return &SessionsHandler{
		storage: storage,
		logger:  logger,
	}
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions")
	var sessionID uuid.UUID
	var err error

	if idStr := strings.Trim(path, "/"); idStr != "" {
		sessionID, err = uuid.Parse(idStr)
		if err != nil {
			h.logger.Warn("Invalid session ID", "id", idStr, "error", err)
			w.WriteHeader(http.StatusBadRequest)
			h.writeError(w, "Invalid session ID format")
			return
		}
	}

	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)

	case http.MethodGet:
		if sessionID == uuid.Nil {
			w.WriteHeader(http.StatusBadRequest)
			h.writeError(w, "Session ID is required for GET requests")
			return
		}
		h.handleRead(w, r, sessionID)

	case http.MethodDelete:
		if sessionID == uuid.Nil {
			w.WriteHeader(http.StatusBadRequest)
			h.writeError(w, "Session ID is required for DELETE requests")
			return
		}
		h.handleDelete(w, r, sessionID)

	default:
		h.logger.Warn("Method not allowed for sessions endpoint", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		h.writeError(w, "Method not allowed. Supported methods: POST, GET, DELETE")
	}
}

type createSessionRequest struct {
	PlayerID   int64              `json:"playerId"`
	Date       string             `json:"date,omitempty"`
	Characters []*court.Character `json:"characters"`
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		h.writeError(w, "Invalid request body")
		return
	}
	if len(req.Characters) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		h.writeError(w, "At least one character is required")
		return
	}

	game := court.NewGameData()
	game.PlayerID = req.PlayerID
	game.Date = req.Date
	for _, c := range req.Characters {
		if err := game.AddCharacter(c); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			h.writeError(w, err.Error())
			return
		}
	}

	if err := h.storage.SaveGameData(r.Context(), game.SessionID, game); err != nil {
		h.logger.Error("Failed to save session", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		h.writeError(w, "Failed to save session")
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(game); err != nil {
		h.logger.Error("Failed to encode session", "error", err)
	}
}

func (h *SessionsHandler) handleRead(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	game, err := h.storage.LoadGameData(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to load session", "error", err, "session_id", sessionID)
		w.WriteHeader(http.StatusInternalServerError)
		h.writeError(w, "Failed to load session")
		return
	}
	if game == nil {
		w.WriteHeader(http.StatusNotFound)
		h.writeError(w, "Session not found")
		return
	}

	if err := json.NewEncoder(w).Encode(game); err != nil {
		h.logger.Error("Failed to encode session", "error", err)
	}
}

func (h *SessionsHandler) handleDelete(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	if err := h.storage.DeleteGameData(r.Context(), sessionID); err != nil {
		h.logger.Error("Failed to delete session", "error", err, "session_id", sessionID)
		w.WriteHeader(http.StatusInternalServerError)
		h.writeError(w, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) writeError(w http.ResponseWriter, msg string) {
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
