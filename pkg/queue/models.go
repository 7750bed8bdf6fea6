package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Request is one queued turn evaluation: a single court character gets
// the chance to act.
type Request struct {
	RequestID         string    `json:"request_id"`
	SessionID         uuid.UUID `json:"session_id"`
	SourceCharacterID int64     `json:"source_character_id"`
	EnqueuedAt        time.Time `json:"enqueued_at"`
}

// NewRequest builds a turn request with a fresh id.
func NewRequest(sessionID uuid.UUID, sourceCharacterID int64) *Request {
	return &Request{
		RequestID:         uuid.New().String(),
		SessionID:         sessionID,
		SourceCharacterID: sourceCharacterID,
		EnqueuedAt:        time.Now(),
	}
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
