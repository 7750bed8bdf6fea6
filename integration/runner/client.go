package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/courtvoice/courtvoice/pkg/court"
	"github.com/courtvoice/courtvoice/pkg/turn"
)

// PollInterval is how often step expectations are rechecked.
const PollInterval = 500 * time.Millisecond

type turnResponse struct {
	RequestID string `json:"requestId"`
	Queued    bool   `json:"queued"`
}

type approvalsResponse struct {
	Approvals []*turn.PendingApproval `json:"approvals"`
}

// CreateSession posts the seed court to the API and returns the stored
// session.
func CreateSession(ctx context.Context, client *http.Client, baseURL string, seed SeedSession) (*court.GameData, error) {
	body, err := json.Marshal(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal seed session: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("create session returned %d: %s", resp.StatusCode, string(raw))
	}

	var game court.GameData
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		return nil, fmt.Errorf("failed to decode created session: %w", err)
	}
	return &game, nil
}

// GetSession retrieves the current session state.
func GetSession(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) (*court.GameData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/sessions/"+sessionID.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get session returned %d: %s", resp.StatusCode, string(raw))
	}

	var game court.GameData
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &game, nil
}

// DeleteSession removes a session. Best-effort cleanup after a suite.
func DeleteSession(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, baseURL+"/v1/sessions/"+sessionID.String(), nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete session returned %d", resp.StatusCode)
	}
	return nil
}

// EnqueueTurn posts a turn request and returns the queued request ID.
func EnqueueTurn(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID, sourceCharacterID int64) (string, error) {
	body, err := json.Marshal(map[string]any{
		"sessionId":         sessionID.String(),
		"sourceCharacterId": sourceCharacterID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal turn request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/turn", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue turn: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("turn endpoint returned %d (expected 202): %s", resp.StatusCode, string(raw))
	}

	var tr turnResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode turn response: %w", err)
	}
	if !tr.Queued {
		return "", fmt.Errorf("turn was not queued")
	}
	return tr.RequestID, nil
}

// ListApprovals fetches the worker's pending approval entries.
func ListApprovals(ctx context.Context, client *http.Client, workerURL string) ([]*turn.PendingApproval, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, workerURL+"/v1/approvals", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create approvals request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("approvals endpoint returned %d: %s", resp.StatusCode, string(raw))
	}

	var ar approvalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("failed to decode approvals: %w", err)
	}
	return ar.Approvals, nil
}

// ResolveApproval approves or declines one pending entry. mode is
// ResolveApprove or ResolveDecline.
func ResolveApproval(ctx context.Context, client *http.Client, workerURL, approvalID, mode string) error {
	url := fmt.Sprintf("%s/v1/approvals/%s/%s", workerURL, approvalID, mode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", mode, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s approval %s: %w", mode, approvalID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s approval returned %d: %s", mode, resp.StatusCode, string(raw))
	}
	return nil
}
