package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/courtvoice/courtvoice/pkg/action"
	"github.com/courtvoice/courtvoice/pkg/turn"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func listApprovals(client *http.Client, baseURL string) ([]*turn.PendingApproval, error) {
	resp, err := client.Get(baseURL + "/v1/approvals")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var listResp struct {
		Approvals []*turn.PendingApproval `json:"approvals"`
	}
	if err := json.Unmarshal(body, &listResp); err != nil {
		return nil, fmt.Errorf("failed to parse approvals response: %w", err)
	}
	return listResp.Approvals, nil
}

func previewApproval(client *http.Client, baseURL string, id string) (*action.ExecutionResult, error) {
	resp, err := client.Post(fmt.Sprintf("%s/v1/approvals/%s/preview", baseURL, id), "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result action.ExecutionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse preview response: %w", err)
	}
	return &result, nil
}

func resolveApproval(client *http.Client, baseURL string, id string, verb string) error {
	resp, err := client.Post(fmt.Sprintf("%s/v1/approvals/%s/%s", baseURL, id, verb), "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
