package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvoice/courtvoice/internal/services"
	"github.com/courtvoice/courtvoice/pkg/action"
)

type fakeCatalog struct {
	defs     map[string]*action.Definition
	statuses map[string]action.ValidationStatus
}

func (f *fakeCatalog) LoadAll() (map[string]*action.Definition, map[string]action.ValidationStatus, error) {
	return f.defs, f.statuses, nil
}

func newActionsHandler(t *testing.T) *ActionsHandler {
	t.Helper()
	catalog := &fakeCatalog{
		defs: map[string]*action.Definition{
			"give_gift":   {Signature: "give_gift", Title: "Give Gift", Provenance: action.ProvenanceStandard},
			"declare_war": {Signature: "declare_war", Title: "Declare War", Provenance: action.ProvenanceCustom, IsDestructive: true},
		},
		statuses: map[string]action.ValidationStatus{
			"give_gift":   {Valid: true},
			"declare_war": {Valid: true},
		},
	}
	registry := action.NewRegistry(catalog, services.NewMockStorage(), testLogger())
	require.NoError(t, registry.Reload(context.Background()))
	return NewActionsHandler(testLogger(), registry)
}

type actionsListResponse struct {
	Actions []ActionSummary `json:"actions"`
}

func listActions(t *testing.T, h *ActionsHandler, url string) actionsListResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp actionsListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestActionsList(t *testing.T) {
	h := newActionsHandler(t)

	resp := listActions(t, h, "/v1/actions")
	require.Len(t, resp.Actions, 2)

	bySig := map[string]ActionSummary{}
	for _, a := range resp.Actions {
		bySig[a.Signature] = a
	}
	assert.True(t, bySig["declare_war"].IsDestructive)
	assert.False(t, bySig["give_gift"].IsDestructive)
	assert.Equal(t, action.ProvenanceStandard, bySig["give_gift"].Provenance)
	assert.True(t, bySig["give_gift"].Valid)
}

func TestActionsPatchDisable(t *testing.T) {
	h := newActionsHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/v1/actions/give_gift", strings.NewReader(`{"disabled": true}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Disabled actions drop out of the default list but stay visible with
	// includeDisabled.
	assert.Len(t, listActions(t, h, "/v1/actions").Actions, 1)

	all := listActions(t, h, "/v1/actions?includeDisabled=true")
	require.Len(t, all.Actions, 2)
	for _, a := range all.Actions {
		if a.Signature == "give_gift" {
			assert.True(t, a.Disabled)
		}
	}
}

func TestActionsPatchDestructiveOverride(t *testing.T) {
	h := newActionsHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/v1/actions/declare_war", strings.NewReader(`{"destructiveOverride": false}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var summary ActionSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.False(t, summary.IsDestructive)

	// Explicit null clears the override, restoring the script's own flag.
	req = httptest.NewRequest(http.MethodPatch, "/v1/actions/declare_war", strings.NewReader(`{"destructiveOverride": null}`))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.True(t, summary.IsDestructive)
}

func TestActionsPatchUnknownSignature(t *testing.T) {
	h := newActionsHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/v1/actions/ghost", strings.NewReader(`{"disabled": true}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestActionsPatchBadBody(t *testing.T) {
	h := newActionsHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/v1/actions/give_gift", strings.NewReader(`{"destructiveOverride": "maybe"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActionsReload(t *testing.T) {
	h := newActionsHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/actions/reload", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, true, resp["reloaded"])
	assert.Equal(t, float64(2), resp["count"])
}

func TestActionsMethodNotAllowed(t *testing.T) {
	h := newActionsHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/v1/actions", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
