package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPIServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	a := newTestApp(t, cfg)
	st := seedSession(t, a, "fix the typo")

	h := newAPIServer(a).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+string(st.SessionID), nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "succeeded", body["status"])

	// metrics come from the app registry that the orchestrator records into
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `helix_workflow_runs_total{outcome="succeeded"} 1`)
	assert.Contains(t, rec.Body.String(), `helix_phase_attempts_total`)
	assert.Contains(t, rec.Body.String(), `helix_api_requests_total{code="200",method="GET",route="/api/v1/sessions/{sessionID}"} 1`)
}

func TestNewAPIServer_ListAfterBatch(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	seedSession(t, a, "fix the typo")
	seedSession(t, a, "patch the parser")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions?status=succeeded", nil).WithContext(context.Background())
	newAPIServer(a).Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
}
