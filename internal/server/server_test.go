package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/relay/internal/metrics"
	"github.com/normanking/relay/internal/orchestrator"
	"github.com/normanking/relay/internal/quota"
	"github.com/normanking/relay/internal/router"
)

type cannedGen struct {
	reply string
}

func (g *cannedGen) Generate(ctx context.Context, req *router.InferenceRequest) *router.InferenceResult {
	return &router.InferenceResult{Text: g.reply, Provider: "fake"}
}

type stubStatus struct{}

func (s *stubStatus) ProviderStatus() map[string]bool {
	return map[string]bool{"gemini": true, "groq": false}
}

func (s *stubStatus) QuotaStatus() quota.Snapshot {
	return quota.Snapshot{Period: "2026-08"}
}

func newTestServer(reply string) *Server {
	pipe := orchestrator.New(orchestrator.Config{Generator: &cannedGen{reply: reply}})
	return New(DefaultConfig(), pipe, &stubStatus{})
}

func TestHandleQuery(t *testing.T) {
	srv := newTestServer("Namaste! How can I help?")

	body := `{"message": "Hello", "user_id": "u1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Namaste! How can I help?", resp.Response)
	assert.Equal(t, "general", resp.Intent)
	assert.True(t, resp.Reviewed)
	assert.False(t, resp.Verified)
	assert.NotEmpty(t, resp.AgentUsed)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHandleQueryMalformedInput(t *testing.T) {
	srv := newTestServer("ok")

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"message":`},
		{"empty message", `{"message": "   "}`},
		{"missing message", `{"user_id": "u1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.routes().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer("ok")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Providers["gemini"])
	assert.False(t, resp.Providers["groq"])
	assert.Contains(t, resp.Agents, "General Assistant")
	assert.Contains(t, resp.Agents, "Search Agent")
}

type stubMetrics struct{}

func (s *stubMetrics) Snapshot() metrics.Snapshot {
	return metrics.Snapshot{Requests: 7, Intents: map[string]int{"general": 7}}
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer("ok").WithMetrics(&stubMetrics{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 7, snap.Requests)
	assert.Equal(t, 7, snap.Intents["general"])
}

func TestHandleMetricsNotEnabled(t *testing.T) {
	srv := newTestServer("ok")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer("ok")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
