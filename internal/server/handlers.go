package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/relay/internal/llm"
	"github.com/normanking/relay/internal/orchestrator"
	"github.com/normanking/relay/internal/search"
)

// ChatMessage is one prior turn supplied by the caller.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Message     string        `json:"message"`
	UserID      string        `json:"user_id"`
	Context     []ChatMessage `json:"context,omitempty"`
	VerifyFacts bool          `json:"verify_facts,omitempty"`
}

// QueryResponse is the finalized pipeline outcome.
type QueryResponse struct {
	Response   string          `json:"response"`
	Intent     string          `json:"intent"`
	AgentUsed  string          `json:"agent_used"`
	Sources    []search.Result `json:"sources,omitempty"`
	Reviewed   bool            `json:"reviewed"`
	Verified   bool            `json:"verified"`
	Confidence float64         `json:"confidence"`
	Timestamp  string          `json:"timestamp"`
}

// handleQuery runs one message through the pipeline. A completed run is
// always 200, even when the pipeline degraded to an apology; 400 is
// reserved for malformed input.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	history := make([]llm.Message, 0, len(req.Context))
	for _, m := range req.Context {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	ctx, cancel := contextWithTimeout(r, s.cfg.RequestTimeout)
	defer cancel()

	out := s.pipe.Process(ctx, orchestrator.Request{
		Message:     req.Message,
		UserID:      req.UserID,
		History:     history,
		VerifyFacts: req.VerifyFacts,
	})

	writeJSON(w, http.StatusOK, QueryResponse{
		Response:   out.Response,
		Intent:     string(out.Intent),
		AgentUsed:  out.AgentUsed,
		Sources:    out.Sources,
		Reviewed:   out.Reviewed,
		Verified:   out.Verified,
		Confidence: out.Confidence,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Providers map[string]bool `json:"providers,omitempty"`
	Quota     any             `json:"quota,omitempty"`
	Agents    []string        `json:"agents,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.status != nil {
		resp.Providers = s.status.ProviderStatus()
		resp.Quota = s.status.QuotaStatus()
	}
	if s.pipe != nil {
		resp.Agents = s.pipe.Agents()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, "metrics not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// contextWithTimeout bounds the pipeline run. The request context is
// deliberately not the parent: a caller disconnect must not cancel an
// in-flight provider call mid-generation.
func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
