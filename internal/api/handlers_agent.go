package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/apeSh1t/rag-research-assistant/internal/agent"
)

type chatRequest struct {
	Query   string           `json:"query"`
	Context []agent.Exchange `json:"context,omitempty"`
}

// handleAgentChat answers a question in one shot, returning the final
// answer together with the reasoning trace.
func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	answer, steps, err := s.agent.Chat(r.Context(), req.Query, req.Context)
	if err != nil {
		s.log.Error("agent chat failed", "error", err)
		jsonError(w, "agent error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"data": map[string]any{
			"answer":    answer,
			"reasoning": steps,
		},
	})
}

// handleAgentChatStream streams the agent's work as newline-delimited JSON
// events. Any failure after streaming begins becomes a terminal error event
// on the stream, since the status code is already sent.
func (s *Server) handleAgentChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	emit := func(ev agent.StreamEvent) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := s.agent.ChatStream(r.Context(), req.Query, req.Context, emit); err != nil {
		s.log.Error("agent stream failed", "error", err)
		// Best effort: the client may already be gone.
		_ = emit(agent.StreamEvent{Type: agent.EventError, Content: err.Error()})
	}
}

// handleAgentStatus reports the configured model, for client readiness checks.
func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ready",
		"model":  s.cfg.LLMModel,
	})
}
