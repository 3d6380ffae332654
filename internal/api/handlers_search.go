package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type searchHit struct {
	Section string  `json:"section"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
	PageNo  int     `json:"page_no"`
}

// handleSearch runs a raw similarity search against the vector store.
// Scores are distances, lower is more similar; hits at or beyond the
// configured distance cutoff are dropped.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}
	k := req.K
	if k <= 0 {
		k = s.cfg.SearchK
	}

	results, err := s.search.SimilaritySearchWithScore(r.Context(), req.Query, k)
	if err != nil {
		s.log.Error("search failed", "error", err)
		jsonError(w, "search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	hits := []searchHit{}
	for _, res := range results {
		if float64(res.Score) >= s.cfg.SearchMaxDistance {
			continue
		}
		section := res.Metadata.ContextStr
		if section == "" {
			section = res.Metadata.Source
		}
		hits = append(hits, searchHit{
			Section: section,
			Content: res.Text,
			Score:   float64(res.Score),
			Source:  res.Metadata.Source,
			PageNo:  res.Metadata.PageNo,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Found %d results", len(hits)),
		"data":    hits,
	})
}
