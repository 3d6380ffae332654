package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/apeSh1t/rag-research-assistant/internal/agent"
	"github.com/apeSh1t/rag-research-assistant/internal/config"
	"github.com/apeSh1t/rag-research-assistant/internal/embed"
	"github.com/apeSh1t/rag-research-assistant/internal/knowledge"
	"github.com/apeSh1t/rag-research-assistant/internal/pipeline"
	"github.com/apeSh1t/rag-research-assistant/internal/uploads"
	"github.com/apeSh1t/rag-research-assistant/internal/vectorstore"
)

// DocumentManager is the knowledge-base surface the API needs.
type DocumentManager interface {
	DeleteDocument(title string) (bool, error)
	ListDocuments() []knowledge.DocumentInfo
}

// Searcher serves the raw similarity-search endpoint.
type Searcher interface {
	SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]vectorstore.Result, error)
}

// AgentService answers questions over the knowledge base, optionally streaming.
type AgentService interface {
	Chat(ctx context.Context, query string, history []agent.Exchange) (string, []agent.ReasoningStep, error)
	ChatStream(ctx context.Context, query string, history []agent.Exchange, emit func(agent.StreamEvent) error) error
}

// Server is the HTTP API server.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	kb           DocumentManager
	search       Searcher
	agent        AgentService
	uploads      *uploads.Store
	stats        *embed.LLMStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, kb DocumentManager, search Searcher, agentSvc AgentService, uploadStore *uploads.Store, stats *embed.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		kb:           kb,
		search:       search,
		agent:        agentSvc,
		uploads:      uploadStore,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/upload", s.handleUpload)
		r.Get("/api/upload/{jobID}/status", s.handleUploadStatus)

		r.Post("/api/search", s.handleSearch)

		r.Get("/api/documents", s.handleListDocuments)
		r.Delete("/api/documents/{title}", s.handleDeleteDocument)

		r.Post("/api/agent/chat", s.handleAgentChat)
		r.Post("/api/agent/chat_stream", s.handleAgentChatStream)
		r.Get("/api/agent/status", s.handleAgentStatus)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
