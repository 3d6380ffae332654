package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/apeSh1t/rag-research-assistant/internal/agent"
	"github.com/apeSh1t/rag-research-assistant/internal/api"
	"github.com/apeSh1t/rag-research-assistant/internal/chunker"
	"github.com/apeSh1t/rag-research-assistant/internal/config"
	"github.com/apeSh1t/rag-research-assistant/internal/embed"
	"github.com/apeSh1t/rag-research-assistant/internal/knowledge"
	"github.com/apeSh1t/rag-research-assistant/internal/parser"
	"github.com/apeSh1t/rag-research-assistant/internal/pipeline"
	"github.com/apeSh1t/rag-research-assistant/internal/uploads"
	"github.com/apeSh1t/rag-research-assistant/internal/vectorstore"
)

func main() {
	// Optional .env for local development; environment wins.
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	parser.DefaultPDFFallback = cfg.PDFFallbackPdftotext

	// LLM clients share one stats collector.
	stats := embed.NewLLMStats(time.Hour)
	embedder := embed.NewOpenAIEmbedder(embed.Options{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
		Stats:     stats,
	})

	store, err := vectorstore.New(cfg.DataDir, cfg.Collection, embedder, cfg.EmbedBatchSize, log)
	if err != nil {
		log.Error("failed to open vector store", "error", err)
		os.Exit(1)
	}

	ch := chunker.New(chunker.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	kb := knowledge.New(store, ch, cfg.TopK, float32(cfg.MinScore), log)

	agentSvc := agent.New(agent.Options{
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.LLMModel,
		MaxIterations: cfg.MaxIterations,
		KB:            kb,
		Stats:         stats,
		Log:           log,
	})

	uploadStore, err := uploads.NewStore(cfg.UploadDir, log)
	if err != nil {
		log.Error("failed to open upload store", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, store, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, kb, store, agentSvc, uploadStore, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Drain the HTTP server first so in-flight uploads can still
		// submit, then stop the workers.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting server", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
