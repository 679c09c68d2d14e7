// Package app wires configuration into the component graph shared by the
// HTTP server and the terminal assistant.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"trading-rag/internal/config"
	"trading-rag/internal/embedding"
	"trading-rag/internal/helper"
	"trading-rag/internal/ingest"
	"trading-rag/internal/llm"
	"trading-rag/internal/loader"
	"trading-rag/internal/market"
	"trading-rag/internal/pgstore"
	"trading-rag/internal/rag"
	"trading-rag/internal/store"
)

// vectorStore is the union of the ingestion and retrieval surfaces; both
// backends satisfy it.
type vectorStore interface {
	ingest.Store
	rag.Retriever
	Count(name string) (int, error)
}

// App holds the wired components. A non-nil BackendErr means the LLM
// backend is unusable (missing key); Orchestrator and Pipeline are nil
// and callers run in degraded mode. Market never depends on the backend.
type App struct {
	Cfg          *config.Config
	Orchestrator *rag.Orchestrator
	Pipeline     *ingest.Pipeline
	Market       *market.Client
	BackendErr   error

	closer func() error
}

// Build constructs the component graph for the given retrieval sources.
func Build(ctx context.Context, cfg *config.Config, sources []rag.Source) (*App, error) {
	a := &App{Cfg: cfg, Market: market.NewClient()}

	if err := cfg.ValidateBackend(); err != nil {
		log.Warn().Err(err).Msg("LLM backend unavailable, starting in degraded mode")
		a.BackendErr = err
		return a, nil
	}

	embedder, err := embedding.NewClient(&cfg.EmbedLLM, cfg.Store.VectorSize)
	if err != nil {
		return nil, err
	}
	chat, err := llm.NewClient(&cfg.ChatLLM)
	if err != nil {
		return nil, err
	}

	vs, err := a.buildStore(ctx, cfg, embedder)
	if err != nil {
		return nil, err
	}

	tracker, err := ingest.NewTracker(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	docLoader := loader.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.PageGroup, cfg.RAG.CSVBatchRows)
	a.Pipeline = ingest.NewPipeline(docLoader, vs, tracker)

	assembler := rag.NewAssembler(vs, sources, cfg.RAG.TopK, cfg.RAG.MaxContextChars)
	a.Orchestrator = rag.NewOrchestrator(assembler, chat)
	return a, nil
}

func (a *App) buildStore(ctx context.Context, cfg *config.Config, embedder *embedding.Client) (vectorStore, error) {
	switch cfg.Store.Backend {
	case "chromem":
		if err := helper.CreateFolder(cfg.Store.Path); err != nil {
			return nil, err
		}
		return store.NewHandler(cfg.Store.Path, cfg.Store.Compress, embedder,
			store.WithBatchSize(cfg.RAG.BatchSize),
			store.WithRetry(cfg.RAG.MaxRetries, time.Duration(cfg.RAG.RetryDelaySeconds)*time.Second),
		)
	case "postgres":
		db, err := pgstore.Connect(cfg.Store.Postgres.URL, cfg.Store.Postgres.Password, cfg.Store.Postgres.Debug)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %v", err)
		}
		h := pgstore.NewHandler(db, embedder,
			pgstore.WithBatchSize(cfg.RAG.BatchSize),
			pgstore.WithRetry(cfg.RAG.MaxRetries, time.Duration(cfg.RAG.RetryDelaySeconds)*time.Second),
		)
		if err := h.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %v", err)
		}
		a.closer = h.Close
		return h, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// Close releases backend resources, if any were acquired.
func (a *App) Close() error {
	if a.closer != nil {
		return a.closer()
	}
	return nil
}
