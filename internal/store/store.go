package store

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"trading-rag/internal/helper"
	"trading-rag/internal/models"
)

// Embedder is the narrow embedding contract the handler needs. It is
// satisfied by embedding.Client and by test fakes.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Handler owns the chromem database and its named collections. All
// vectors are stored with cosine similarity; records are immutable once
// committed and removed only by DeleteAndRecreate.
type Handler struct {
	db         *chromem.DB
	embedder   Embedder
	batchSize  int
	maxRetries int
	retryDelay time.Duration
}

// Option tweaks handler behavior.
type Option func(*Handler)

func WithBatchSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.batchSize = n
		}
	}
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(h *Handler) {
		if attempts > 0 {
			h.maxRetries = attempts
		}
		if delay >= 0 {
			h.retryDelay = delay
		}
	}
}

// NewHandler opens (or creates) a persistent database at path.
func NewHandler(path string, compress bool, embedder Embedder, opts ...Option) (*Handler, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %v", err)
	}
	return newHandler(db, embedder, opts...), nil
}

// NewMemoryHandler creates a non-persistent handler, used by tests and
// dry runs.
func NewMemoryHandler(embedder Embedder, opts ...Option) *Handler {
	return newHandler(chromem.NewDB(), embedder, opts...)
}

func newHandler(db *chromem.DB, embedder Embedder, opts ...Option) *Handler {
	h := &Handler{
		db:         db,
		embedder:   embedder,
		batchSize:  5,
		maxRetries: 3,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open gets or creates the named collection and returns its record
// count. A non-zero count means the collection is already populated and
// ingestion should be skipped.
func (h *Handler) Open(name string) (int, error) {
	c, err := h.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return c.Count(), nil
}

// Count returns the number of records in the named collection.
func (h *Handler) Count(name string) (int, error) {
	c, err := h.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return c.Count(), nil
}

// AddDocuments embeds chunks in sub-batches and commits each batch with
// bounded retry. Batches are committed strictly in order; a batch that
// exhausts its retries aborts the remaining batches, leaving the already
// committed prefix in place.
// The optional progress callback fires after each committed batch.
func (h *Handler) AddDocuments(ctx context.Context, name string, chunks []models.Chunk, progress func(done, total int)) error {
	if len(chunks) == 0 {
		log.Warn().Str("collection", name).Msg("No documents to add")
		return nil
	}

	collection, err := h.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}

	log.Info().Int("count", len(chunks)).Str("collection", name).Msg("Adding documents to vector store")

	for start := 0; start < len(chunks); start += h.batchSize {
		end := min(start+h.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		vectors, err := h.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch at %d: %v", start, err)
		}

		docs := make([]chromem.Document, len(batch))
		for i, chunk := range batch {
			id, err := helper.GenerateUUID()
			if err != nil {
				return err
			}
			docs[i] = chromem.Document{
				ID:        id,
				Content:   chunk.Content,
				Embedding: vectors[i],
				Metadata:  map[string]string{"source": chunk.Source},
			}
		}

		err = helper.Retry(h.maxRetries, h.retryDelay, func() error {
			return collection.AddDocuments(ctx, docs, runtime.NumCPU())
		})
		if err != nil {
			return fmt.Errorf("failed to add batch at %d: %v", start, err)
		}

		if progress != nil {
			progress(end, len(chunks))
		}
	}
	return nil
}

// Query embeds the text and returns the n nearest document texts,
// nearest first. An empty collection yields an empty result, not an
// error.
func (h *Handler) Query(ctx context.Context, name, text string, n int) ([]string, error) {
	collection, err := h.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}

	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}

	vec, err := h.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	results, err := collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vec,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Content
	}
	return docs, nil
}

// DeleteAndRecreate destroys the named collection and all its records,
// then recreates it empty. Prior content is lost irrevocably.
func (h *Handler) DeleteAndRecreate(name string) error {
	if err := h.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	if _, err := h.db.GetOrCreateCollection(name, nil, nil); err != nil {
		return fmt.Errorf("failed to recreate collection: %v", err)
	}
	return nil
}
