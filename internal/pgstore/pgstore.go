// Package pgstore is the pgvector-backed alternative to the embedded
// chromem store, selected with store.backend: postgres. It keeps the
// same operation surface as store.Handler so the retrieval path does not
// care which backend is wired.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"trading-rag/internal/helper"
	"trading-rag/internal/models"
)

// Record is one embedded chunk row. The vector column dimension must
// match the embedding model.
type Record struct {
	bun.BaseModel `bun:"table:trading_documents,alias:td"`
	ID            string    `bun:"id,pk"`
	Collection    string    `bun:"collection,notnull"`
	Content       string    `bun:"content,notnull"`
	Source        string    `bun:"source"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector(1536)"`
}

// Embedder matches store.Embedder; both backends share the same client.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Handler is the pgvector store. Ingestion commits in sub-batches with
// bounded retry, same as the chromem backend.
type Handler struct {
	db         *bun.DB
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

// Connect opens the Postgres connection.
func Connect(url, password string, debug bool) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(url+"?sslmode=disable"),
		pgdriver.WithPassword(password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

func NewHandler(db *bun.DB, embedder Embedder, opts ...Option) *Handler {
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

// Init creates the documents table if needed.
func (h *Handler) Init(ctx context.Context) error {
	_, err := h.db.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Open returns the record count for the named collection.
func (h *Handler) Open(name string) (int, error) {
	return h.count(context.Background(), name)
}

// Count returns the number of records in the named collection.
func (h *Handler) Count(name string) (int, error) {
	return h.count(context.Background(), name)
}

func (h *Handler) count(ctx context.Context, name string) (int, error) {
	n, err := h.db.NewSelect().Model((*Record)(nil)).Where("collection = ?", name).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count collection: %v", err)
	}
	return n, nil
}

// AddDocuments embeds chunks in sub-batches and commits each batch with
// bounded retry. Batches commit strictly in order; a batch that exhausts
// its retries aborts the remaining batches, leaving the committed prefix
// in place.
func (h *Handler) AddDocuments(ctx context.Context, name string, chunks []models.Chunk, progress func(done, total int)) error {
	if len(chunks) == 0 {
		log.Warn().Str("collection", name).Msg("No documents to add")
		return nil
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

		records := make([]Record, len(batch))
		for i, chunk := range batch {
			id, err := helper.GenerateUUID()
			if err != nil {
				return err
			}
			records[i] = Record{
				ID:         id,
				Collection: name,
				Content:    chunk.Content,
				Source:     chunk.Source,
				Embedding:  vectors[i],
			}
		}

		err = helper.Retry(h.maxRetries, h.retryDelay, func() error {
			_, err := h.db.NewInsert().Model(&records).Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to store batch at %d: %v", start, err)
		}

		if progress != nil {
			progress(end, len(chunks))
		}
	}
	return nil
}

// Query returns the n nearest document texts for the query, nearest
// first by vector distance.
func (h *Handler) Query(ctx context.Context, name, text string, n int) ([]string, error) {
	vec, err := h.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	var records []Record
	err = h.db.NewSelect().
		Model(&records).
		Column("id", "content", "source").
		Where("collection = ?", name).
		OrderExpr("embedding <-> ?", vec).
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %v", err)
	}

	docs := make([]string, len(records))
	for i, r := range records {
		docs[i] = r.Content
	}
	return docs, nil
}

// DeleteAndRecreate drops every record in the named collection.
func (h *Handler) DeleteAndRecreate(name string) error {
	_, err := h.db.NewDelete().Model((*Record)(nil)).Where("collection = ?", name).Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (h *Handler) Close() error {
	return h.db.Close()
}
