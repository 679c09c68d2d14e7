package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"trading-rag/internal/config"
)

const maxBatchSize = 100

// Client wraps a langchaingo embedder with batching and a degraded-result
// policy: a single malformed vector becomes a zero vector of the expected
// dimension instead of failing the whole batch. It satisfies the
// embeddings.Embedder contract so callers can swap in fakes.
type Client struct {
	embedder   embeddings.Embedder
	vectorSize int
}

// NewClient builds an OpenAI-compatible embedder from config.
func NewClient(cfg *config.LLMConfig, vectorSize int) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %v", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %v", err)
	}
	return &Client{embedder: embedder, vectorSize: vectorSize}, nil
}

// NewClientWith wraps an existing embedder; used by tests and by the
// pgvector backend which shares the same client.
func NewClientWith(embedder embeddings.Embedder, vectorSize int) *Client {
	return &Client{embedder: embedder, vectorSize: vectorSize}
}

// EmbedDocuments returns one vector per input text, order preserving.
// Inputs beyond the remote batch ceiling are split into multiple calls.
// A backend failure aborts the whole call.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))
		batch, err := c.embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch at %d: %v", start, err)
		}
		vectors = append(vectors, batch...)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	return c.normalize(vectors), nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %v", err)
	}
	if c.vectorSize > 0 && len(vec) != c.vectorSize {
		log.Warn().Int("got", len(vec)).Int("want", c.vectorSize).
			Msg("Query embedding has unexpected dimension, substituting zero vector")
		return make([]float32, c.vectorSize), nil
	}
	return vec, nil
}

// normalize substitutes a zero vector for any item whose dimension does
// not match the collection. Degraded results are logged, never silent.
func (c *Client) normalize(vectors [][]float32) [][]float32 {
	if c.vectorSize <= 0 {
		return vectors
	}
	for i, v := range vectors {
		if len(v) != c.vectorSize {
			log.Warn().Int("index", i).Int("got", len(v)).Int("want", c.vectorSize).
				Msg("Embedding has unexpected dimension, substituting zero vector")
			vectors[i] = make([]float32, c.vectorSize)
		}
	}
	return vectors
}
