package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-rag/internal/models"
)

// vecEmbedder assigns fixed vectors per text so similarity ordering is
// deterministic without a remote backend.
type vecEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
}

func newVecEmbedder() *vecEmbedder {
	return &vecEmbedder{
		vectors: map[string][]float32{
			"gap up opening":   {1, 0, 0},
			"closing range":    {0.9, 0.1, 0},
			"volume analysis":  {0, 1, 0},
			"position sizing":  {0, 0, 1},
			"opening behavior": {0.95, 0.05, 0},
		},
		fallback: []float32{0.5, 0.5, 0.5},
	}
}

func (e *vecEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *vecEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *vecEmbedder) vector(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	return e.fallback
}

func chunksOf(texts ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = models.Chunk{Content: t, Source: "test.pdf", Index: i}
	}
	return chunks
}

func TestAddAndQueryNearestFirst(t *testing.T) {
	h := NewMemoryHandler(newVecEmbedder(), WithRetry(1, 0))
	ctx := context.Background()

	err := h.AddDocuments(ctx, "docs", chunksOf("gap up opening", "volume analysis", "position sizing"), nil)
	require.NoError(t, err)

	docs, err := h.Query(ctx, "docs", "opening behavior", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "gap up opening", docs[0])
}

func TestQueryEmptyCollection(t *testing.T) {
	h := NewMemoryHandler(newVecEmbedder())

	docs, err := h.Query(context.Background(), "empty", "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestQueryClampsN(t *testing.T) {
	h := NewMemoryHandler(newVecEmbedder(), WithRetry(1, 0))
	ctx := context.Background()

	require.NoError(t, h.AddDocuments(ctx, "docs", chunksOf("gap up opening"), nil))

	docs, err := h.Query(ctx, "docs", "opening behavior", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDeleteAndRecreate(t *testing.T) {
	h := NewMemoryHandler(newVecEmbedder(), WithRetry(1, 0))
	ctx := context.Background()

	require.NoError(t, h.AddDocuments(ctx, "docs", chunksOf("gap up opening", "volume analysis"), nil))
	count, err := h.Count("docs")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, h.DeleteAndRecreate("docs"))

	count, err = h.Count("docs")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	embedder := newVecEmbedder()
	ctx := context.Background()

	h, err := NewHandler(dir, false, embedder, WithRetry(1, 0))
	require.NoError(t, err)
	require.NoError(t, h.AddDocuments(ctx, "docs", chunksOf("gap up opening", "volume analysis", "position sizing"), nil))

	// a second handler over the same directory sees the populated
	// collection without re-running ingestion
	h2, err := NewHandler(dir, false, embedder)
	require.NoError(t, err)
	count, err := h2.Open("docs")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAddDocumentsReportsProgress(t *testing.T) {
	h := NewMemoryHandler(newVecEmbedder(), WithBatchSize(2), WithRetry(1, 0))

	var reports [][2]int
	err := h.AddDocuments(context.Background(), "docs",
		chunksOf("gap up opening", "volume analysis", "position sizing"),
		func(done, total int) { reports = append(reports, [2]int{done, total}) })
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, reports)
}
