package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-rag/internal/models"
)

type fakeLoader struct {
	chunks map[string][]models.Chunk
	err    error
}

func (f *fakeLoader) Load(path string) ([]models.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[path], nil
}

type fakeStore struct {
	counts    map[string]int
	added     map[string][]models.Chunk
	recreated []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{counts: map[string]int{}, added: map[string][]models.Chunk{}}
}

func (f *fakeStore) Open(name string) (int, error) { return f.counts[name], nil }

func (f *fakeStore) AddDocuments(_ context.Context, name string, chunks []models.Chunk, progress func(int, int)) error {
	f.added[name] = append(f.added[name], chunks...)
	f.counts[name] += len(chunks)
	if progress != nil {
		progress(len(chunks), len(chunks))
	}
	return nil
}

func (f *fakeStore) DeleteAndRecreate(name string) error {
	f.recreated = append(f.recreated, name)
	f.counts[name] = 0
	f.added[name] = nil
	return nil
}

func chunks(texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, t := range texts {
		out[i] = models.Chunk{Content: t, Source: "book.pdf", Index: i}
	}
	return out
}

func newPipeline(t *testing.T, loader *fakeLoader, store *fakeStore) *Pipeline {
	t.Helper()
	tracker, err := NewTracker(t.TempDir())
	require.NoError(t, err)
	return NewPipeline(loader, store, tracker)
}

func TestEnsureIngestedSkipsPopulated(t *testing.T) {
	store := newFakeStore()
	store.counts["trading_docs"] = 42
	p := newPipeline(t, &fakeLoader{}, store)

	err := p.EnsureIngested(context.Background(), "trading_docs", "book.pdf", nil)
	require.NoError(t, err)
	assert.Empty(t, store.added["trading_docs"])
}

func TestEnsureIngestedRunsOnEmpty(t *testing.T) {
	loader := &fakeLoader{chunks: map[string][]models.Chunk{
		"book.pdf": chunks("a", "b", "c"),
	}}
	store := newFakeStore()
	p := newPipeline(t, loader, store)

	err := p.EnsureIngested(context.Background(), "trading_docs", "book.pdf", nil)
	require.NoError(t, err)
	assert.Len(t, store.added["trading_docs"], 3)
	assert.Equal(t, "book.pdf", p.tracker.SourcePath("trading_docs"))
}

func TestEnsureIngestedUsesRecordedPath(t *testing.T) {
	loader := &fakeLoader{chunks: map[string][]models.Chunk{
		"saved.pdf": chunks("x"),
	}}
	store := newFakeStore()
	p := newPipeline(t, loader, store)
	require.NoError(t, p.tracker.Record("trading_docs", "saved.pdf"))

	err := p.EnsureIngested(context.Background(), "trading_docs", "", nil)
	require.NoError(t, err)
	assert.Len(t, store.added["trading_docs"], 1)
}

func TestEnsureIngestedNoSource(t *testing.T) {
	p := newPipeline(t, &fakeLoader{}, newFakeStore())

	err := p.EnsureIngested(context.Background(), "trading_docs", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source document")
}

func TestProcessDocumentEmptyExtraction(t *testing.T) {
	p := newPipeline(t, &fakeLoader{chunks: map[string][]models.Chunk{}}, newFakeStore())

	err := p.ProcessDocument(context.Background(), "trading_docs", "blank.pdf", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content extracted")
}

func TestProcessDocumentLoaderError(t *testing.T) {
	p := newPipeline(t, &fakeLoader{err: errors.New("bad pdf")}, newFakeStore())

	err := p.ProcessDocument(context.Background(), "trading_docs", "broken.pdf", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process broken.pdf")
}

func TestReloadDropsAndReingests(t *testing.T) {
	loader := &fakeLoader{chunks: map[string][]models.Chunk{
		"new.pdf": chunks("n1", "n2"),
	}}
	store := newFakeStore()
	store.counts["trading_docs"] = 10
	p := newPipeline(t, loader, store)
	require.NoError(t, p.tracker.Record("trading_docs", "old.pdf"))

	err := p.Reload(context.Background(), "trading_docs", "new.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"trading_docs"}, store.recreated)
	assert.Len(t, store.added["trading_docs"], 2)
	assert.Equal(t, "new.pdf", p.tracker.SourcePath("trading_docs"))
}

func TestTrackerForget(t *testing.T) {
	tracker, err := NewTracker(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, tracker.Record("trading_docs", "/tmp/book.pdf"))
	assert.Equal(t, "/tmp/book.pdf", tracker.SourcePath("trading_docs"))

	require.NoError(t, tracker.Forget("trading_docs"))
	assert.Empty(t, tracker.SourcePath("trading_docs"))

	// forgetting twice is fine
	require.NoError(t, tracker.Forget("trading_docs"))
}
