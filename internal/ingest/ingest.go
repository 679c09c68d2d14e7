// Package ingest drives document ingestion and remembers which source
// files back each collection across restarts.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"trading-rag/internal/models"
)

// Loader parses a file into chunks.
type Loader interface {
	Load(path string) ([]models.Chunk, error)
}

// Store is the ingestion surface of the vector store.
type Store interface {
	Open(name string) (int, error)
	AddDocuments(ctx context.Context, name string, chunks []models.Chunk, progress func(done, total int)) error
	DeleteAndRecreate(name string) error
}

// Tracker records the filesystem path of the last-ingested source per
// collection in a plain-text file under the data directory. Presence of
// the file means "skip re-selection on next startup".
type Tracker struct {
	dataDir string
}

func NewTracker(dataDir string) (*Tracker, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}
	return &Tracker{dataDir: dataDir}, nil
}

func (t *Tracker) infoPath(collection string) string {
	return filepath.Join(t.dataDir, collection+"_info.txt")
}

// SourcePath returns the recorded path for the collection, or "" when
// none is recorded.
func (t *Tracker) SourcePath(collection string) string {
	data, err := os.ReadFile(t.infoPath(collection))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Record persists the source path for the collection.
func (t *Tracker) Record(collection, path string) error {
	return os.WriteFile(t.infoPath(collection), []byte(path), 0o644)
}

// Forget removes the recorded source path, forcing re-selection and
// re-ingestion on the next load.
func (t *Tracker) Forget(collection string) error {
	err := os.Remove(t.infoPath(collection))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Pipeline loads documents and feeds them to the store in document
// order; batches commit strictly sequentially, so an interrupted run
// leaves a deterministic prefix ingested.
type Pipeline struct {
	loader  Loader
	store   Store
	tracker *Tracker
}

func NewPipeline(loader Loader, store Store, tracker *Tracker) *Pipeline {
	return &Pipeline{loader: loader, store: store, tracker: tracker}
}

// EnsureIngested ingests path into the collection unless the collection
// is already populated. The idempotent re-open rule: re-running against
// a non-empty collection does nothing.
func (p *Pipeline) EnsureIngested(ctx context.Context, collection, path string, progress func(done, total int)) error {
	count, err := p.store.Open(collection)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Info().Str("collection", collection).Int("count", count).Msg("Collection already populated, skipping ingestion")
		return nil
	}
	if path == "" {
		path = p.tracker.SourcePath(collection)
	}
	if path == "" {
		return fmt.Errorf("no source document configured for collection %s", collection)
	}
	return p.ProcessDocument(ctx, collection, path, progress)
}

// ProcessDocument loads, chunks and stores one document.
func (p *Pipeline) ProcessDocument(ctx context.Context, collection, path string, progress func(done, total int)) error {
	chunks, err := p.loader.Load(path)
	if err != nil {
		return fmt.Errorf("failed to process %s: %v", filepath.Base(path), err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no content extracted from %s", filepath.Base(path))
	}

	log.Info().Int("chunks", len(chunks)).Str("collection", collection).Msg("Processing document")

	if err := p.store.AddDocuments(ctx, collection, chunks, progress); err != nil {
		return err
	}
	if err := p.tracker.Record(collection, path); err != nil {
		log.Warn().Err(err).Msg("Failed to record source path")
	}
	return nil
}

// Reload destroys the collection and its bookkeeping, then re-ingests
// from path. All prior records are lost irrevocably.
func (p *Pipeline) Reload(ctx context.Context, collection, path string, progress func(done, total int)) error {
	if err := p.store.DeleteAndRecreate(collection); err != nil {
		return err
	}
	if err := p.tracker.Forget(collection); err != nil {
		return err
	}
	return p.ProcessDocument(ctx, collection, path, progress)
}
