package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns canned vectors and records call sizes.
type fakeEmbedder struct {
	dim        int
	badIndexes map[int]bool
	fail       bool
	batchSizes []int
	calls      int
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("backend unreachable")
	}
	offset := 0
	for _, n := range f.batchSizes {
		offset += n
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		dim := f.dim
		if f.badIndexes[offset+i] {
			dim = 2 // wrong shape
		}
		out[i] = make([]float32, dim)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.fail {
		return nil, errors.New("backend unreachable")
	}
	f.calls++
	return make([]float32, f.dim), nil
}

func TestEmbedDocumentsOrderAndCount(t *testing.T) {
	fake := &fakeEmbedder{dim: 8}
	c := NewClientWith(fake, 8)

	texts := []string{"a", "b", "c"}
	vecs, err := c.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 8)
	}
}

func TestEmbedDocumentsSplitsLargeBatches(t *testing.T) {
	fake := &fakeEmbedder{dim: 4}
	c := NewClientWith(fake, 4)

	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "t"
	}
	vecs, err := c.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 250)
	assert.Equal(t, []int{100, 100, 50}, fake.batchSizes)
}

func TestEmbedDocumentsSubstitutesZeroVector(t *testing.T) {
	fake := &fakeEmbedder{dim: 8, badIndexes: map[int]bool{1: true}}
	c := NewClientWith(fake, 8)

	vecs, err := c.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[1], 8)
	assert.Equal(t, make([]float32, 8), vecs[1])
}

func TestEmbedDocumentsBackendFailure(t *testing.T) {
	fake := &fakeEmbedder{dim: 8, fail: true}
	c := NewClientWith(fake, 8)

	_, err := c.EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)
}

func TestEmbedDocumentsEmptyInput(t *testing.T) {
	c := NewClientWith(&fakeEmbedder{dim: 8}, 8)
	vecs, err := c.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
