package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reassemble concatenates the unique span of each chunk: the whole first
// chunk, then everything past the shared overlap prefix.
func reassemble(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		sb.WriteString(c[overlap:])
	}
	return sb.String()
}

func TestSplitCoversInput(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
		input   string
	}{
		{"even split", 10, 0, strings.Repeat("abcde", 8)},
		{"with overlap", 10, 3, strings.Repeat("xyz", 25)},
		{"ragged tail", 7, 2, "the quick brown fox jumps over the lazy dog"},
		{"single chunk", 100, 10, "short"},
		{"overlap nearly size", 5, 4, strings.Repeat("q", 23)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(tc.size, tc.overlap)
			chunks := c.Split(tc.input)
			require.NotEmpty(t, chunks)
			assert.Equal(t, tc.input, reassemble(chunks, c.Overlap))
			for i, chunk := range chunks {
				assert.LessOrEqual(t, len(chunk), tc.size)
				if i < len(chunks)-1 {
					assert.Len(t, chunk, tc.size)
				}
			}
		})
	}
}

func TestSplitConsecutiveOverlap(t *testing.T) {
	c := New(10, 4)
	chunks := c.Split(strings.Repeat("0123456789", 5))
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-c.Overlap:], chunks[i][:c.Overlap])
	}
}

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, New(10, 2).Split(""))
}

func TestSplitZeroSize(t *testing.T) {
	assert.Nil(t, New(0, 0).Split("something"))
}

func TestSplitGuardsLiteralOverlap(t *testing.T) {
	// bypassing New must not produce a non-advancing window
	c := Chunker{Size: 10, Overlap: 10}
	input := strings.Repeat("ab", 30)

	chunks := c.Split(input)
	require.NotEmpty(t, chunks)
	// overlap is clamped to size/2, same as New
	assert.Equal(t, input, reassemble(chunks, 5))

	c = Chunker{Size: 10, Overlap: -3}
	chunks = c.Split(input)
	require.NotEmpty(t, chunks)
	assert.Equal(t, input, reassemble(chunks, 0))
}

func TestNewClampsOverlap(t *testing.T) {
	c := New(10, 12)
	assert.Equal(t, 5, c.Overlap)

	c = New(10, -1)
	assert.Equal(t, 0, c.Overlap)
}
