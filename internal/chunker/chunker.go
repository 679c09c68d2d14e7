package chunker

// Chunker splits text into fixed-size character windows where consecutive
// windows share Overlap characters. Every character of the input lands in
// at least one window; only the last window may be shorter than Size.
type Chunker struct {
	Size    int
	Overlap int
}

func New(size, overlap int) Chunker {
	if overlap < 0 {
		overlap = 0
	}
	if size > 0 && overlap >= size {
		overlap = size / 2 // avoid a non-advancing window
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split windows the content. Empty input or a non-positive size produces
// no chunks.
func (c Chunker) Split(content string) []string {
	if c.Size <= 0 || len(content) == 0 {
		return nil
	}
	if len(content) <= c.Size {
		return []string{content}
	}

	// apply the same guards as New, so a literal value cannot produce
	// a non-advancing window
	overlap := c.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= c.Size {
		overlap = c.Size / 2
	}

	stride := c.Size - overlap
	var chunks []string
	for start := 0; start < len(content); start += stride {
		end := start + c.Size
		if end >= len(content) {
			chunks = append(chunks, content[start:])
			break
		}
		chunks = append(chunks, content[start:end])
	}
	return chunks
}
