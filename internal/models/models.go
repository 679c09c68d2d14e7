package models

// Chunk represents one bounded window of a source document.
type Chunk struct {
	Content string
	Source  string
	Index   int
}
