package rag

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// NoContextMessage is returned when no source collection yields any
// documents. The orchestrator short-circuits on it without calling the
// chat model.
const NoContextMessage = "I don't have enough context to answer that question. Please try asking something else."

// TruncationMarker is appended when the assembled context is cut at the
// character budget.
const TruncationMarker = "..."

// Retriever is the nearest-neighbor query surface of the vector store.
type Retriever interface {
	Query(ctx context.Context, collection, text string, n int) ([]string, error)
}

// Source names one collection to query and the section label its
// documents appear under.
type Source struct {
	Collection string
	Label      string
}

// Assembler builds the context string for a query: per-source top-N
// retrieval, labeled sections, hard character cut. The cut is not a
// semantic summary; it is a plain truncation.
type Assembler struct {
	retriever Retriever
	sources   []Source
	topK      int
	maxChars  int
}

func NewAssembler(retriever Retriever, sources []Source, topK, maxChars int) *Assembler {
	if topK <= 0 {
		topK = 3
	}
	if maxChars <= 0 {
		maxChars = 3000
	}
	return &Assembler{retriever: retriever, sources: sources, topK: topK, maxChars: maxChars}
}

// Assemble queries each source and concatenates the labeled sections.
// When nothing matches anywhere it returns NoContextMessage so prompt
// composition stays predictable.
func (a *Assembler) Assemble(ctx context.Context, query string) (string, error) {
	var sections []string
	for _, src := range a.sources {
		docs, err := a.retriever.Query(ctx, src.Collection, query, a.topK)
		if err != nil {
			return "", err
		}
		if len(docs) == 0 {
			log.Debug().Str("collection", src.Collection).Msg("No matching documents")
			continue
		}
		section := src.Label + "\n" + strings.Join(docs, "\n\n")
		sections = append(sections, section)
	}

	if len(sections) == 0 {
		return NoContextMessage, nil
	}

	combined := strings.Join(sections, "\n\n")
	if len(combined) > a.maxChars {
		cut := a.maxChars
		// never split a multi-byte rune at the budget boundary
		for cut > 0 && !utf8.RuneStart(combined[cut]) {
			cut--
		}
		combined = combined[:cut] + TruncationMarker
	}
	return combined, nil
}
