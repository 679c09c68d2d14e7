package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"trading-rag/internal/models"
)

// Generator is the chat-completion surface the orchestrator needs.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Orchestrator ties context retrieval to answer generation for one
// query. Errors from the assembler or the chat client never escape; they
// are converted into user-facing strings.
type Orchestrator struct {
	assembler *Assembler
	generator Generator
}

func NewOrchestrator(assembler *Assembler, generator Generator) *Orchestrator {
	return &Orchestrator{assembler: assembler, generator: generator}
}

// Answer retrieves context for the query and generates an answer. When
// the assembler reports insufficient context, the chat model is not
// invoked at all.
func (o *Orchestrator) Answer(ctx context.Context, query string) string {
	contextText, err := o.assembler.Assemble(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("Error retrieving context")
		return fmt.Sprintf("Error retrieving context: %v", err)
	}

	if contextText == NoContextMessage {
		return NoContextMessage
	}

	prompt := fmt.Sprintf(models.AnswerPromptTemplate, contextText, query)
	answer, err := o.generator.Generate(ctx, models.SystemPrompt, prompt)
	if err != nil {
		log.Error().Err(err).Msg("Error processing query")
		return fmt.Sprintf("Sorry, I encountered an error while processing your query: %v", err)
	}
	return answer
}
