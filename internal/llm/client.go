package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"trading-rag/internal/config"
)

// Client wraps the chat-completion model. Each call is stateless; no
// conversation memory is kept across queries.
type Client struct {
	llm         *openai.LLM
	temperature float64
	maxTokens   int
}

func NewClient(cfg *config.LLMConfig) (*Client, error) {
	llmClient, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat LLM: %v", err)
	}
	return &Client{llm: llmClient, temperature: 0.7, maxTokens: 500}, nil
}

// Generate runs one chat completion with a system prompt and the user
// prompt, returning the model's text verbatim.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: system}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	res, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %v", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	log.Debug().Int("choices", len(res.Choices)).Msg("Generated content")
	return res.Choices[0].Content, nil
}
