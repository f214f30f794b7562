package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"emprenix/internal/config"
)

// Client is the chat-completion surface the chain needs. *openai.LLM satisfies it.
type Client interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

func NewClient(llmConfig *config.LLMConfig) (Client, error) {
	log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating chat client")
	if strings.TrimSpace(llmConfig.Key) == "" {
		return nil, fmt.Errorf("chat api key is not set")
	}
	llm, err := openai.New(
		openai.WithBaseURL(llmConfig.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat client: %w", err)
	}
	return llm, nil
}

// GenerateContent calls the llm and returns the text of the first choice.
func GenerateContent(ctx context.Context, client Client, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	res, err := client.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if res == nil || len(res.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(res.Choices[0].Content), nil
}
