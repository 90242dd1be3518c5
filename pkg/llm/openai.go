package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/config"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewOpenAIProvider creates a provider for cfg.BaseURL. The API key may be
// empty for local endpoints.
func NewOpenAIProvider(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm base_url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		logger:      logger.Named("openai"),
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Enrich(ctx context.Context, input models.EnrichmentInput) (*models.EnrichmentResult, error) {
	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(input)},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Provider = p.Name()
		return nil, classified
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeResponse, "no choices in response", false, nil)
	}

	p.logger.Debug("Enrichment completed",
		zap.String("entity", input.Name),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return ParseEnrichment(resp.Choices[0].Message.Content)
}
