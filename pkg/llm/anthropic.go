package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/config"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewAnthropicProvider creates a provider. The API key is required.
func NewAnthropicProvider(cfg config.LLMConfig, logger *zap.Logger) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required for the anthropic provider")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(cfg.APIKey),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger.Named("anthropic"),
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Enrich(ctx context.Context, input models.EnrichmentInput) (*models.EnrichmentResult, error) {
	start := time.Now()
	prompt := BuildPrompt(input)

	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		System:    systemPrompt,
		MaxTokens: p.maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		classified := ClassifyError(err)
		classified.Provider = p.Name()
		return nil, classified
	}

	text := textOf(resp)
	if text == "" {
		return nil, NewError(ErrorTypeResponse, "no text block in response", false, nil)
	}

	p.logger.Debug("Enrichment completed",
		zap.String("entity", input.Name),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return ParseEnrichment(text)
}

func textOf(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}
