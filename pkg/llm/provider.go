// Package llm implements the enrichment provider boundary: prompting a
// chat model for descriptions, keywords, tags and glossary terms, and
// turning its reply into a typed result.
package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/config"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

// EnrichmentProvider produces enrichment for one entity. Implementations
// return classified errors; wrap them with NewDegradingProvider to get the
// never-failing behavior the enrichment pass relies on.
type EnrichmentProvider interface {
	Name() string
	Enrich(ctx context.Context, input models.EnrichmentInput) (*models.EnrichmentResult, error)
}

// NewProvider builds the configured provider. An unconfigured provider
// yields a disabled one that always returns empty results.
func NewProvider(cfg config.LLMConfig, logger *zap.Logger) (EnrichmentProvider, error) {
	if !cfg.IsEnabled() {
		return DisabledProvider{}, nil
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg, logger)
	case "anthropic":
		return NewAnthropicProvider(cfg, logger)
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// DisabledProvider is used when no provider is configured.
type DisabledProvider struct{}

func (DisabledProvider) Name() string { return "disabled" }

func (DisabledProvider) Enrich(context.Context, models.EnrichmentInput) (*models.EnrichmentResult, error) {
	return models.EmptyEnrichment(), nil
}

const systemPrompt = `You are a data catalog assistant. You describe database objects for business users.
Reply with a single JSON object and nothing else.`

// BuildPrompt renders the user message for one entity.
func BuildPrompt(input models.EnrichmentInput) string {
	var b strings.Builder

	noun := input.EntityType
	if noun == "" {
		noun = models.EntityTable
	}
	if noun == models.EntityDatabase {
		fmt.Fprintf(&b, "I have a database named '%s'", input.Name)
	} else {
		fmt.Fprintf(&b, "I have a database %s named '%s'", noun, input.Name)
	}
	if input.Description != "" {
		fmt.Fprintf(&b, " with the following description:\n%q\n", input.Description)
	} else {
		b.WriteString(".\n")
	}

	if len(input.Columns) > 0 {
		if noun == models.EntityDatabase {
			b.WriteString("\nIt contains these schemas:\n")
		} else {
			b.WriteString("\nAnd these columns:\n")
		}
		for _, c := range input.Columns {
			b.WriteString("- ")
			b.WriteString(c.Name)
			if c.DataType != "" {
				fmt.Fprintf(&b, " (%s)", c.DataType)
			}
			if c.Description != "" {
				fmt.Fprintf(&b, ": %s", c.Description)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(`
Based on this information, provide:
1. A concise business description (1-2 sentences)
2. 3-8 search keywords
3. 5-8 tags as key-value pairs that categorize it
4. 3-6 business glossary terms that apply to it

Format the response as JSON with these fields:
- "description": string
- "keywords": array of strings
- "tags": object, e.g. {"domain": "finance", "data_type": "transactional"}
- "business_glossary_terms": array of strings, e.g. ["customer data", "sales information"]
`)
	return b.String()
}
