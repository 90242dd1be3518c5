package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/retry"
)

// DegradingProvider never fails: any provider error, timeout or malformed
// reply becomes an empty result. Retryable errors are retried first.
type DegradingProvider struct {
	inner   EnrichmentProvider
	retry   *retry.Config
	timeout time.Duration
	logger  *zap.Logger
}

// DefaultEnrichTimeout bounds one entity's enrichment including retries.
const DefaultEnrichTimeout = 60 * time.Second

// NewDegradingProvider wraps p.
func NewDegradingProvider(p EnrichmentProvider, logger *zap.Logger) *DegradingProvider {
	return &DegradingProvider{
		inner: p,
		retry: &retry.Config{
			MaxRetries:   2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		timeout: DefaultEnrichTimeout,
		logger:  logger.Named("enrichment"),
	}
}

func (d *DegradingProvider) Name() string { return d.inner.Name() }

// Enrich always returns a non-nil result and a nil error.
func (d *DegradingProvider) Enrich(ctx context.Context, input models.EnrichmentInput) (*models.EnrichmentResult, error) {
	result, err := d.TryEnrich(ctx, input)
	if err != nil {
		d.logger.Warn("Enrichment degraded to empty result", zap.Error(err))
		return models.EmptyEnrichment(), nil
	}
	return result, nil
}

// TryEnrich is Enrich but reports the error behind a degraded result as an
// *apperrors.EnrichmentError alongside the empty result.
func (d *DegradingProvider) TryEnrich(ctx context.Context, input models.EnrichmentInput) (*models.EnrichmentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var result *models.EnrichmentResult
	err := retry.DoIfRetryable(ctx, d.retry, func() error {
		var err error
		result, err = d.inner.Enrich(ctx, input)
		return err
	})
	if err == nil && result == nil {
		err = NewError(ErrorTypeResponse, "provider returned no result", false, nil)
	}
	if err != nil {
		return models.EmptyEnrichment(), &apperrors.EnrichmentError{Entity: input.Name, Cause: err}
	}
	return result, nil
}
