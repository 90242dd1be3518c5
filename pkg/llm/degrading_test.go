package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/apperrors"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/retry"
)

type fakeProvider struct {
	calls   int32
	results []*models.EnrichmentResult
	errs    []error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Enrich(ctx context.Context, _ models.EnrichmentInput) (*models.EnrichmentResult, error) {
	i := int(atomic.AddInt32(&f.calls, 1)) - 1
	if i >= len(f.errs) {
		i = len(f.errs) - 1
	}
	var r *models.EnrichmentResult
	if i < len(f.results) {
		r = f.results[i]
	}
	return r, f.errs[i]
}

func fastDegrading(t *testing.T, p EnrichmentProvider) *DegradingProvider {
	d := NewDegradingProvider(p, zaptest.NewLogger(t))
	d.retry = &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return d
}

func TestDegradingProvider_PassesResultThrough(t *testing.T) {
	want := &models.EnrichmentResult{Description: "Orders"}
	d := fastDegrading(t, &fakeProvider{results: []*models.EnrichmentResult{want}, errs: []error{nil}})

	got, err := d.Enrich(context.Background(), models.EnrichmentInput{Name: "ORDERS"})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestDegradingProvider_PermanentErrorDegradesWithoutRetry(t *testing.T) {
	fake := &fakeProvider{errs: []error{NewError(ErrorTypeAuth, "authentication failed", false, nil)}}
	d := fastDegrading(t, fake)

	got, err := d.Enrich(context.Background(), models.EnrichmentInput{Name: "ORDERS"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsEmpty())
	assert.Equal(t, int32(1), atomic.LoadInt32(&fake.calls))
}

func TestDegradingProvider_RetriesTransientErrors(t *testing.T) {
	want := &models.EnrichmentResult{Description: "Orders"}
	fake := &fakeProvider{
		results: []*models.EnrichmentResult{nil, want},
		errs:    []error{NewError(ErrorTypeRateLimit, "rate limited", true, nil), nil},
	}
	d := fastDegrading(t, fake)

	got, err := d.TryEnrich(context.Background(), models.EnrichmentInput{Name: "ORDERS"})
	require.NoError(t, err)
	assert.Equal(t, "Orders", got.Description)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.calls))
}

func TestDegradingProvider_TryEnrichReportsCause(t *testing.T) {
	cause := errors.New("malformed")
	d := fastDegrading(t, &fakeProvider{errs: []error{cause}})

	got, err := d.TryEnrich(context.Background(), models.EnrichmentInput{Name: "ORDERS"})
	require.NotNil(t, got)
	assert.True(t, got.IsEmpty())

	var enrichErr *apperrors.EnrichmentError
	require.ErrorAs(t, err, &enrichErr)
	assert.Equal(t, "ORDERS", enrichErr.Entity)
	assert.ErrorIs(t, err, cause)
}

func TestDegradingProvider_NilResultDegrades(t *testing.T) {
	d := fastDegrading(t, &fakeProvider{errs: []error{nil}})

	got, err := d.Enrich(context.Background(), models.EnrichmentInput{Name: "ORDERS"})
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}
