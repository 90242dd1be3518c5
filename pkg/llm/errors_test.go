package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/retry"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
		status    int
	}{
		{"unauthorized", errors.New("error, status code: 401, message: invalid api key"), ErrorTypeAuth, false, 401},
		{"model missing", errors.New("The model `gpt-9` does not exist"), ErrorTypeModel, false, 0},
		{"endpoint missing", errors.New("status code: 404"), ErrorTypeEndpoint, false, 404},
		{"rate limited", errors.New("status code: 429, Rate limit reached"), ErrorTypeRateLimit, true, 429},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), ErrorTypeEndpoint, true, 0},
		{"deadline", errors.New("context deadline exceeded"), ErrorTypeEndpoint, true, 0},
		{"server", errors.New("status code: 503, service unavailable"), ErrorTypeEndpoint, true, 503},
		{"overloaded", errors.New("anthropic api error type: overloaded_error"), ErrorTypeEndpoint, true, 0},
		{"other", errors.New("something odd"), ErrorTypeUnknown, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyError_PassesThroughClassified(t *testing.T) {
	original := NewError(ErrorTypeResponse, "bad reply", false, nil)
	wrapped := fmt.Errorf("enrich: %w", original)

	assert.Same(t, original, ClassifyError(wrapped))
	assert.Nil(t, ClassifyError(nil))
}

func TestError_ImplementsRetryable(t *testing.T) {
	err := fmt.Errorf("call: %w", NewError(ErrorTypeRateLimit, "rate limited", true, nil))

	assert.True(t, IsRetryable(err))
	assert.True(t, retry.IsRetryable(err))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	err := &Error{Type: ErrorTypeAuth, Message: "authentication failed", StatusCode: 401, Provider: "openai", Cause: errors.New("boom")}
	assert.Equal(t, "auth openai HTTP 401 authentication failed: boom", err.Error())
}
