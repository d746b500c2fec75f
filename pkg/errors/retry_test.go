package errors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func TestRetryWithBackoff_SucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		attempts++
		if attempts < 3 {
			return ErrBackendUnavailable
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_DoesNotRetrySemanticErrors(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return ErrInvalidRequest
	})

	assert.Equal(t, 1, attempts)
	assert.True(t, IsKind(err, KindInvalidRequest))
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return ErrBackendUnavailable
	})

	assert.Equal(t, 3, attempts)
	assert.True(t, IsKind(err, KindBackendUnavailable))
}

func TestRetryWithBackoff_AbandonsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	cfg := &RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  time.Hour,
		MaxDelay:      time.Hour,
		BackoffFactor: 1.0,
	}
	err := RetryWithBackoff(ctx, cfg, func() error {
		attempts++
		cancel()
		return ErrBackendUnavailable
	})

	assert.Equal(t, 1, attempts)
	assert.True(t, IsKind(err, KindBackendUnavailable))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConfig, KindOf(ErrConfig.WithMessagef("bad value")))
	assert.Equal(t, Kind(""), KindOf(assert.AnError))
}
