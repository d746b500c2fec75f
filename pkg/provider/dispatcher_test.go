package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/types"
)

type stubBackend struct {
	calls   int
	failFor int
	failErr error
	reply   Completion
}

func (s *stubBackend) Complete(ctx context.Context, prompt string, cfg types.GenerationConfig) (*Completion, error) {
	s.calls++
	if s.calls <= s.failFor {
		return nil, s.failErr
	}
	reply := s.reply
	return &reply, nil
}

func fastRetry() *errors.RetryConfig {
	return &errors.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func testContext(truncated bool) *types.AssembledContext {
	return &types.AssembledContext{
		Segments: []types.Segment{
			{Kind: types.SegmentSource, Text: "package main"},
			{Kind: types.SegmentQuery, Text: "what does this do?"},
		},
		Budget:    100,
		Truncated: truncated,
	}
}

func TestDispatch_Success(t *testing.T) {
	backend := &stubBackend{reply: Completion{Text: "it compiles", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}
	dp := NewDispatcher(backend, WithRetryConfig(fastRetry()))

	record, err := dp.Dispatch(context.Background(), testContext(false), types.DefaultGenerationConfig())

	require.NoError(t, err)
	assert.Equal(t, "what does this do?", record.Query)
	assert.Equal(t, "it compiles", record.Response)
	assert.Equal(t, int64(15), record.TotalTokens)
	assert.False(t, record.Truncated)
	assert.GreaterOrEqual(t, record.Elapsed, time.Duration(0))
	assert.Equal(t, 1, backend.calls)
}

func TestDispatch_CarriesTruncationFlag(t *testing.T) {
	backend := &stubBackend{reply: Completion{Text: "ok"}}
	dp := NewDispatcher(backend, WithRetryConfig(fastRetry()))

	record, err := dp.Dispatch(context.Background(), testContext(true), types.DefaultGenerationConfig())

	require.NoError(t, err)
	assert.True(t, record.Truncated)
}

func TestDispatch_RetriesTransientFailures(t *testing.T) {
	backend := &stubBackend{
		failFor: 2,
		failErr: errors.ErrBackendUnavailable,
		reply:   Completion{Text: "eventually"},
	}
	dp := NewDispatcher(backend, WithRetryConfig(fastRetry()))

	record, err := dp.Dispatch(context.Background(), testContext(false), types.DefaultGenerationConfig())

	require.NoError(t, err)
	assert.Equal(t, "eventually", record.Response)
	assert.Equal(t, 3, backend.calls)
}

func TestDispatch_DoesNotRetrySemanticErrors(t *testing.T) {
	backend := &stubBackend{
		failFor: 99,
		failErr: errors.ErrInvalidRequest.WithMessagef("model does not exist"),
	}
	dp := NewDispatcher(backend, WithRetryConfig(fastRetry()))

	_, err := dp.Dispatch(context.Background(), testContext(false), types.DefaultGenerationConfig())

	assert.True(t, errors.IsKind(err, errors.KindInvalidRequest))
	assert.Equal(t, 1, backend.calls)
}

func TestDispatch_ExhaustedRetriesReportUnavailable(t *testing.T) {
	backend := &stubBackend{failFor: 99, failErr: errors.ErrBackendUnavailable}
	dp := NewDispatcher(backend, WithRetryConfig(fastRetry()))

	_, err := dp.Dispatch(context.Background(), testContext(false), types.DefaultGenerationConfig())

	assert.True(t, errors.IsKind(err, errors.KindBackendUnavailable))
	assert.Equal(t, 3, backend.calls)
}

func TestDispatch_CancellationAbandonsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &stubBackend{failFor: 99, failErr: errors.ErrBackendUnavailable}
	dp := NewDispatcher(backend, WithRetryConfig(&errors.RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  time.Hour,
		MaxDelay:      time.Hour,
		BackoffFactor: 1.0,
	}))

	cancel()
	_, err := dp.Dispatch(ctx, testContext(false), types.DefaultGenerationConfig())

	assert.True(t, errors.IsKind(err, errors.KindBackendUnavailable))
	assert.Equal(t, 1, backend.calls)
}
