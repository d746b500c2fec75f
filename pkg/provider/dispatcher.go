package provider

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/types"
)

// DefaultTimeout bounds a single backend attempt.
const DefaultTimeout = 30 * time.Second

/*
Dispatcher sends an assembled context to a backend under explicit
generation parameters. It applies a per-attempt timeout, retries
transient failures with exponential backoff, surfaces semantic backend
errors immediately, and normalizes the reply into a ResultRecord. It
never touches the memory store; recording the turn is the caller's
decision, gated on success.
*/
type Dispatcher struct {
	backend Interface
	timeout time.Duration
	retry   *errors.RetryConfig
}

type DispatcherOption func(*Dispatcher)

func NewDispatcher(backend Interface, options ...DispatcherOption) *Dispatcher {
	dispatcher := &Dispatcher{
		backend: backend,
		timeout: DefaultTimeout,
		retry:   errors.DefaultRetryConfig(),
	}

	for _, option := range options {
		option(dispatcher)
	}

	return dispatcher
}

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg *errors.RetryConfig) DispatcherOption {
	return func(dp *Dispatcher) {
		if cfg != nil {
			dp.retry = cfg
		}
	}
}

/*
Dispatch sends the context to the backend and returns the normalized
result. Cancelling ctx abandons the in-flight call without further
retries.
*/
func (dp *Dispatcher) Dispatch(
	ctx context.Context,
	actx *types.AssembledContext,
	cfg types.GenerationConfig,
) (*types.ResultRecord, error) {
	prompt := actx.Prompt()
	start := time.Now()

	var out *Completion
	err := errors.RetryWithBackoff(ctx, dp.retry, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, dp.timeout)
		defer cancel()

		completion, cerr := dp.backend.Complete(attemptCtx, prompt, cfg)
		if cerr != nil {
			log.Debug("backend attempt failed", "error", cerr)
			return cerr
		}

		out = completion
		return nil
	})
	if err != nil {
		return nil, err
	}

	record := &types.ResultRecord{
		Query:            actx.QueryText(),
		Response:         out.Text,
		Elapsed:          time.Since(start),
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
		TotalTokens:      out.TotalTokens,
		Truncated:        actx.Truncated,
	}

	log.Info("dispatch complete",
		"elapsed", record.Elapsed,
		"prompt_tokens", record.PromptTokens,
		"completion_tokens", record.CompletionTokens,
		"truncated", record.Truncated)

	return record, nil
}
