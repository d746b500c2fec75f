/*
Package provider abstracts the language-model backends and wraps them in
a dispatcher that owns timeouts, retries and result normalization. A
backend is treated as a remote text-completion capability with a token
budget and a temperature knob, nothing more.
*/
package provider

import (
	"context"

	"github.com/thothlabs/thoth/pkg/types"
)

/*
Completion is a backend reply: generated text plus whatever token usage
the backend chose to report (zero values when it reports none).
*/
type Completion struct {
	Text             string
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

/*
Interface is the seam between the pipeline and a concrete backend.
Implementations classify their own failures: semantic rejections come
back as invalid-request errors (never retried), transport trouble and
rate limits as backend-unavailable errors (retried with backoff).
*/
type Interface interface {
	Complete(ctx context.Context, prompt string, cfg types.GenerationConfig) (*Completion, error)
}
