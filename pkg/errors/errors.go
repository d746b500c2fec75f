package errors

import (
	stderrors "errors"
	"fmt"
)

/*
Kind is a machine-readable classification of a pipeline error. Every
terminal error the pipeline surfaces carries exactly one Kind, so callers
can map it to an exit code or HTTP status without string matching.
*/
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindDecode             Kind = "decode"
	KindTooLarge           Kind = "too_large"
	KindBudgetExceeded     Kind = "budget_exceeded"
	KindInvalidRequest     Kind = "invalid_request"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindPersistence        Kind = "persistence"
	KindConfig             Kind = "config"
)

/*
AgentError is the error type used across the query pipeline and the LMS
API. The Kind is stable; the Message is for humans.
*/
type AgentError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Sentinel errors for each Kind. Use WithMessagef to attach detail; the
// sentinels themselves are never mutated.
var (
	ErrNotFound           = &AgentError{Kind: KindNotFound, Message: "not found"}
	ErrDecode             = &AgentError{Kind: KindDecode, Message: "content is not interpretable as text"}
	ErrTooLarge           = &AgentError{Kind: KindTooLarge, Message: "content exceeds the hard size ceiling"}
	ErrBudgetExceeded     = &AgentError{Kind: KindBudgetExceeded, Message: "query alone exceeds the context budget"}
	ErrInvalidRequest     = &AgentError{Kind: KindInvalidRequest, Message: "backend rejected the request"}
	ErrBackendUnavailable = &AgentError{Kind: KindBackendUnavailable, Message: "backend unavailable"}
	ErrPersistence        = &AgentError{Kind: KindPersistence, Message: "storage failure"}
	ErrConfig             = &AgentError{Kind: KindConfig, Message: "invalid configuration"}
)

/*
WithMessagef creates a *copy* of an AgentError with a formatted message.
It does not modify the original error variable.
*/
func (e *AgentError) WithMessagef(format string, args ...any) *AgentError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

/*
KindOf extracts the Kind from err, unwrapping as needed. Errors that are
not AgentErrors report an empty Kind.
*/
func KindOf(err error) Kind {
	var agentErr *AgentError
	if stderrors.As(err, &agentErr) {
		return agentErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
