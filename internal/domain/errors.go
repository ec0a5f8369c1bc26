package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotFound signals an unknown or expired session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionLockTimeout signals that another turn is still in flight for the session.
	ErrSessionLockTimeout = errors.New("session busy")
	// ErrPipelineTimeout signals that the overall turn deadline was exceeded.
	ErrPipelineTimeout = errors.New("pipeline timeout")
	// ErrInvalidDirective signals a malformed filter directive.
	ErrInvalidDirective = errors.New("invalid filter directive")
	// ErrLocationRequired signals that no location could be resolved for a turn.
	ErrLocationRequired = errors.New("location required")

	// ErrProviderTransient signals a retryable place provider failure (timeout, 5xx, 429).
	ErrProviderTransient = errors.New("place provider transient error")
	// ErrProviderUnavailable signals that the place provider failed after retries.
	ErrProviderUnavailable = errors.New("place provider unavailable")
	// ErrProviderError signals a permanent place provider failure.
	ErrProviderError = errors.New("place provider error")
	// ErrLanguageModel signals a language model failure.
	ErrLanguageModel = errors.New("language model error")
	// ErrBudgetExceeded signals that the language model token budget is spent.
	ErrBudgetExceeded = errors.New("language model token budget exceeded")
)

// RetryableError carries a retry hint for errors surfaced to the caller.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: retry after %s", e.Err.Error(), e.RetryAfter)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryable wraps err with a retry hint.
func NewRetryable(err error, after time.Duration) error {
	return &RetryableError{Err: err, RetryAfter: after}
}
