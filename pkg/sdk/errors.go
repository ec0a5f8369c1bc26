package venuefinder

import "github.com/kailas-cloud/venuefinder/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrSessionNotFound     = domain.ErrSessionNotFound
	ErrSessionBusy         = domain.ErrSessionLockTimeout
	ErrPipelineTimeout     = domain.ErrPipelineTimeout
	ErrInvalidDirective    = domain.ErrInvalidDirective
	ErrLocationRequired    = domain.ErrLocationRequired
	ErrProviderUnavailable = domain.ErrProviderUnavailable
	ErrProviderError       = domain.ErrProviderError
	ErrBudgetExceeded      = domain.ErrBudgetExceeded
)
