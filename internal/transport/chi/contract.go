package chi

import (
	"context"

	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	domusage "github.com/kailas-cloud/venuefinder/internal/domain/usage"
	healthuc "github.com/kailas-cloud/venuefinder/internal/usecase/health"
	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
)

// TurnRunner executes conversational turns.
type TurnRunner interface {
	Run(ctx context.Context, req pipeline.TurnRequest) (pipeline.Result, error)
}

// SessionManager reads and manages sessions.
type SessionManager interface {
	Get(ctx context.Context, id string) (*domsession.Session, error)
	Reset(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports language model token usage.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}
