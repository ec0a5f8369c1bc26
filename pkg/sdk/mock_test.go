package venuefinder

import (
	"context"

	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	domusage "github.com/kailas-cloud/venuefinder/internal/domain/usage"
	healthuc "github.com/kailas-cloud/venuefinder/internal/usecase/health"
	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
)

// --- turnRunner mock ---

type mockTurns struct {
	runFn func(ctx context.Context, req pipeline.TurnRequest) (pipeline.Result, error)
}

func (m *mockTurns) Run(ctx context.Context, req pipeline.TurnRequest) (pipeline.Result, error) {
	return m.runFn(ctx, req)
}

// --- sessionManager mock ---

type mockSessions struct {
	getFn    func(ctx context.Context, id string) (*domsession.Session, error)
	resetFn  func(ctx context.Context, id string) error
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockSessions) Get(ctx context.Context, id string) (*domsession.Session, error) {
	return m.getFn(ctx, id)
}

func (m *mockSessions) Reset(ctx context.Context, id string) error {
	return m.resetFn(ctx, id)
}

func (m *mockSessions) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

// --- healthUseCase mock ---

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- usageUseCase mock ---

type mockUsage struct {
	fn func(ctx context.Context, period domusage.Period) domusage.Report
}

func (m *mockUsage) GetReport(ctx context.Context, period domusage.Period) domusage.Report {
	return m.fn(ctx, period)
}
