package venuefinder

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/venuefinder/internal/domain/usage"
)

// UsagePeriod is the budget window for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport describes language model token consumption for a period.
type UsageReport struct {
	Period      UsagePeriod
	PeriodStart time.Time
	PeriodEnd   time.Time
	Model       string
	Budget      BudgetStatus
}

// BudgetStatus tracks token quota state. TokensRemaining is -1 when unlimited.
type BudgetStatus struct {
	TokensLimit     int64
	TokensUsed      int64
	TokensRemaining int64
	IsExhausted     bool
	ResetsAt        time.Time
}

// Usage returns a token usage report for the given period.
// Observer always records success: the underlying use-case is in-memory
// and does not produce errors.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) UsageReport {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, nil) }()

	report := c.usageSvc.GetReport(ctx, domusage.Period(period))
	b := report.Budget()

	return UsageReport{
		Period:      UsagePeriod(report.Period()),
		PeriodStart: time.UnixMilli(report.PeriodStart()).UTC(),
		PeriodEnd:   time.UnixMilli(report.PeriodEnd()).UTC(),
		Model:       report.Model(),
		Budget: BudgetStatus{
			TokensLimit:     b.TokensLimit(),
			TokensUsed:      b.TokensUsed(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
			ResetsAt:        time.UnixMilli(b.ResetsAt()).UTC(),
		},
	}
}

// usageUseCase is the internal interface for usage reports.
type usageUseCase interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}
