package venuefinder

import (
	"context"
	"errors"
	"sort"
	"time"

	healthuc "github.com/kailas-cloud/venuefinder/internal/usecase/health"
)

// HealthStatus is "ok", "degraded" or "error". A missing place provider or
// language model degrades answers; a dead store is an error.
type HealthStatus struct {
	Status string
	Checks map[string]string // database, provider, llm
}

// OK reports whether every component passed.
func (h HealthStatus) OK() bool { return h.Status == string(healthuc.Healthy) }

// Failed lists failing components in name order.
func (h HealthStatus) Failed() []string {
	var out []string
	for name, res := range h.Checks {
		if res != string(healthuc.CheckOK) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Health probes the store, the place provider and the language model.
// The observed error is non-nil only when the service is unhealthy.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)

	h := HealthStatus{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, res := range report.Checks {
		h.Checks[name] = string(res)
	}

	var err error
	if report.Status == healthuc.Unhealthy {
		err = errors.New("store unreachable")
	}
	c.obs.observe("health", start, err)
	return h
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
