package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker is a component with a health probe.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
