package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks batch backend availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}

// ClassifierChecker checks fast classifier availability.
type ClassifierChecker interface {
	HealthCheck(ctx context.Context) error
}
