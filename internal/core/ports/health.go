package ports

import "context"

// HealthChecker is a backend the /health endpoint reports on.
type HealthChecker interface {
	Ping(ctx context.Context) error
	// Name keys the backend in the health response ("postgresql", "redis").
	Name() string
}
