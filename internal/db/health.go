package db

import "context"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthProbe reports database reachability to the /health endpoint.
type HealthProbe struct {
	pool Pinger
}

// NewHealthProbe creates a database HealthProbe.
func NewHealthProbe(pool Pinger) *HealthProbe {
	return &HealthProbe{pool: pool}
}

// Name implements core.HealthProbe.
func (p *HealthProbe) Name() string { return "database" }

// Check implements core.HealthProbe.
func (p *HealthProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
