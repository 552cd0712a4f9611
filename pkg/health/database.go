package health

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stack-service/tax_service/pkg/metrics"
)

// DatabaseChecker checks record store connectivity
type DatabaseChecker struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewDatabaseChecker creates a new database health checker
func NewDatabaseChecker(db *sqlx.DB, timeout time.Duration) *DatabaseChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &DatabaseChecker{db: db, timeout: timeout}
}

// Check pings the database, probes the records table and publishes pool stats
func (c *DatabaseChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return NewUnhealthyResult(c.Name(), err).WithDuration(time.Since(start))
	}

	var records int64
	if err := c.db.GetContext(ctx, &records, "SELECT count(*) FROM (SELECT 1 FROM records LIMIT 1) AS probe"); err != nil {
		return NewUnhealthyResult(c.Name(), err).WithDuration(time.Since(start))
	}

	stats := c.db.Stats()
	metrics.UpdateDatabaseConnections(stats.OpenConnections, stats.Idle, stats.InUse)

	result := NewHealthyResult(c.Name(), "connected").
		WithDuration(time.Since(start)).
		WithMetadata("open_connections", stats.OpenConnections).
		WithMetadata("in_use", stats.InUse).
		WithMetadata("idle", stats.Idle)

	if stats.MaxOpenConnections > 0 {
		utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)
		result = result.WithMetadata("pool_utilization", utilization)
		if utilization > 0.8 {
			result.Status = StatusDegraded
			result.Message = "high connection pool utilization"
		}
	}

	return result
}

// Name returns the checker name
func (c *DatabaseChecker) Name() string {
	return "database"
}
