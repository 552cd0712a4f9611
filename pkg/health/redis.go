package health

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisChecker checks the scope lock backend. A failing Redis degrades the
// service instead of failing it because locking falls back to in-process.
type RedisChecker struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisChecker creates a new Redis health checker
func NewRedisChecker(client redis.UniversalClient, timeout time.Duration) *RedisChecker {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &RedisChecker{client: client, timeout: timeout}
}

// Check pings Redis
func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pong, err := c.client.Ping(ctx).Result()
	if err != nil {
		return NewDegradedResult(c.Name(), "unreachable, scope locks are process-local").
			WithDuration(time.Since(start)).
			WithMetadata("error", err.Error())
	}
	if pong != "PONG" {
		return NewDegradedResult(c.Name(), "unexpected ping response").WithDuration(time.Since(start))
	}

	return NewHealthyResult(c.Name(), "connected").WithDuration(time.Since(start))
}

// Name returns the checker name
func (c *RedisChecker) Name() string {
	return "redis"
}
