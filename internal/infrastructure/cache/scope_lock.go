package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stack-service/tax_service/pkg/errors"
	"github.com/stack-service/tax_service/pkg/metrics"
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type localEntry struct {
	token   string
	expires time.Time
}

// ScopeLock serializes suggestion regeneration per (portfolio, tax year).
// It uses Redis SET NX when a client is configured and reachable, and an
// in-process table otherwise.
type ScopeLock struct {
	client redis.UniversalClient
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]localEntry
	clock func() time.Time
}

// NewScopeLock creates a scope lock. client may be nil.
func NewScopeLock(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *ScopeLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ScopeLock{
		client: client,
		logger: logger,
		prefix: "tax:",
		ttl:    ttl,
		local:  make(map[string]localEntry),
		clock:  time.Now,
	}
}

// Acquire takes the lock of a scope. The returned release func is safe to
// call more than once. A held lock yields ErrRegenerationInProgress.
func (l *ScopeLock) Acquire(ctx context.Context, portfolioID string, taxYear int) (func(), error) {
	key := l.key(portfolioID, taxYear)
	token := uuid.New().String()

	if l.client != nil {
		start := time.Now()
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		metrics.RecordRedisOperation("setnx", time.Since(start).Seconds())
		if err == nil {
			if !ok {
				return nil, l.inProgress(portfolioID, taxYear)
			}
			return l.redisRelease(key, token), nil
		}
		l.logger.Warn("redis scope lock unavailable, using in-process lock",
			zap.Error(err),
			zap.String("key", key),
		)
	}

	return l.acquireLocal(key, token, portfolioID, taxYear)
}

func (l *ScopeLock) acquireLocal(key, token, portfolioID string, taxYear int) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if held, ok := l.local[key]; ok && now.Before(held.expires) {
		return nil, l.inProgress(portfolioID, taxYear)
	}
	l.local[key] = localEntry{token: token, expires: now.Add(l.ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if held, ok := l.local[key]; ok && held.token == token {
				delete(l.local, key)
			}
		})
	}, nil
}

func (l *ScopeLock) redisRelease(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			start := time.Now()
			err := releaseScript.Run(ctx, l.client, []string{key}, token).Err()
			metrics.RecordRedisOperation("release", time.Since(start).Seconds())
			if err != nil && err != redis.Nil {
				l.logger.Warn("failed to release scope lock, it will expire",
					zap.Error(err),
					zap.String("key", key),
				)
			}
		})
	}
}

func (l *ScopeLock) key(portfolioID string, taxYear int) string {
	return fmt.Sprintf("%sharvest:%s:%d", l.prefix, portfolioID, taxYear)
}

func (l *ScopeLock) inProgress(portfolioID string, taxYear int) error {
	return errors.WrapWithType(errors.ErrRegenerationInProgress, errors.ErrorTypeConflict,
		errors.CodeRegenerationInProgress, errors.ErrRegenerationInProgress.Message).
		WithDetail("portfolio_id", portfolioID).
		WithDetail("tax_year", fmt.Sprint(taxYear))
}
