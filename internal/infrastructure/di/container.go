package di

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	domainrepos "github.com/stack-service/tax_service/internal/domain/repositories"
	"github.com/stack-service/tax_service/internal/domain/policy"
	"github.com/stack-service/tax_service/internal/domain/services/harvesting"
	"github.com/stack-service/tax_service/internal/domain/services/jurisdiction"
	"github.com/stack-service/tax_service/internal/infrastructure/cache"
	"github.com/stack-service/tax_service/internal/infrastructure/config"
	"github.com/stack-service/tax_service/internal/infrastructure/repositories"
	suggestionexpiry "github.com/stack-service/tax_service/internal/workers/suggestion_expiry"
	"github.com/stack-service/tax_service/pkg/circuitbreaker"
	"github.com/stack-service/tax_service/pkg/health"
	"github.com/stack-service/tax_service/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *sqlx.DB // nil with the memory driver
	Redis  redis.UniversalClient
	Logger *logger.Logger
	ZapLog *zap.Logger

	// Storage
	Store        domainrepos.RecordStore
	StoreBreaker *gobreaker.CircuitBreaker
	TaxRepo      *repositories.TaxRepository

	// Domain Services
	Policy              *policy.Table
	HarvestingService   *harvesting.Service
	JurisdictionService *jurisdiction.Service

	// Infrastructure
	ScopeLock     *cache.ScopeLock
	HealthChecker *health.HealthChecker

	// Workers
	ExpiryScheduler *suggestionexpiry.Scheduler
}

// NewContainer creates a new dependency injection container. db may be nil
// when the memory driver is configured.
func NewContainer(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	var base domainrepos.RecordStore
	switch cfg.Database.Driver {
	case config.DriverMemory:
		base = repositories.NewMemoryStore()
		log.Warn("Using in-memory record store; data is lost on restart")
	case config.DriverPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres driver requires a database connection")
		}
		base = repositories.NewPostgresStore(db, zapLog)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	storeBreaker := circuitbreaker.New("record_store", circuitbreaker.Config{
		MaxRequests:  cfg.CircuitBreaker.MaxRequests,
		Interval:     time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
		Timeout:      time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
		MinRequests:  cfg.CircuitBreaker.MinRequests,
		FailureRatio: cfg.CircuitBreaker.FailureRatio,
	}, log)
	store := repositories.NewBreakerStore(base, storeBreaker)
	taxRepo := repositories.NewTaxRepository(store, zapLog)

	redisClient, err := newRedisClient(cfg.Redis)
	if err != nil {
		return nil, err
	}

	table := policy.Default()
	harvestingLog := log.WithFields(map[string]interface{}{"component": "harvesting"})
	generator := harvesting.NewGenerator(table, cfg.Harvesting.SuggestionTTL())
	harvestingService := harvesting.NewService(taxRepo, generator,
		harvesting.NewLifecycle(taxRepo, harvestingLog), harvestingLog)

	jurisdictionService := jurisdiction.NewService(taxRepo, jurisdiction.NewEvaluator(table),
		log.WithFields(map[string]interface{}{"component": "jurisdiction"}))

	scopeLock := cache.NewScopeLock(redisClient, cfg.Harvesting.LockTTL(), zapLog)

	checker := health.NewHealthChecker(5 * time.Second)
	if db != nil {
		checker.Register(health.NewDatabaseChecker(db, 2*time.Second))
	}
	if redisClient != nil {
		checker.Register(health.NewRedisChecker(redisClient, time.Second))
	}
	checker.Register(health.NewBreakerChecker("record_store", storeBreaker))

	expiryConfig := suggestionexpiry.DefaultConfig()
	if cfg.Harvesting.ExpirySchedule != "" {
		expiryConfig.Schedule = cfg.Harvesting.ExpirySchedule
	}
	expiryScheduler := suggestionexpiry.NewScheduler(harvestingService, expiryConfig, zapLog)

	return &Container{
		Config:              cfg,
		DB:                  db,
		Redis:               redisClient,
		Logger:              log,
		ZapLog:              zapLog,
		Store:               store,
		StoreBreaker:        storeBreaker,
		TaxRepo:             taxRepo,
		Policy:              table,
		HarvestingService:   harvestingService,
		JurisdictionService: jurisdictionService,
		ScopeLock:           scopeLock,
		HealthChecker:       checker,
		ExpiryScheduler:     expiryScheduler,
	}, nil
}

// Close releases connections owned by the container
func (c *Container) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}

// newRedisClient returns nil when Redis is disabled
func newRedisClient(cfg config.RedisConfig) (redis.UniversalClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}), nil
}

// PingRedis reports whether the configured Redis answers
func (c *Container) PingRedis(ctx context.Context) error {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Ping(ctx).Err()
}
