package suggestionexpiry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Expirer moves pending suggestions past their validity to expired
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// Config holds configuration for the expiry sweep
type Config struct {
	Schedule   string        // cron expression with seconds field
	RunTimeout time.Duration // upper bound of a single sweep
}

// DefaultConfig returns default sweep configuration
func DefaultConfig() Config {
	return Config{
		Schedule:   "0 */15 * * * *",
		RunTimeout: 5 * time.Minute,
	}
}

// Scheduler runs the suggestion expiry sweep on a cron schedule
type Scheduler struct {
	expirer Expirer
	config  Config
	logger  *zap.Logger
	clock   func() time.Time

	cron      *cron.Cron
	entryID   cron.EntryID
	isRunning bool
	mu        sync.Mutex
}

// NewScheduler creates a new expiry scheduler
func NewScheduler(expirer Expirer, config Config, logger *zap.Logger) *Scheduler {
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}
	return &Scheduler{
		expirer: expirer,
		config:  config,
		logger:  logger,
		clock:   time.Now,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start registers the sweep and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("expiry scheduler is already running")
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("Suggestion expiry sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", s.config.Schedule, err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	s.logger.Info("Suggestion expiry scheduler started", zap.String("schedule", s.config.Schedule))
	return nil
}

// Stop waits for a running sweep and stops the cron loop
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("expiry scheduler is not running")
	}

	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	s.isRunning = false

	s.logger.Info("Suggestion expiry scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunOnce performs a single sweep
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	start := s.clock()
	count, err := s.expirer.ExpireStale(ctx, start)
	if err != nil {
		return count, err
	}

	s.logger.Info("Suggestion expiry sweep completed",
		zap.Int("expired", count),
		zap.Duration("duration", time.Since(start)))
	return count, nil
}
