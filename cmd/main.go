package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/stack-service/tax_service/internal/api/middleware"
	"github.com/stack-service/tax_service/internal/api/routes"
	"github.com/stack-service/tax_service/internal/infrastructure/config"
	"github.com/stack-service/tax_service/internal/infrastructure/database"
	"github.com/stack-service/tax_service/internal/infrastructure/di"
	"github.com/stack-service/tax_service/pkg/logger"
	"github.com/stack-service/tax_service/pkg/tracing"
	"github.com/stack-service/tax_service/pkg/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	// Initialize tracing
	shutdownTracing, err := tracing.InitProvider(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Environment,
		SampleRatio: cfg.Tracing.SampleRatio,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	// Initialize database
	var db *sqlx.DB
	if cfg.Database.Driver == config.DriverPostgres {
		db, err = database.NewConnection(cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()

		if cfg.Database.MigrateOnStart {
			if err := database.RunMigrations(db); err != nil {
				log.Fatal("Failed to run migrations", "error", err)
			}
		}
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}
	defer container.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := container.PingRedis(pingCtx); err != nil {
		log.Warn("Redis unreachable, regeneration locks fall back to in-process", "error", err)
	}
	cancelPing()

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerMin)
	router := routes.SetupRoutes(container, limiter)

	// Background workers
	if cfg.Harvesting.ExpiryEnabled {
		if err := container.ExpiryScheduler.Start(); err != nil {
			log.Fatal("Failed to start suggestion expiry scheduler", "error", err)
		}
	}

	stopCleanup := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup()
			case <-stopCleanup:
				return
			}
		}
	}()

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"driver", cfg.Database.Driver,
			"version", version.Get().String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	close(stopCleanup)

	if container.ExpiryScheduler.IsRunning() {
		if err := container.ExpiryScheduler.Stop(); err != nil {
			log.Warn("Error stopping expiry scheduler", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := shutdownTracing(ctx); err != nil {
		log.Warn("Error flushing traces", "error", err)
	}

	log.Info("Server exited")
}
