// Package cli provides common CLI initialization utilities shared by
// cmd/metas, cmd/metas-worker and cmd/metas-report.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"metas/internal/cache"
	"metas/internal/config"
	"metas/internal/core"
	"metas/internal/engine"
	applog "metas/internal/log"
	"metas/internal/storage"
)

const dashboardCacheSize = 100

// SetupLogger builds the process logger for component at the given level and
// installs it as the slog default. An unknown level falls back to info.
func SetupLogger(component, level string) *applog.Logger {
	lvl, err := config.ParseLevel(level)
	logger := applog.New(applog.Config{
		Level:     lvl,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// LoadCategories reads the category table from path, or returns the stock
// table when path is empty. Exits the process on an unreadable file.
func LoadCategories(logger *slog.Logger, path string) core.CategoryDefaults {
	defaults, err := config.LoadCategories(path)
	if err != nil {
		logger.Error("Failed to load categories", "error", err, "path", path)
		os.Exit(1)
	}
	logger.Info("Categories loaded", "count", len(defaults), "source", categorySource(path))
	return defaults
}

func categorySource(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// NewDashboardCache builds the dashboard cache and a manager that sweeps
// expired entries every ttl. Call Stop on the manager at shutdown.
func NewDashboardCache(logger *slog.Logger, ttl time.Duration) (*cache.LRUCache[engine.Dashboard], *cache.Manager) {
	dashboards := cache.NewLRUCache[engine.Dashboard](dashboardCacheSize, ttl)
	manager := cache.NewManager(logger)
	manager.Register(dashboards)
	if ttl > 0 {
		manager.StartCleanup(ttl)
	}
	return dashboards, manager
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
