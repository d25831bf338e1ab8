package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"metas/internal/amqp"
	"metas/internal/cli"
	apphttp "metas/internal/http"
	applog "metas/internal/log"
	"metas/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger.Logger)
	defaults := cli.LoadCategories(logger.Logger, cfg.CategoriesFile)

	repo := cli.InitSQLite(logger.Logger, cfg.SQLiteDBPath)
	defer repo.Close()

	dashboards, cacheManager := cli.NewDashboardCache(logger.Logger, cfg.CacheTTL)
	defer cacheManager.Stop()

	opts := []services.Option{
		services.WithCache(dashboards),
		services.WithLogger(logger.WithComponent(applog.ComponentGoals).Logger),
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - goal.recorded events will not be published")
	}

	goals := services.NewGoalService(repo, defaults, opts...)
	srv := apphttp.NewServer(":"+cfg.Port, goals, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldOperation, applog.OpShutdown, applog.FieldError, err)
		}
	})

	logger.Info("Starting metas server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"db", cfg.SQLiteDBPath,
		"categories", len(defaults))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
