package main

import (
	"context"
	"errors"
	"os"
	"time"

	"metas/internal/amqp"
	"metas/internal/cli"
	"metas/internal/export"
	applog "metas/internal/log"
	"metas/internal/scheduler"
	"metas/internal/services"
	"metas/internal/worker"
)

const regenerateTimeout = 2 * time.Minute

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting metas-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger.Logger)
	defaults := cli.LoadCategories(logger.Logger, cfg.CategoriesFile)

	repo := cli.InitSQLite(logger.Logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// No dashboard cache here: the worker reads after other processes write.
	goals := services.NewGoalService(repo, defaults,
		services.WithLogger(logger.WithComponent(applog.ComponentGoals).Logger))
	reports := worker.NewReportWorker(goals, cfg.ReportDir, export.AllFormats,
		logger.WithComponent(applog.ComponentWorker).Logger)

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, nil)

	startupCtx, cancelStartup := context.WithTimeout(ctx, regenerateTimeout)
	if err := reports.RegenerateCurrentYear(startupCtx); err != nil {
		logger.Error("Startup report regeneration failed", applog.FieldOperation, applog.OpStartup, applog.FieldError, err)
	}
	cancelStartup()

	sched := scheduler.New(time.Local, logger.WithComponent(applog.ComponentScheduler).Logger)
	entry, err := sched.ScheduleDaily(cfg.ReportSchedule, "annual-report", regenerateTimeout, reports.RegenerateCurrentYear)
	if err != nil {
		logger.Error("Failed to schedule report regeneration", applog.FieldError, err, "schedule", cfg.ReportSchedule)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()
	logger.Info("Report regeneration scheduled",
		"schedule", cfg.ReportSchedule,
		"next_run", sched.Next(entry),
		"dir", cfg.ReportDir)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on the schedule only", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			go func() {
				err := amqpClient.ConsumeGoalRecorded(ctx, reports.HandleGoalRecorded)
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", applog.FieldError, err)
				}
			}()
			logger.Info("Consuming goal.recorded events", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - reports regenerate on schedule only")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}
