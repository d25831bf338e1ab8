package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"metas/internal/amqp"
	"metas/internal/core"
	"metas/internal/engine"
	"metas/internal/export"
	applog "metas/internal/log"
)

// Recomputer is the read side of the goal service.
type Recomputer interface {
	Recompute(ctx context.Context, period core.Period) (engine.Dashboard, error)
}

// ReportWorker keeps the annual report files in the report directory in
// step with the record store.
type ReportWorker struct {
	goals   Recomputer
	dir     string
	formats []export.Format
	now     func() time.Time
	logger  *slog.Logger
}

func NewReportWorker(goals Recomputer, dir string, formats []export.Format, logger *slog.Logger) *ReportWorker {
	if len(formats) == 0 {
		formats = export.AllFormats
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWorker{
		goals:   goals,
		dir:     dir,
		formats: formats,
		now:     time.Now,
		logger:  logger,
	}
}

// ReportName is the base file name of the report for a year.
func ReportName(year int) string {
	return fmt.Sprintf("metas_%d", year)
}

// HandleGoalRecorded regenerates the report of the year the entry belongs to.
func (w *ReportWorker) HandleGoalRecorded(ctx context.Context, msg *amqp.GoalRecordedMessage) error {
	date, err := msg.RecordDate()
	if err != nil {
		return fmt.Errorf("goal %d: %w", msg.ID, err)
	}

	w.logger.InfoContext(ctx, "Processing goal recorded message",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, applog.OpConsume,
		"message_id", msg.MessageID,
		applog.FieldGoalID, msg.ID,
		applog.FieldCategory, msg.Category,
		applog.FieldDate, msg.Date)

	_, err = w.RegenerateYear(ctx, date.Year())
	return err
}

// RegenerateCurrentYear rewrites the report of the current calendar year.
func (w *ReportWorker) RegenerateCurrentYear(ctx context.Context) error {
	_, err := w.RegenerateYear(ctx, w.now().Year())
	return err
}

// RegenerateYear recomputes the dashboard for a year and writes every
// configured format. It returns the written paths.
func (w *ReportWorker) RegenerateYear(ctx context.Context, year int) ([]string, error) {
	d, err := w.goals.Recompute(ctx, core.YearPeriod(year))
	if err != nil {
		return nil, fmt.Errorf("recompute %d: %w", year, err)
	}

	paths, err := export.WriteAll(ctx, d, w.dir, ReportName(year), w.formats)
	if err != nil {
		return nil, fmt.Errorf("write report %d: %w", year, err)
	}

	w.logger.InfoContext(ctx, "Annual report regenerated",
		applog.FieldComponent, applog.ComponentExport,
		applog.FieldOperation, applog.OpExport,
		applog.FieldYear, year,
		"files", paths)

	return paths, nil
}
