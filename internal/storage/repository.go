package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"metas/internal/core"
	applog "metas/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the append-only record store backed by the metas table.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// NewSQLiteRepository opens dbPath, creating its directory, and migrates
// the schema before returning.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", core.ErrStorage, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", core.ErrStorage, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", core.ErrStorage, err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	slog.Debug("Schema ready",
		applog.FieldComponent, applog.ComponentStorage,
		"version", version,
		"path", dbPath)

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", core.ErrStorage, err)
	}
	return nil
}

// Insert validates the input and appends a new immutable row.
func (r *SQLiteRepository) Insert(ctx context.Context, in core.GoalInput) (int64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	id, err := r.queries.CreateMeta(ctx, CreateMetaParams{
		Nome:       in.Category,
		MetaMensal: in.MonthlyTarget,
		Realizado:  in.Achieved,
		Data:       in.Date.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: create goal: %w", core.ErrStorage, err)
	}

	slog.InfoContext(ctx, "Goal saved to SQLite",
		"id", id,
		"category", in.Category,
		"monthly_target", in.MonthlyTarget,
		"achieved", in.Achieved,
		"date", in.Date.String())

	return id, nil
}

// QueryAll returns every stored record.
func (r *SQLiteRepository) QueryAll(ctx context.Context) ([]core.GoalRecord, error) {
	rows, err := r.queries.ListMetas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list goals: %w", core.ErrStorage, err)
	}
	return toRecords(rows)
}

// QueryRange returns records with start <= date <= end.
func (r *SQLiteRepository) QueryRange(ctx context.Context, start, end core.Date) ([]core.GoalRecord, error) {
	rows, err := r.queries.ListMetasBetween(ctx, ListMetasBetweenParams{
		Start: start.String(),
		End:   end.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list goals between %s and %s: %w", core.ErrStorage, start, end, err)
	}
	return toRecords(rows)
}

// QueryGroupedByCategory sums achieved per (category, monthly target) within
// the range. A category stored with several targets yields several rows.
func (r *SQLiteRepository) QueryGroupedByCategory(ctx context.Context, start, end core.Date) ([]core.GroupedRow, error) {
	rows, err := r.queries.GetTotalsByCategoryTarget(ctx, ListMetasBetweenParams{
		Start: start.String(),
		End:   end.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: group goals between %s and %s: %w", core.ErrStorage, start, end, err)
	}

	out := make([]core.GroupedRow, len(rows))
	for i, row := range rows {
		out[i] = core.GroupedRow{
			Category:      row.Nome,
			MonthlyTarget: row.MetaMensal,
			AchievedSum:   row.TotalRealizado,
		}
	}
	return out, nil
}

// QueryMonthlyByCategory sums achieved per (category, month) for year.
// Pairs without records are omitted.
func (r *SQLiteRepository) QueryMonthlyByCategory(ctx context.Context, year int) ([]core.MonthlyRow, error) {
	rows, err := r.queries.GetMonthlyTotalsByCategory(ctx, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, fmt.Errorf("%w: monthly totals for %d: %w", core.ErrStorage, year, err)
	}

	out := make([]core.MonthlyRow, len(rows))
	for i, row := range rows {
		out[i] = core.MonthlyRow{
			Category:    row.Nome,
			Month:       int(row.Mes),
			AchievedSum: row.Total,
		}
	}
	return out, nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountMetas(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count goals: %w", core.ErrStorage, err)
	}
	return n, nil
}

func toRecords(rows []Meta) ([]core.GoalRecord, error) {
	out := make([]core.GoalRecord, len(rows))
	for i, row := range rows {
		d, err := core.ParseDate(row.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d has unreadable date %q", core.ErrStorage, row.ID, row.Data)
		}
		out[i] = core.GoalRecord{
			ID:            row.ID,
			Category:      row.Nome,
			MonthlyTarget: row.MetaMensal,
			Achieved:      row.Realizado,
			Date:          d,
		}
	}
	return out, nil
}
