package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"metas/internal/cache"
	"metas/internal/core"
	"metas/internal/engine"
	applog "metas/internal/log"
)

// GoalStore is the subset of the record store the service needs.
type GoalStore interface {
	Insert(ctx context.Context, in core.GoalInput) (int64, error)
	QueryRange(ctx context.Context, start, end core.Date) ([]core.GoalRecord, error)
	QueryGroupedByCategory(ctx context.Context, start, end core.Date) ([]core.GroupedRow, error)
	QueryMonthlyByCategory(ctx context.Context, year int) ([]core.MonthlyRow, error)
	Ping(ctx context.Context) error
}

// EventPublisher announces stored goal entries. Nil disables events.
type EventPublisher interface {
	PublishGoalRecorded(ctx context.Context, rec core.GoalRecord) error
}

// GoalService orchestrates goal entries across the store, the event bus and
// the dashboard cache. Writes and recomputes are separate calls.
type GoalService struct {
	store     GoalStore
	publisher EventPublisher
	cache     cache.Cache[engine.Dashboard]
	defaults  core.CategoryDefaults
	logger    *slog.Logger

	// gen counts committed writes. A recompute that saw gen change while it
	// was reading does not cache its result.
	mu  sync.Mutex
	gen uint64
}

// Option configures optional GoalService collaborators.
type Option func(*GoalService)

// WithPublisher enables goal.recorded events.
func WithPublisher(p EventPublisher) Option {
	return func(s *GoalService) { s.publisher = p }
}

// WithCache enables dashboard caching.
func WithCache(c cache.Cache[engine.Dashboard]) Option {
	return func(s *GoalService) { s.cache = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *GoalService) { s.logger = l }
}

func NewGoalService(store GoalStore, defaults core.CategoryDefaults, opts ...Option) *GoalService {
	s := &GoalService{
		store:    store,
		defaults: defaults,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the configured category table.
func (s *GoalService) Defaults() core.CategoryDefaults {
	return s.defaults
}

// Record stores a goal entry. Publish failures are logged, not returned.
func (s *GoalService) Record(ctx context.Context, in core.GoalInput) (int64, error) {
	id, err := s.store.Insert(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("record goal: %w", err)
	}
	s.invalidate()

	rec := core.GoalRecord{
		ID:            id,
		Category:      in.Category,
		MonthlyTarget: in.MonthlyTarget,
		Achieved:      in.Achieved,
		Date:          in.Date,
	}
	if s.publisher != nil {
		if err := s.publisher.PublishGoalRecorded(ctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish goal recorded event",
				applog.FieldComponent, applog.ComponentGoals,
				applog.FieldGoalID, id,
				applog.FieldError, err)
		}
	}

	s.logger.InfoContext(ctx, "Goal entry recorded",
		applog.FieldComponent, applog.ComponentGoals,
		applog.FieldGoalID, id,
		applog.FieldCategory, in.Category,
		applog.FieldMonthlyTarget, in.MonthlyTarget,
		applog.FieldAchieved, in.Achieved,
		applog.FieldDate, in.Date.String())

	return id, nil
}

// Recompute builds the dashboard for a period from the store's aggregates.
func (s *GoalService) Recompute(ctx context.Context, period core.Period) (engine.Dashboard, error) {
	key := period.Key()
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			return d, nil
		}
	}

	gen := s.generation()
	grouped, err := s.store.QueryGroupedByCategory(ctx, period.Start, period.End)
	if err != nil {
		return engine.Dashboard{}, fmt.Errorf("recompute %s: %w", key, err)
	}
	monthly, err := s.store.QueryMonthlyByCategory(ctx, engine.ProjectionYear(period))
	if err != nil {
		return engine.Dashboard{}, fmt.Errorf("recompute %s: %w", key, err)
	}

	d := engine.BuildDashboard(period, grouped, monthly, s.defaults)
	s.cacheIfCurrent(key, d, gen)

	s.logger.DebugContext(ctx, "Dashboard recomputed",
		applog.FieldComponent, applog.ComponentEngine,
		applog.FieldPeriod, key,
		"summaries", len(d.Summaries))

	return d, nil
}

func (s *GoalService) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cache != nil {
		s.cache.Clear()
	}
}

func (s *GoalService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// cacheIfCurrent stores d unless a write committed after gen was read.
func (s *GoalService) cacheIfCurrent(key string, d engine.Dashboard, gen uint64) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cache.Set(key, d)
	}
}

// AnnualTotals recomputes only the projection for a calendar year.
func (s *GoalService) AnnualTotals(ctx context.Context, year int) (engine.AnnualTotals, error) {
	d, err := s.Recompute(ctx, core.YearPeriod(year))
	if err != nil {
		return engine.AnnualTotals{}, err
	}
	return d.Annual, nil
}

// Records returns the raw entries inside a period.
func (s *GoalService) Records(ctx context.Context, period core.Period) ([]core.GoalRecord, error) {
	recs, err := s.store.QueryRange(ctx, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("list goals %s: %w", period.Key(), err)
	}
	return recs, nil
}

// Ping reports whether the store is reachable.
func (s *GoalService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
