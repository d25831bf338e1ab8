package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"metas/internal/core"
	"metas/internal/engine"
	"metas/internal/export"
	applog "metas/internal/log"
)

func (s *Server) today() core.Date {
	now := s.now()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

// handleHealth performs basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks the templates and pings the record store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.goals.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldError, err)
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter_clients"] = s.rateLimiter.ActiveClients()

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
		"security":  s.metrics.snapshot(),
	})
}

// loadDashboard recomputes the dashboard for period. On a storage failure it
// degrades to an empty dashboard carrying an error banner.
func (s *Server) loadDashboard(ctx context.Context, period core.Period) dashboardView {
	cctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	defaults := s.goals.Defaults()
	d, err := s.goals.Recompute(cctx, period)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Dashboard recompute failed",
			applog.FieldOperation, applog.OpRecompute,
			applog.FieldPeriod, period.Key(),
			applog.FieldError, err)
		v := newDashboardView(engine.BuildDashboard(period, nil, nil, defaults), defaults, s.today())
		v.Error = "Could not load goals. Showing an empty dashboard."
		return v
	}
	return newDashboardView(d, defaults, s.today())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	period, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	s.render(w, r, "index.html", s.loadDashboard(r.Context(), period))
}

// handleDashboardPartial renders only the dashboard section for HTMX swaps.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}

	period, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	s.render(w, r, "dashboard", s.loadDashboard(r.Context(), period))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldOperation, applog.OpRender,
			"template", name,
			applog.FieldError, err)
		InternalServerError("rendering failed").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		if parser.IsJSON() {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		BadRequestError("Invalid request format").Write(w)
		return
	}
	asJSON := parser.IsJSON()

	in, err := parseGoalInput(parser, s.goals.Defaults(), s.today())
	if err != nil {
		s.goalError(w, asJSON, err)
		return
	}

	id, err := s.goals.Record(r.Context(), in)
	if err != nil {
		s.reqLog.LogError(r.Context(), "Goal record failed", err, applog.ComponentGoals, applog.OpCreate,
			applog.NewFields().WithGoal(0, in.Category, in.MonthlyTarget, in.Achieved, in.Date.String()))
		s.goalError(w, asJSON, err)
		return
	}

	date := in.Date.String()
	s.reqLog.LogGoalRecorded(r.Context(), id, in.Category, in.MonthlyTarget, in.Achieved, date)
	if asJSON {
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":             id,
			"category":       in.Category,
			"monthly_target": in.MonthlyTarget,
			"achieved":       in.Achieved,
			"date":           date,
		})
		return
	}

	year := core.YearPeriod(in.Date.Year())
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerGoalCreated(id, in.Category, date).
		TriggerFormReset().
		TriggerDashboardRefresh(year.Start.String(), year.End.String()).
		TriggerSuccessNotification("Goal recorded").
		HTML(fmt.Sprintf(`<div class="success">Recorded #%d: %s, %d of %d (%s)</div>`,
			id, template.HTMLEscapeString(in.Category), in.Achieved, in.MonthlyTarget, date)).
		Write(w)
}

// goalError maps validation errors to 422 and everything else to 500.
func (s *Server) goalError(w http.ResponseWriter, asJSON bool, err error) {
	status := http.StatusInternalServerError
	msg := "Could not save the goal"
	if errors.Is(err, core.ErrValidation) {
		status = http.StatusUnprocessableEntity
		msg = err.Error()
	}

	if asJSON {
		writeJSONError(w, status, msg)
		return
	}
	ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
}

type recordResponse struct {
	ID            int64  `json:"id"`
	Category      string `json:"category"`
	MonthlyTarget int64  `json:"monthly_target"`
	Achieved      int64  `json:"achieved"`
	Date          string `json:"date"`
}

// handleRecords lists the raw entries of a period in date order.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	period, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	recs, err := s.goals.Records(ctx, period)
	if err != nil {
		s.apiError(w, r, applog.OpList, err)
		return
	}

	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordResponse{
			ID:            rec.ID,
			Category:      rec.Category,
			MonthlyTarget: rec.MonthlyTarget,
			Achieved:      rec.Achieved,
			Date:          rec.Date.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type summariesResponse struct {
	Start     string                 `json:"start"`
	End       string                 `json:"end"`
	Summaries []engine.PeriodSummary `json:"summaries"`
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	period, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	d, err := s.goals.Recompute(ctx, period)
	if err != nil {
		s.apiError(w, r, applog.OpRecompute, err)
		return
	}

	writeJSON(w, http.StatusOK, summariesResponse{Start: d.Start, End: d.End, Summaries: d.Summaries})
}

func (s *Server) handleAnnual(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	year, err := parseYear(r.URL.Query(), s.now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	totals, err := s.goals.AnnualTotals(ctx, year)
	if err != nil {
		s.apiError(w, r, applog.OpRecompute, err)
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	writeJSON(w, http.StatusOK, s.goals.Defaults())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	query := r.URL.Query()
	format := export.FormatCSV
	if v := query.Get("format"); v != "" {
		f, err := export.ParseFormat(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	period, err := parsePeriod(query, s.now())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	d, err := s.goals.Recompute(ctx, period)
	if err != nil {
		s.apiError(w, r, applog.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Encode(&buf, d, format); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Export encoding failed",
			applog.FieldOperation, applog.OpExport,
			applog.FieldFormat, string(format),
			applog.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := export.DefaultName(d) + "." + string(format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) apiError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, core.ErrValidation) {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Goal query failed",
		applog.FieldOperation, op,
		applog.FieldError, err)
	writeJSONError(w, http.StatusInternalServerError, "storage unavailable")
}
