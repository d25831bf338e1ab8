package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"metas/internal/core"
	"metas/internal/engine"
	applog "metas/internal/log"
)

type fakeGoals struct {
	defaults   core.CategoryDefaults
	records    []core.GoalInput
	recordErr  error
	readErr    error
	pingErr    error
	recomputed []core.Period
}

func (f *fakeGoals) Record(_ context.Context, in core.GoalInput) (int64, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	f.records = append(f.records, in)
	return int64(len(f.records)), nil
}

func (f *fakeGoals) Recompute(_ context.Context, period core.Period) (engine.Dashboard, error) {
	f.recomputed = append(f.recomputed, period)
	if f.readErr != nil {
		return engine.Dashboard{}, f.readErr
	}
	var grouped []core.GroupedRow
	var monthly []core.MonthlyRow
	for _, r := range f.records {
		if period.Contains(r.Date) {
			grouped = append(grouped, core.GroupedRow{Category: r.Category, MonthlyTarget: r.MonthlyTarget, AchievedSum: r.Achieved})
		}
		if r.Date.Year() == period.Start.Year() {
			monthly = append(monthly, core.MonthlyRow{Category: r.Category, Month: r.Date.Month(), AchievedSum: r.Achieved})
		}
	}
	return engine.BuildDashboard(period, grouped, monthly, f.defaults), nil
}

func (f *fakeGoals) AnnualTotals(ctx context.Context, year int) (engine.AnnualTotals, error) {
	d, err := f.Recompute(ctx, core.YearPeriod(year))
	return d.Annual, err
}

func (f *fakeGoals) Records(_ context.Context, period core.Period) ([]core.GoalRecord, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	var out []core.GoalRecord
	for i, r := range f.records {
		if period.Contains(r.Date) {
			out = append(out, core.GoalRecord{ID: int64(i + 1), Category: r.Category, MonthlyTarget: r.MonthlyTarget, Achieved: r.Achieved, Date: r.Date})
		}
	}
	return out, nil
}

func (f *fakeGoals) Defaults() core.CategoryDefaults { return f.defaults }

func (f *fakeGoals) Ping(context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, goals *fakeGoals) *Server {
	t.Helper()
	if goals.defaults == nil {
		goals.defaults = core.DefaultCategories()
	}
	logger := applog.New(applog.Config{Level: applog.DefaultConfig().Level, Output: io.Discard, Component: applog.ComponentApp})
	srv := NewServer(":0", goals, logger)
	srv.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func do(srv *Server, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(srv *Server, form url.Values) *httptest.ResponseRecorder {
	return do(srv, http.MethodPost, "/goals", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func TestIndexRendersDashboard(t *testing.T) {
	goals := &fakeGoals{records: []core.GoalInput{
		{Category: "Sites", MonthlyTarget: 5, Achieved: 3, Date: core.NewDate(2026, 4, 1)},
	}}
	srv := newTestServer(t, goals)

	rr := do(srv, http.MethodGet, "/", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Goals Dashboard", "Sites", "60.0%", "Annual projection 2026", "Celina IA"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if got := goals.recomputed[0]; got != core.YearPeriod(2026) {
		t.Errorf("default period = %v, want year 2026", got)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers not set")
	}
}

func TestIndexDegradesOnStorageError(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{readErr: fmt.Errorf("%w: disk I/O", core.ErrStorage)})

	rr := do(srv, http.MethodGet, "/?start=2026-01-01&end=2026-03-31", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Could not load goals") {
		t.Error("missing error banner")
	}
	if !strings.Contains(body, "No goals recorded in this period") {
		t.Error("degraded dashboard should be empty")
	}
}

func TestIndexRejectsBadPeriod(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{})
	if rr := do(srv, http.MethodGet, "/?start=2026-13-01", nil, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{})
	if rr := do(srv, http.MethodGet, "/nope", nil, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestDashboardPartial(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{})
	rr := do(srv, http.MethodGet, "/ui/dashboard?start=2025-01-01&end=2025-12-31", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "<html") {
		t.Error("partial should not render the full page")
	}
	if !strings.Contains(body, `id="dashboard"`) || !strings.Contains(body, "Annual projection 2025") {
		t.Error("partial missing dashboard content")
	}
}

func TestCreateGoalForm(t *testing.T) {
	goals := &fakeGoals{}
	srv := newTestServer(t, goals)

	rr := postForm(srv, url.Values{"category": {"Delivery"}, "achieved": {"1"}})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	if len(goals.records) != 1 {
		t.Fatalf("records = %d, want 1", len(goals.records))
	}
	got := goals.records[0]
	want := core.GoalInput{Category: "Delivery", MonthlyTarget: 2, Achieved: 1, Date: core.NewDate(2026, 5, 10)}
	if got != want {
		t.Errorf("recorded %+v, want %+v", got, want)
	}

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger: %v", err)
	}
	for _, name := range []string{"goal:created", "form:reset", "dashboard:refresh", "show-notification"} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("missing trigger %s", name)
		}
	}
}

func TestCreateGoalJSON(t *testing.T) {
	goals := &fakeGoals{}
	srv := newTestServer(t, goals)

	body := `{"category":"Sites","monthly_target":7,"achieved":3,"date":"2026-02-28"}`
	rr := do(srv, http.MethodPost, "/goals", strings.NewReader(body), "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID            int64  `json:"id"`
		MonthlyTarget int64  `json:"monthly_target"`
		Date          string `json:"date"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != 1 || resp.MonthlyTarget != 7 || resp.Date != "2026-02-28" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateGoalErrors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		recordErr   error
		wantStatus  int
	}{
		{"negative achieved", "category=Sites&achieved=-1", "application/x-www-form-urlencoded", nil, http.StatusUnprocessableEntity},
		{"zero target", "category=Sites&monthly_target=0", "application/x-www-form-urlencoded", nil, http.StatusUnprocessableEntity},
		{"unknown category without target", "category=Other", "application/x-www-form-urlencoded", nil, http.StatusUnprocessableEntity},
		{"invalid date", `{"category":"Sites","date":"2026-02-30"}`, "application/json", nil, http.StatusUnprocessableEntity},
		{"malformed json", `{"category":`, "application/json", nil, http.StatusBadRequest},
		{"storage failure", "category=Sites&achieved=1", "application/x-www-form-urlencoded", fmt.Errorf("%w: locked", core.ErrStorage), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goals := &fakeGoals{recordErr: tt.recordErr}
			srv := newTestServer(t, goals)

			rr := do(srv, http.MethodPost, "/goals", strings.NewReader(tt.body), tt.contentType)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if len(goals.records) != 0 {
				t.Error("nothing should be recorded")
			}
		})
	}
}

func TestCreateGoalMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{})
	rr := do(srv, http.MethodGet, "/goals", nil, "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q", rr.Header().Get("Allow"))
	}
}

func TestPostRateLimit(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{})
	form := url.Values{"category": {"Sites"}, "achieved": {"1"}}

	for i := 0; i < defaultPostLimit; i++ {
		if rr := postForm(srv, form); rr.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d", i+1, rr.Code)
		}
	}
	rr := postForm(srv, form)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}

	// Reads are not limited.
	if rr := do(srv, http.MethodGet, "/api/categories", nil, ""); rr.Code != http.StatusOK {
		t.Errorf("GET after limit: status = %d", rr.Code)
	}
}

func TestAPISummaries(t *testing.T) {
	goals := &fakeGoals{records: []core.GoalInput{
		{Category: "Sites", MonthlyTarget: 5, Achieved: 10, Date: core.NewDate(2026, 3, 1)},
	}}
	srv := newTestServer(t, goals)

	rr := do(srv, http.MethodGet, "/api/summaries?start=2026-01-01&end=2026-06-30", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp summariesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Start != "2026-01-01" || resp.End != "2026-06-30" || len(resp.Summaries) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if s := resp.Summaries[0]; s.Remaining != 0 || s.PercentComplete != 200 {
		t.Errorf("summary = %+v", s)
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		readErr    error
		wantStatus int
	}{
		{"bad start", "/api/summaries?start=yesterday", nil, http.StatusBadRequest},
		{"bad year", "/api/annual?year=abc", nil, http.StatusBadRequest},
		{"storage on summaries", "/api/summaries", errors.Join(core.ErrStorage), http.StatusInternalServerError},
		{"storage on annual", "/api/annual?year=2026", fmt.Errorf("%w: gone", core.ErrStorage), http.StatusInternalServerError},
		{"bad export format", "/export?format=xml", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeGoals{readErr: tt.readErr})
			rr := do(srv, http.MethodGet, tt.target, nil, "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestAPIRecords(t *testing.T) {
	goals := &fakeGoals{records: []core.GoalInput{
		{Category: "Sites", MonthlyTarget: 5, Achieved: 1, Date: core.NewDate(2026, 1, 31)},
		{Category: "Delivery", MonthlyTarget: 2, Achieved: 2, Date: core.NewDate(2026, 2, 1)},
	}}
	srv := newTestServer(t, goals)

	rr := do(srv, http.MethodGet, "/api/goals?start=2026-01-31&end=2026-01-31", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var recs []recordResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recs) != 1 || recs[0].Category != "Sites" || recs[0].Date != "2026-01-31" {
		t.Errorf("records = %+v", recs)
	}

	rr = do(srv, http.MethodGet, "/api/goals?start=2030-01-01&end=2030-12-31", nil, "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty period body = %q, want []", rr.Body.String())
	}
}

func TestAPIAnnual(t *testing.T) {
	goals := &fakeGoals{records: []core.GoalInput{
		{Category: "Sites", MonthlyTarget: 5, Achieved: 2, Date: core.NewDate(2025, 2, 1)},
	}}
	srv := newTestServer(t, goals)

	rr := do(srv, http.MethodGet, "/api/annual?year=2025", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var totals engine.AnnualTotals
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if totals.Year != 2025 || len(totals.Series) != len(goals.defaults) {
		t.Fatalf("totals = %+v", totals)
	}
	sites := totals.Series[0]
	if sites.Achieved[0] != 0 || sites.Achieved[1] != 2 || sites.Achieved[11] != 2 {
		t.Errorf("achieved = %v", sites.Achieved)
	}
	if sites.Target[11] != 60 {
		t.Errorf("december target = %d, want 60", sites.Target[11])
	}
}

func TestAPICategories(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{})
	rr := do(srv, http.MethodGet, "/api/categories", nil, "")
	var cats core.CategoryDefaults
	if err := json.Unmarshal(rr.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) != 5 || cats[4].Name != "Celina IA" || cats[4].DefaultTarget != 50 {
		t.Errorf("categories = %+v", cats)
	}
}

func TestExport(t *testing.T) {
	tests := []struct {
		format      string
		contentType string
		prefix      string
	}{
		{"", "text/csv; charset=utf-8", "Period 2026-01-01 to 2026-12-31"},
		{"json", "application/json", "{"},
		{"pdf", "application/pdf", "%PDF-"},
	}

	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			srv := newTestServer(t, &fakeGoals{})
			rr := do(srv, http.MethodGet, "/export?format="+tt.format, nil, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "metas_2026-01-01_2026-12-31.") {
				t.Errorf("Content-Disposition = %q", cd)
			}
			if !bytes.HasPrefix(rr.Body.Bytes(), []byte(tt.prefix)) {
				t.Errorf("body does not start with %q", tt.prefix)
			}
		})
	}
}

func TestHealthAndReady(t *testing.T) {
	goals := &fakeGoals{}
	srv := newTestServer(t, goals)

	if rr := do(srv, http.MethodGet, "/healthz", nil, ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}
	if rr := do(srv, http.MethodGet, "/readyz", nil, ""); rr.Code != http.StatusOK {
		t.Fatalf("readyz status = %d: %s", rr.Code, rr.Body.String())
	}

	goals.pingErr = fmt.Errorf("%w: database is closed", core.ErrStorage)
	rr := do(srv, http.MethodGet, "/readyz", nil, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestWrappedRoutesSetHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeGoals{})
	rr := do(srv, http.MethodGet, "/api/categories", nil, "")

	if !strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_") {
		t.Errorf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if rr.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestAPIReadFailureLogsOperation(t *testing.T) {
	tests := map[string]string{
		"/api/goals":     applog.OpList,
		"/api/summaries": applog.OpRecompute,
		"/export":        applog.OpExport,
	}
	for target, wantOp := range tests {
		t.Run(target, func(t *testing.T) {
			var buf bytes.Buffer
			logger := applog.New(applog.Config{Level: applog.DefaultConfig().Level, Output: &buf, JSON: true, Component: applog.ComponentApp})
			srv := NewServer(":0", &fakeGoals{defaults: core.DefaultCategories(), readErr: core.ErrStorage}, logger)
			t.Cleanup(func() { srv.rateLimiter.stop() })

			if rr := do(srv, http.MethodGet, target, nil, ""); rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", rr.Code)
			}

			found := false
			dec := json.NewDecoder(&buf)
			for dec.More() {
				var line map[string]any
				if err := dec.Decode(&line); err != nil {
					t.Fatalf("decode log line: %v", err)
				}
				if line["msg"] == "Goal query failed" {
					found = true
					if line[applog.FieldOperation] != wantOp {
						t.Errorf("operation = %v, want %s", line[applog.FieldOperation], wantOp)
					}
				}
			}
			if !found {
				t.Error("read failure was not logged")
			}
		})
	}
}
