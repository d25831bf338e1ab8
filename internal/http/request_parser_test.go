package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"metas/internal/core"
)

func newParser(t *testing.T, body, contentType string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/goals", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantJSON    bool
		key         string
		want        string
	}{
		{"form", "category=Sites&achieved=2", "application/x-www-form-urlencoded", false, "category", "Sites"},
		{"json by header", `{"category":"Delivery"}`, "application/json", true, "category", "Delivery"},
		{"json by body", `{"achieved":3}`, "", true, "achieved", "3"},
		{"json float", `{"monthly_target":5.0}`, "application/json", true, "monthly_target", "5"},
		{"control characters stripped", "category=%01Sites%02", "application/x-www-form-urlencoded", false, "category", "Sites"},
		{"missing key", "category=Sites", "application/x-www-form-urlencoded", false, "date", ""},
		{"empty body", "", "", false, "category", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.body, tt.contentType)
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			if got := p.Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRequestBodyParserMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/goals", strings.NewReader(`{"category":`))
	req.Header.Set("Content-Type", "application/json")
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err == nil {
		t.Fatal("expected an error")
	}
	// A second call returns the same outcome without re-reading.
	if err := p.Parse(); err == nil {
		t.Fatal("expected the cached error")
	}
}

func TestParseGoalInput(t *testing.T) {
	today := core.NewDate(2026, 5, 10)
	defaults := core.DefaultCategories()

	tests := []struct {
		name    string
		form    url.Values
		want    core.GoalInput
		wantErr error
	}{
		{
			name: "target from category default and date today",
			form: url.Values{"category": {"Ecommerce"}, "achieved": {"4"}},
			want: core.GoalInput{Category: "Ecommerce", MonthlyTarget: 10, Achieved: 4, Date: today},
		},
		{
			name: "explicit target and date",
			form: url.Values{"category": {"Sites"}, "monthly_target": {"8"}, "achieved": {"0"}, "date": {"2026-01-31"}},
			want: core.GoalInput{Category: "Sites", MonthlyTarget: 8, Achieved: 0, Date: core.NewDate(2026, 1, 31)},
		},
		{
			name: "unknown category with explicit target",
			form: url.Values{"category": {"Blog"}, "monthly_target": {"3"}},
			want: core.GoalInput{Category: "Blog", MonthlyTarget: 3, Date: today},
		},
		{
			name:    "unknown category without target",
			form:    url.Values{"category": {"Blog"}},
			wantErr: core.ErrValidation,
		},
		{
			name:    "empty category",
			form:    url.Values{"monthly_target": {"3"}},
			wantErr: core.ErrEmptyCategory,
		},
		{
			name:    "fractional achieved",
			form:    url.Values{"category": {"Sites"}, "achieved": {"2.5"}},
			wantErr: core.ErrValidation,
		},
		{
			name:    "negative achieved",
			form:    url.Values{"category": {"Sites"}, "achieved": {"-1"}},
			wantErr: core.ErrInvalidAchieved,
		},
		{
			name:    "zero target",
			form:    url.Values{"category": {"Sites"}, "monthly_target": {"0"}},
			wantErr: core.ErrInvalidTarget,
		},
		{
			name:    "impossible date",
			form:    url.Values{"category": {"Sites"}, "date": {"2026-02-30"}},
			wantErr: core.ErrInvalidDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.form.Encode(), "application/x-www-form-urlencoded")
			got, err := parseGoalInput(p, defaults, today)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"5", 5, false},
		{"-3", -3, false},
		{"5.0", 5, false},
		{"5.5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseInt(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseInt(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		query   url.Values
		want    core.Period
		wantErr bool
	}{
		{"defaults to current year", url.Values{}, core.YearPeriod(2026), false},
		{"start only", url.Values{"start": {"2026-03-01"}}, core.Period{Start: core.NewDate(2026, 3, 1), End: core.NewDate(2026, 12, 31)}, false},
		{"both bounds", url.Values{"start": {"2025-01-01"}, "end": {"2025-06-30"}}, core.Period{Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 6, 30)}, false},
		{"reversed range passes through", url.Values{"start": {"2026-12-01"}, "end": {"2026-01-01"}}, core.Period{Start: core.NewDate(2026, 12, 1), End: core.NewDate(2026, 1, 1)}, false},
		{"bad end", url.Values{"end": {"31/12/2026"}}, core.Period{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePeriod(tt.query, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, core.ErrValidation) {
					t.Errorf("err = %v, want validation kind", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseYear(t *testing.T) {
	now := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if y, err := parseYear(url.Values{}, now); err != nil || y != 2027 {
		t.Errorf("default year = %d, %v", y, err)
	}
	if y, err := parseYear(url.Values{"year": {"2024"}}, now); err != nil || y != 2024 {
		t.Errorf("year = %d, %v", y, err)
	}
	for _, bad := range []string{"abc", "0", "10000"} {
		if _, err := parseYear(url.Values{"year": {bad}}, now); !errors.Is(err, core.ErrValidation) {
			t.Errorf("parseYear(%q) err = %v", bad, err)
		}
	}
}

func TestRequireMethod(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/", nil)
	head := httptest.NewRequest(http.MethodHead, "/", nil)
	post := httptest.NewRequest(http.MethodPost, "/", nil)

	if RequireGET(get) != nil || RequireGET(head) != nil {
		t.Error("GET and HEAD should pass RequireGET")
	}
	if RequirePOST(post) != nil {
		t.Error("POST should pass RequirePOST")
	}

	rr := httptest.NewRecorder()
	RequirePOST(get).Write(rr)
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "POST" {
		t.Errorf("got %d Allow=%q", rr.Code, rr.Header().Get("Allow"))
	}
}
