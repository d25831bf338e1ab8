package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"metas/internal/core"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser reads a goal submission sent either form-encoded (the
// HTMX form) or as a flat JSON object (API clients). Both end up as
// url.Values so handlers read fields the same way.
type RequestBodyParser struct {
	body   []byte
	json   bool
	values url.Values
	done   bool
	err    error
}

// NewRequestBodyParser reads up to 1 MiB of the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	trimmed := strings.TrimSpace(string(p.body))
	p.json = strings.Contains(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(trimmed, "{")
	return p
}

// Parse decodes the body once; later calls return the first result.
func (p *RequestBodyParser) Parse() error {
	if p.done {
		return p.err
	}
	p.done = true
	if p.err != nil {
		return p.err
	}

	switch {
	case len(p.body) == 0:
		p.json = false
		p.values = url.Values{}
	case p.json:
		p.values, p.err = flattenJSON(p.body)
	default:
		p.values, p.err = url.ParseQuery(string(p.body))
	}
	return p.err
}

func flattenJSON(body []byte) (url.Values, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	values := make(url.Values, len(fields))
	for k, v := range fields {
		switch v := v.(type) {
		case string:
			values.Set(k, v)
		case float64:
			values.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			values.Set(k, strconv.FormatBool(v))
		}
	}
	return values, nil
}

// Get returns the sanitized value of key, or "" when absent.
func (p *RequestBodyParser) Get(key string) string {
	return sanitizeInput(p.values.Get(key))
}

// IsJSON reports whether the body was sent as JSON, even if it failed to decode.
func (p *RequestBodyParser) IsJSON() bool {
	return p.json
}

// parseGoalInput builds a GoalInput from the parsed body. A missing target
// falls back to the category default, a missing date to today. Field format
// errors are validation errors; range checks are left to GoalInput.Validate.
func parseGoalInput(p *RequestBodyParser, defaults core.CategoryDefaults, today core.Date) (core.GoalInput, error) {
	in := core.GoalInput{
		Category: p.Get("category"),
		Date:     today,
	}

	target := p.Get("monthly_target")
	if target == "" {
		t, ok := defaults.Target(in.Category)
		if !ok {
			return in, fmt.Errorf("%w: monthly_target is required for category %q", core.ErrValidation, in.Category)
		}
		in.MonthlyTarget = t
	} else {
		t, err := parseInt(target)
		if err != nil {
			return in, fmt.Errorf("%w: monthly_target %q is not a whole number", core.ErrValidation, target)
		}
		in.MonthlyTarget = t
	}

	achieved := p.Get("achieved")
	if achieved != "" {
		a, err := parseInt(achieved)
		if err != nil {
			return in, fmt.Errorf("%w: achieved %q is not a whole number", core.ErrValidation, achieved)
		}
		in.Achieved = a
	}

	if v := p.Get("date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return in, err
		}
		in.Date = d
	}

	return in, in.Validate()
}

// parseInt accepts integers, including JSON numbers such as 5 or 5.0.
func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponse {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponse {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET is a convenience function for read-only handlers.
func RequireGET(r *http.Request) *HTMXResponse {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}
