package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"metas/internal/core"
	"metas/internal/engine"
	applog "metas/internal/log"
	appweb "metas/web"
)

const (
	readTimeout  = 7 * time.Second
	readyTimeout = 3 * time.Second
)

// Goals is what the handlers need from the goal service.
type Goals interface {
	Record(ctx context.Context, in core.GoalInput) (int64, error)
	Recompute(ctx context.Context, period core.Period) (engine.Dashboard, error)
	AnnualTotals(ctx context.Context, year int) (engine.AnnualTotals, error)
	Records(ctx context.Context, period core.Period) ([]core.GoalRecord, error)
	Defaults() core.CategoryDefaults
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	templates   *template.Template
	goals       Goals
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	logger      *applog.Logger
	reqLog      *applog.StructuredLogger
	startedAt   time.Time
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, goals Goals, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           applog.Middleware(logger)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		goals:       goals,
		rateLimiter: newRateLimiter(defaultPostLimit),
		metrics:     &securityMetrics{},
		logger:      logger,
		reqLog:      applog.NewStructuredLogger(logger),
		startedAt:   time.Now(),
		now:         time.Now,
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates",
			applog.FieldComponent, applog.ComponentTemplate,
			applog.FieldOperation, applog.OpParse,
			applog.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/goals", s.withSecurityHeaders(s.handleCreateGoal))
	mux.HandleFunc("/ui/dashboard", s.withSecurityHeaders(s.handleDashboardPartial))
	mux.HandleFunc("/api/goals", s.withSecurityHeaders(s.handleRecords))
	mux.HandleFunc("/api/summaries", s.withSecurityHeaders(s.handleSummaries))
	mux.HandleFunc("/api/annual", s.withSecurityHeaders(s.handleAnnual))
	mux.HandleFunc("/api/categories", s.withSecurityHeaders(s.handleCategories))
	mux.HandleFunc("/export", s.withSecurityHeaders(s.handleExport))

	return s
}

var templateFuncs = template.FuncMap{
	"percent": engine.FormatPercent,
}

// Shutdown stops the rate limiter cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		w.Header().Set("X-Request-ID", requestID)

		reqLogger := applog.FromContext(r.Context()).With(
			applog.FieldRequestID, requestID,
			applog.FieldClientIP, clientIP)
		ctx := applog.WithContext(r.Context(), reqLogger)
		r = r.WithContext(ctx)

		if reason := s.metrics.inspect(r); reason != "" {
			reqLogger.WithComponent(applog.ComponentSecurity).WarnContext(ctx, "Suspicious request",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.UserAgent(),
				"reason", reason)
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.metrics) {
			reqLogger.WithComponent(applog.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			TooManyRequestsError(int(rateWindow.Seconds())).Write(w)
			return
		}

		setSecurityHeaders(w.Header())

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.reqLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
