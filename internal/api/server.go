// Package api serves the rule-mining pipeline as a JSON HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/config"
	"github.com/Veraticus/basket-rules/internal/model"
	"github.com/Veraticus/basket-rules/internal/pipeline"
)

// DefaultRequestTimeout bounds a single analysis request.
const DefaultRequestTimeout = 30 * time.Second

// Analyzer runs the rule-mining pipeline.
type Analyzer interface {
	Run(ctx context.Context, cfg pipeline.Config) (pipeline.Result, error)
	Lookup(ctx context.Context, cfg pipeline.Config, antecedent, consequent string) (basket.RuleMetrics, error)
	Items(ctx context.Context, filter model.Filter, g model.Granularity) ([]string, error)
}

// SelectionSource lists the outlets, years and quarters on record.
type SelectionSource interface {
	Selection(ctx context.Context) (model.Selection, error)
}

// Options configures a Server.
type Options struct {
	Analyzer       Analyzer
	Selections     SelectionSource
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	Defaults       config.Analysis
	RequestTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	analyzer   Analyzer
	selections SelectionSource
	logger     *slog.Logger
	gatherer   prometheus.Gatherer
	defaults   config.Analysis
	timeout    time.Duration
}

// NewServer creates a server. A nil Gatherer serves the default registry.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Server{
		analyzer:   opts.Analyzer,
		selections: opts.Selections,
		logger:     opts.Logger.With(slog.String("component", "api")),
		gatherer:   opts.Gatherer,
		defaults:   opts.Defaults,
		timeout:    opts.RequestTimeout,
	}
}

// Routes returns the router for every endpoint.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(middleware.Timeout(s.timeout))

		r.Get("/options", s.options)
		r.Get("/items", s.items)
		r.Get("/rules", s.rules)
		r.Get("/rules/lookup", s.lookup)
	})

	return r
}

// requestLogger logs one line per request after it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), "request completed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", requestID(r)))
	})
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
