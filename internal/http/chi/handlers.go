package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/metrics"
	"github.com/marcelsud/webhook-inspector/sources"
	"github.com/marcelsud/webhook-inspector/synthesis"
)

// Pinger reports whether the store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the collaborators and limits of the HTTP layer.
// Zero values select a permissive default.
type Options struct {
	LogLevel               string
	Sources                *sources.Loader
	Health                 Pinger
	Collector              metrics.Collector
	Recorder               metrics.Recorder
	Metrics                http.Handler
	MaxBodyBytes           int64
	CORSOrigins            []string
	SynthesisTimeout       time.Duration
	SynthesisRatePerMinute int
}

const (
	defaultMaxBodyBytes = 1 << 20
	readTimeout         = 30 * time.Second
)

// Handlers sets up the capture, retrieval and synthesis routes
func Handlers(captureService capture.UseCase, synthesisService synthesis.UseCase, opts Options) *chi.Mux {
	logger := httplog.NewLogger("webhook-inspector", httplog.Options{
		JSON:     true,
		LogLevel: opts.LogLevel,
	})

	if opts.Sources == nil {
		opts.Sources = sources.NewLoader(http.StatusOK)
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Noop{}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", health(opts.Health).ServeHTTP)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// Every method and sub-path is captured
	capturer := captureWebhook(captureService, opts.Sources, opts.Recorder, opts.MaxBodyBytes)
	r.Handle("/capture", capturer)
	r.Handle("/capture/*", capturer)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(readTimeout))
			r.Method(http.MethodGet, "/webhooks", listWebhooks(captureService))
			r.Method(http.MethodGet, "/webhooks/{id}", getWebhook(captureService))
			if opts.Collector != nil {
				r.Method(http.MethodGet, "/stats", getStats(opts.Collector))
			}
		})

		limiter := NewRateLimiter(opts.SynthesisRatePerMinute)
		r.With(limiter.Handler).Method(http.MethodPost, "/generate",
			generateHandler(synthesisService, opts.Recorder, opts.SynthesisTimeout))
	})

	return r
}
