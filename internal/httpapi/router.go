// Package httpapi exposes the renderer over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	web2pdf "github.com/alnah/go-web2pdf"
	"github.com/alnah/go-web2pdf/internal/logger"
	"github.com/alnah/go-web2pdf/internal/middleware"
)

// Renderer renders one job. *web2pdf.Renderer implements it.
type Renderer interface {
	Render(ctx context.Context, job web2pdf.Job) (*web2pdf.Result, error)
}

// StatsSource reports pool occupancy. *web2pdf.Pool implements it.
type StatsSource interface {
	Stats() web2pdf.PoolStats
}

// Defaults for Options left zero.
const (
	DefaultMaxBodyBytes = 10 << 20
	DefaultRetryAfter   = 5 * time.Second
)

// Options configures the router.
type Options struct {
	Renderer Renderer
	Stats    StatsSource
	Logger   *logger.Logger

	// Gatherer backs GET /metrics; nil disables the route.
	Gatherer prometheus.Gatherer
	// HTTPMetrics instruments every route when set.
	HTTPMetrics *middleware.HTTPMetrics

	CORSOrigins  []string
	MaxBodyBytes int64
	RetryAfter   time.Duration
}

// NewRouter builds the service's HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = DefaultRetryAfter
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	h := &handlers{
		renderer:     opts.Renderer,
		stats:        opts.Stats,
		log:          opts.Logger.WithComponent("httpapi"),
		maxBodyBytes: opts.MaxBodyBytes,
		retryAfter:   opts.RetryAfter,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(opts.Logger))
	r.Use(middleware.Recovery(opts.Logger))
	if opts.HTTPMetrics != nil {
		r.Use(opts.HTTPMetrics.Handler)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition", pagesHeader, middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	r.Get("/health", h.health)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/pdf", func(r chi.Router) {
		r.Get("/url", h.fromURL)
		r.Post("/content", h.fromContent)
		r.Post("/html", h.fromJSON)
	})

	return r
}
