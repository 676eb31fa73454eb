package web2pdf

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger for render events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithDefaultWait sets the load condition for URL jobs that do not name one.
func WithDefaultWait(w WaitCondition) Option {
	return func(r *Renderer) {
		if w != "" {
			r.defaultWait = w
		}
	}
}

// WithMetrics reports render outcomes to m.
func WithMetrics(m *Metrics) Option {
	return func(r *Renderer) {
		r.metrics = m
	}
}

// Renderer turns jobs into PDF documents using handles from a shared pool.
// It is safe for concurrent use.
type Renderer struct {
	pool        *Pool
	log         *slog.Logger
	metrics     *Metrics
	defaultWait WaitCondition
}

// NewRenderer creates a Renderer backed by pool. The pool is not owned:
// closing it is the caller's job.
func NewRenderer(pool *Pool, opts ...Option) *Renderer {
	if pool == nil {
		panic("web2pdf: nil pool")
	}
	r := &Renderer{
		pool:        pool,
		log:         slog.New(slog.DiscardHandler),
		defaultWait: WaitLoad,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render validates job, leases a handle, drives it to a PDF and returns the
// handle to the pool. The handle goes back healthy unless the failure marks
// the engine suspect. Every error is an *Error.
func (r *Renderer) Render(ctx context.Context, job Job) (*Result, error) {
	start := time.Now()

	if err := job.Validate(); err != nil {
		r.finish(job, nil, err, start)
		return nil, err
	}

	h, err := r.pool.Acquire(ctx)
	if err != nil {
		r.finish(job, nil, err, start)
		return nil, err
	}

	pdf, err := r.drive(ctx, h, job)
	r.pool.Release(h, Healthy(err))

	if err != nil {
		r.finish(job, h, err, start)
		return nil, err
	}

	res := &Result{
		PDF:      pdf,
		Filename: job.Filename(),
		HandleID: h.ID(),
		Duration: time.Since(start),
	}
	r.finish(job, h, nil, start)
	return res, nil
}

// drive runs the job's steps in order on h. Engine panics are caught by the
// handle; anything else that panics here becomes a render error so the slot
// is still freed.
func (r *Renderer) drive(ctx context.Context, h *Handle, job Job) (pdf []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pdf = nil
			err = newError(KindRender, "render", fmt.Errorf("engine panic: %v", rec))
		}
	}()

	switch job.Source {
	case SourceURL:
		wait := job.WaitUntil
		if wait == "" {
			wait = r.defaultWait
		}
		if err := h.Navigate(ctx, job.URL, wait); err != nil {
			return nil, err
		}
	case SourceContent:
		if err := h.SetContent(ctx, job.HTML); err != nil {
			return nil, err
		}
		if err := h.ApplyStylesheet(ctx, job.CSS); err != nil {
			return nil, err
		}
	}

	return h.RenderPDF(ctx, DefaultPDFParams(job.Orientation))
}

func (r *Renderer) finish(job Job, h *Handle, err error, start time.Time) {
	elapsed := time.Since(start)
	r.metrics.observeRender(job.Source, err, elapsed)

	attrs := []any{
		"source", job.Source.String(),
		"orientation", string(job.Orientation),
		"duration_ms", elapsed.Milliseconds(),
	}
	if h != nil {
		attrs = append(attrs, "handle", h.ID())
	}
	if job.Source == SourceURL {
		attrs = append(attrs, "url", job.URL)
	}

	if err == nil {
		r.log.Info("render completed", attrs...)
		return
	}
	attrs = append(attrs, "kind", KindOf(err).String(), "timeout", IsTimeout(err), "error", err)
	switch KindOf(err) {
	case KindValidation, KindNavigation, KindStyleInjection:
		r.log.Warn("render rejected", attrs...)
	default:
		r.log.Error("render failed", attrs...)
	}
}
