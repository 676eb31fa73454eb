package web2pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Handle.
type State int32

// Handle states.
const (
	StateIdle State = iota
	StateStarting
	StateReady
	StateBusy
	StateStopping
	StateDead
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateStopping:
		return "stopping"
	case StateDead:
		return "dead"
	}
	return "unknown"
}

// Default engine timeouts.
const (
	DefaultLaunchTimeout    = 10 * time.Second
	DefaultOperationTimeout = 30 * time.Second
	DefaultStopTimeout      = 5 * time.Second
)

// pdfMagic starts every PDF document.
var pdfMagic = []byte("%PDF-")

var errEnginePanic = errors.New("engine panic")

// Handle is a pool-owned wrapper around one Engine. Between Acquire and
// Release it belongs to exactly one job, so it needs no lock; only its
// state is read from other goroutines.
type Handle struct {
	id     string
	engine Engine
	log    *slog.Logger

	launchTimeout time.Duration
	opTimeout     time.Duration
	stopTimeout   time.Duration

	state    atomic.Int32
	leased   atomic.Bool
	stopOnce sync.Once
}

func newHandle(id string, engine Engine, log *slog.Logger, launch, op, stop time.Duration) *Handle {
	return &Handle{
		id:            id,
		engine:        engine,
		log:           log.With("handle", id),
		launchTimeout: launch,
		opTimeout:     op,
		stopTimeout:   stop,
	}
}

// ID returns the opaque handle identifier.
func (h *Handle) ID() string {
	return h.id
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) setState(s State) {
	h.state.Store(int32(s))
}

// start launches the engine: IDLE -> STARTING -> READY, or DEAD on failure.
// A failed start may leave processes behind; the caller must Stop the handle.
func (h *Handle) start(ctx context.Context) error {
	h.setState(StateStarting)
	err := h.call(ctx, h.launchTimeout, h.engine.Start)
	if err != nil {
		h.setState(StateDead)
		return newError(KindEngineLaunch, "start", err)
	}
	h.setState(StateReady)
	return nil
}

// Navigate loads url and waits until the page satisfies wait.
func (h *Handle) Navigate(ctx context.Context, url string, wait WaitCondition) error {
	if h.State() == StateDead {
		return newError(KindNavigation, "navigate", ErrHandleDead)
	}
	err := h.call(ctx, h.opTimeout, func(ctx context.Context) error {
		return h.engine.Navigate(ctx, url, wait)
	})
	return asError(newError(KindNavigation, "navigate", err))
}

// SetContent replaces the page with literal HTML.
func (h *Handle) SetContent(ctx context.Context, html string) error {
	if h.State() == StateDead {
		return newError(KindNavigation, "set_content", ErrHandleDead)
	}
	err := h.call(ctx, h.opTimeout, func(ctx context.Context) error {
		return h.engine.SetContent(ctx, html)
	})
	return asError(newError(KindNavigation, "set_content", err))
}

// ApplyStylesheet injects css into the loaded page. Empty css is a no-op
// and never reaches the engine.
func (h *Handle) ApplyStylesheet(ctx context.Context, css string) error {
	if css == "" {
		return nil
	}
	if h.State() == StateDead {
		return newError(KindStyleInjection, "apply_stylesheet", ErrHandleDead)
	}
	err := h.call(ctx, h.opTimeout, func(ctx context.Context) error {
		return h.engine.ApplyStylesheet(ctx, css)
	})
	return asError(newError(KindStyleInjection, "apply_stylesheet", err))
}

// RenderPDF prints the current page. Output that is not a PDF document is
// a render failure.
func (h *Handle) RenderPDF(ctx context.Context, params PDFParams) ([]byte, error) {
	if h.State() == StateDead {
		return nil, newError(KindRender, "render", ErrHandleDead)
	}

	var pdf []byte
	err := h.call(ctx, h.opTimeout, func(ctx context.Context) error {
		out, err := h.engine.RenderPDF(ctx, params)
		if err != nil {
			return err
		}
		pdf = out
		return nil
	})
	if err != nil {
		return nil, newError(KindRender, "render", err)
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return nil, newError(KindRender, "render", fmt.Errorf("%w: %d bytes", ErrNotPDF, len(pdf)))
	}
	return pdf, nil
}

// Stop releases the engine. It is idempotent, bounded by the stop timeout,
// and never fails: teardown errors are logged.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.setState(StateStopping)
		defer h.setState(StateDead)

		done := make(chan error, 1)
		go func() { done <- h.engine.Stop() }()

		timer := time.NewTimer(h.stopTimeout)
		defer timer.Stop()

		select {
		case err := <-done:
			if err != nil {
				h.log.Warn("engine stop failed", "error", err)
				return
			}
			h.log.Debug("engine stopped")
		case <-timer.C:
			h.log.Warn("engine stop timed out", "timeout", h.stopTimeout)
		}
	})
}

// call runs fn under its own deadline. If fn does not return in time the
// handle is marked dead and the caller gets the context error right away;
// the stray call is left to finish against a stopped engine. A panicking
// engine also kills the handle.
func (h *Handle) call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				h.setState(StateDead)
				done <- fmt.Errorf("%w: %v", errEnginePanic, rec)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		h.setState(StateDead)
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
		}
		return err
	}
}

// asError keeps a nil *Error from becoming a non-nil error interface.
func asError(e *Error) error {
	if e == nil {
		return nil
	}
	return e
}
