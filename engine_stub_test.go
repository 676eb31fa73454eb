package web2pdf

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubPDF is the smallest output Handle.RenderPDF accepts.
var stubPDF = []byte("%PDF-1.7\n%stub\n")

// stubEngine records calls and lets tests override each step.
type stubEngine struct {
	onStart      func(ctx context.Context) error
	onNavigate   func(ctx context.Context, url string, wait WaitCondition) error
	onSetContent func(ctx context.Context, html string) error
	onStyle      func(ctx context.Context, css string) error
	onRender     func(ctx context.Context, params PDFParams) ([]byte, error)
	onStop       func() error

	mu     sync.Mutex
	calls  []string
	wait   WaitCondition
	params PDFParams

	stops atomic.Int32
}

var _ Engine = (*stubEngine)(nil)

func (e *stubEngine) record(op string) {
	e.mu.Lock()
	e.calls = append(e.calls, op)
	e.mu.Unlock()
}

func (e *stubEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *stubEngine) Start(ctx context.Context) error {
	e.record("start")
	if e.onStart != nil {
		return e.onStart(ctx)
	}
	return nil
}

func (e *stubEngine) Navigate(ctx context.Context, url string, wait WaitCondition) error {
	e.record("navigate")
	e.mu.Lock()
	e.wait = wait
	e.mu.Unlock()
	if e.onNavigate != nil {
		return e.onNavigate(ctx, url, wait)
	}
	return nil
}

func (e *stubEngine) SetContent(ctx context.Context, html string) error {
	e.record("set_content")
	if e.onSetContent != nil {
		return e.onSetContent(ctx, html)
	}
	return nil
}

func (e *stubEngine) ApplyStylesheet(ctx context.Context, css string) error {
	e.record("apply_stylesheet")
	if e.onStyle != nil {
		return e.onStyle(ctx, css)
	}
	return nil
}

func (e *stubEngine) RenderPDF(ctx context.Context, params PDFParams) ([]byte, error) {
	e.record("render")
	e.mu.Lock()
	e.params = params
	e.mu.Unlock()
	if e.onRender != nil {
		return e.onRender(ctx, params)
	}
	return stubPDF, nil
}

func (e *stubEngine) Stop() error {
	e.stops.Add(1)
	if e.onStop != nil {
		return e.onStop()
	}
	return nil
}

func (e *stubEngine) lastWait() WaitCondition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wait
}

func (e *stubEngine) lastParams() PDFParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// stubFleet is an EngineFactory that remembers every engine it built.
// configure, if set, customizes the i-th engine (0-based).
type stubFleet struct {
	configure func(i int, e *stubEngine)

	mu      sync.Mutex
	engines []*stubEngine
}

func (f *stubFleet) factory() Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &stubEngine{}
	if f.configure != nil {
		f.configure(len(f.engines), e)
	}
	f.engines = append(f.engines, e)
	return e
}

func (f *stubFleet) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

func (f *stubFleet) engine(i int) *stubEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engines[i]
}

// newTestPool returns a pool over fleet with short timeouts, closed at cleanup.
func newTestPool(t *testing.T, fleet *stubFleet, opts ...PoolOption) *Pool {
	t.Helper()
	base := []PoolOption{
		WithCapacity(2),
		WithAcquireTimeout(time.Second),
		WithLaunchTimeout(time.Second),
		WithOperationTimeout(time.Second),
		WithStopTimeout(time.Second),
	}
	p := NewPool(fleet.factory, append(base, opts...)...)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
