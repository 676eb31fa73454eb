package web2pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one engine is available.
	MinPoolSize = 1

	// MaxPoolSize caps engine instances to limit memory (~200MB per browser).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// DefaultAcquireTimeout bounds how long Acquire waits for capacity.
const DefaultAcquireTimeout = 15 * time.Second

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithCapacity sets the maximum number of live handles. Values below 1 use
// ResolvePoolSize(0).
func WithCapacity(n int) PoolOption {
	return func(p *Pool) {
		p.capacity = n
	}
}

// WithAcquireTimeout bounds how long Acquire waits for a free slot.
func WithAcquireTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d <= 0 {
			panic("web2pdf: acquire timeout must be positive")
		}
		p.acquireTimeout = d
	}
}

// WithLaunchTimeout bounds engine start.
func WithLaunchTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d <= 0 {
			panic("web2pdf: launch timeout must be positive")
		}
		p.launchTimeout = d
	}
}

// WithOperationTimeout bounds each navigate, style and render step.
func WithOperationTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d <= 0 {
			panic("web2pdf: operation timeout must be positive")
		}
		p.opTimeout = d
	}
}

// WithStopTimeout bounds engine teardown.
func WithStopTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d <= 0 {
			panic("web2pdf: stop timeout must be positive")
		}
		p.stopTimeout = d
	}
}

// WithPoolLogger sets the logger for handle lifecycle events.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// WithPoolMetrics reports pool activity to m.
func WithPoolMetrics(m *Metrics) PoolOption {
	return func(p *Pool) {
		p.metrics = m
	}
}

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	Capacity  int `json:"capacity"`
	InUse     int `json:"in_use"`
	Available int `json:"available"`
	Started   int `json:"started"`
	Discarded int `json:"discarded"`
}

// Pool bounds the number of live engine handles and hands them out one
// job at a time. Handles are started lazily on Acquire; a handle released
// as unhealthy is stopped and never handed out again.
//
// A Pool is safe for concurrent use. One Pool is shared by every caller in
// a process.
type Pool struct {
	factory EngineFactory
	log     *slog.Logger
	metrics *Metrics

	capacity       int
	acquireTimeout time.Duration
	launchTimeout  time.Duration
	opTimeout      time.Duration
	stopTimeout    time.Duration

	sem *semaphore.Weighted

	mu        sync.Mutex
	available []*Handle // LIFO: the most recently used engine is warmest
	inUse     int
	started   int
	discarded int
	closed    bool

	stopping sync.WaitGroup
}

// NewPool creates a pool that builds engines with factory. No engine is
// started until the first Acquire or Warm.
func NewPool(factory EngineFactory, opts ...PoolOption) *Pool {
	if factory == nil {
		panic("web2pdf: nil engine factory")
	}

	p := &Pool{
		factory:        factory,
		log:            slog.New(slog.DiscardHandler),
		acquireTimeout: DefaultAcquireTimeout,
		launchTimeout:  DefaultLaunchTimeout,
		opTimeout:      DefaultOperationTimeout,
		stopTimeout:    DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.capacity < 1 {
		p.capacity = ResolvePoolSize(0)
	}
	p.sem = semaphore.NewWeighted(int64(p.capacity))
	p.available = make([]*Handle, 0, p.capacity)
	p.metrics.setCapacity(p.capacity)
	return p
}

// Acquire returns a ready handle for exclusive use, starting a new engine
// if no idle one exists. It waits at most the acquire timeout for a slot;
// on expiry it fails with KindServiceBusy.
//
// Every successful Acquire must be paired with exactly one Release.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		waited := time.Since(start)
		p.metrics.observeAcquire(waited)
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: waited %s: %w", ErrTimeout, waited.Round(time.Millisecond), err)
		} else {
			err = fmt.Errorf("waited %s: %w", waited.Round(time.Millisecond), err)
		}
		return nil, newError(KindServiceBusy, "acquire", err)
	}
	p.metrics.observeAcquire(time.Since(start))

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return nil, newError(KindServiceBusy, "acquire", ErrPoolClosed)
	}
	if n := len(p.available); n > 0 {
		h := p.available[n-1]
		p.available[n-1] = nil
		p.available = p.available[:n-1]
		p.inUse++
		p.mu.Unlock()
		p.lease(h)
		return h, nil
	}
	p.inUse++
	p.mu.Unlock()

	// Start outside the lock: launching a browser takes seconds.
	h := newHandle(uuid.NewString(), p.factory(), p.log, p.launchTimeout, p.opTimeout, p.stopTimeout)
	if err := h.start(ctx); err != nil {
		p.mu.Lock()
		p.inUse--
		p.stopping.Add(1)
		p.mu.Unlock()
		// Partially launched processes still need reaping.
		go func() {
			defer p.stopping.Done()
			h.Stop()
		}()
		p.sem.Release(1)
		p.log.Error("engine launch failed", "handle", h.id, "error", err)
		p.report()
		return nil, err
	}

	p.mu.Lock()
	p.started++
	p.mu.Unlock()
	p.metrics.handleStarted()
	p.log.Info("engine started", "handle", h.id)
	p.lease(h)
	return h, nil
}

func (p *Pool) lease(h *Handle) {
	h.setState(StateBusy)
	h.leased.Store(true)
	p.report()
}

// Release returns h to the pool. A healthy handle becomes available again;
// an unhealthy one is stopped in the background and its slot freed. A
// second Release of the same lease is ignored.
func (p *Pool) Release(h *Handle, healthy bool) {
	if h == nil || !h.leased.CompareAndSwap(true, false) {
		return
	}

	p.mu.Lock()
	p.inUse--
	keep := healthy && !p.closed && h.State() != StateDead
	if keep {
		h.setState(StateReady)
		p.available = append(p.available, h)
	} else {
		p.discarded++
		p.stopping.Add(1)
	}
	p.mu.Unlock()

	if !keep {
		p.metrics.handleDiscarded()
		p.log.Warn("engine discarded", "handle", h.id, "healthy", healthy, "state", h.State().String())
		go func() {
			defer p.stopping.Done()
			h.Stop()
		}()
	}

	p.sem.Release(1)
	p.report()
}

// Warm starts up to n engines ahead of traffic. n is clamped to capacity.
func (p *Pool) Warm(ctx context.Context, n int) error {
	n = min(n, p.capacity)
	if n <= 0 {
		return nil
	}

	handles := make([]*Handle, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			h, err := p.Acquire(gctx)
			if err != nil {
				return err
			}
			handles[i] = h
			return nil
		})
	}
	err := g.Wait()

	for _, h := range handles {
		if h != nil {
			p.Release(h, true)
		}
	}
	return err
}

// Close stops every idle handle and refuses further Acquire calls.
// Leased handles are stopped when released. Close waits for all pending
// teardowns and is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.stopping.Wait()
		return nil
	}
	p.closed = true
	idle := p.available
	p.available = nil
	p.stopping.Add(len(idle))
	p.mu.Unlock()

	for _, h := range idle {
		go func() {
			defer p.stopping.Done()
			h.Stop()
		}()
	}
	p.stopping.Wait()
	p.log.Info("render pool closed", "stopped", len(idle))
	p.report()
	return nil
}

// Stats returns current pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Capacity:  p.capacity,
		InUse:     p.inUse,
		Available: len(p.available),
		Started:   p.started,
		Discarded: p.discarded,
	}
}

// Capacity returns the maximum number of live handles.
func (p *Pool) Capacity() int {
	return p.capacity
}

func (p *Pool) report() {
	if p.metrics == nil {
		return
	}
	s := p.Stats()
	p.metrics.setPool(s.InUse, s.Available)
}

// ResolvePoolSize determines the pool capacity.
// Priority: explicit size > GOMAXPROCS-based calculation.
func ResolvePoolSize(size int) int {
	if size > 0 {
		return size
	}

	// GOMAXPROCS is container-aware once automaxprocs has run.
	n := runtime.GOMAXPROCS(0) / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
