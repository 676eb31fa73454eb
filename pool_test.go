package web2pdf

import (
	"context"
	"errors"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ---------------------------------------------------------------------------
// TestNewPool - Construction
// ---------------------------------------------------------------------------

func TestNewPool_PanicsOnNilFactory(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil factory")
		}
	}()
	NewPool(nil)
}

func TestNewPool_PanicsOnNonPositiveTimeout(t *testing.T) {
	t.Parallel()

	opts := map[string]PoolOption{
		"acquire": WithAcquireTimeout(0),
		"launch":  WithLaunchTimeout(-time.Second),
		"op":      WithOperationTimeout(0),
		"stop":    WithStopTimeout(0),
	}
	for name, opt := range opts {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for %s timeout", name)
				}
			}()
			NewPool((&stubFleet{}).factory, opt)
		})
	}
}

func TestNewPool_LazyStart(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := newTestPool(t, fleet, WithCapacity(3))

	if fleet.count() != 0 {
		t.Errorf("engines built before first Acquire: %d", fleet.count())
	}
	if got := p.Stats(); got != (PoolStats{Capacity: 3}) {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestNewPool_DefaultCapacity(t *testing.T) {
	t.Parallel()

	p := NewPool((&stubFleet{}).factory)
	defer func() { _ = p.Close() }()

	if p.Capacity() != ResolvePoolSize(0) {
		t.Errorf("Capacity() = %d, want %d", p.Capacity(), ResolvePoolSize(0))
	}
}

// ---------------------------------------------------------------------------
// TestPool_Release - Reuse and discard
// ---------------------------------------------------------------------------

func TestPool_ReusesHealthyHandle(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := newTestPool(t, fleet)
	ctx := context.Background()

	h1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if h1.State() != StateBusy {
		t.Errorf("leased state = %s, want busy", h1.State())
	}
	p.Release(h1, true)
	if h1.State() != StateReady {
		t.Errorf("released state = %s, want ready", h1.State())
	}

	h2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer p.Release(h2, true)

	if h2.ID() != h1.ID() {
		t.Errorf("got handle %s, want reused %s", h2.ID(), h1.ID())
	}
	if fleet.count() != 1 {
		t.Errorf("engines built = %d, want 1", fleet.count())
	}
}

func TestPool_DiscardsUnhealthyHandle(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := newTestPool(t, fleet)
	ctx := context.Background()

	h1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(h1, false)

	eventually(t, func() bool { return fleet.engine(0).stops.Load() == 1 }, "discarded engine stopped")

	h2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release(h2, true)

	if h2.ID() == h1.ID() {
		t.Fatal("discarded handle was handed out again")
	}
	s := p.Stats()
	if s.Discarded != 1 || s.Started != 2 {
		t.Errorf("Stats() = %+v, want 1 discarded and 2 started", s)
	}
}

func TestPool_DeadHandleNotReturned(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := newTestPool(t, fleet)

	h, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h.setState(StateDead)
	// Healthy flag alone is not enough for a dead handle.
	p.Release(h, true)

	if s := p.Stats(); s.Available != 0 || s.Discarded != 1 {
		t.Errorf("Stats() = %+v, want dead handle discarded", s)
	}
}

func TestPool_DoubleReleaseIgnored(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := newTestPool(t, fleet, WithCapacity(1), WithAcquireTimeout(50*time.Millisecond))
	ctx := context.Background()

	h, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(h, true)
	p.Release(h, false)
	p.Release(nil, true)

	if s := p.Stats(); s.InUse != 0 || s.Available != 1 || s.Discarded != 0 {
		t.Fatalf("Stats() = %+v", s)
	}

	// The slot was released once: capacity 1 still admits exactly one lease.
	h1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release(h1, true)
	if _, err := p.Acquire(ctx); !errors.Is(err, ErrServiceBusy) {
		t.Errorf("second Acquire() error = %v, want ErrServiceBusy", err)
	}
}

// ---------------------------------------------------------------------------
// TestPool_Acquire - Capacity and failures
// ---------------------------------------------------------------------------

func TestPool_AcquireTimeoutIsServiceBusy(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := newTestPool(t, fleet, WithCapacity(1), WithAcquireTimeout(50*time.Millisecond))
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release(held, true)

	start := time.Now()
	_, err = p.Acquire(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Acquire waited %s", elapsed)
	}

	if KindOf(err) != KindServiceBusy {
		t.Errorf("kind = %s, want service_busy", KindOf(err))
	}
	if !errors.Is(err, ErrPoolTimeout) || !errors.Is(err, ErrServiceBusy) {
		t.Errorf("error = %v, want ErrPoolTimeout/ErrServiceBusy", err)
	}
	if !IsTimeout(err) {
		t.Error("busy timeout should report IsTimeout")
	}
	if fleet.count() != 1 {
		t.Errorf("engines built = %d, want 1", fleet.count())
	}
}

func TestPool_AcquireCallerCancelIsNotTimeout(t *testing.T) {
	t.Parallel()

	p := newTestPool(t, &stubFleet{}, WithCapacity(1), WithAcquireTimeout(time.Minute))

	held, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release(held, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Acquire(ctx)
	if KindOf(err) != KindServiceBusy {
		t.Errorf("kind = %s, want service_busy", KindOf(err))
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if IsTimeout(err) {
		t.Errorf("cancelled Acquire reported as timeout: %v", err)
	}
}

func TestPool_WaiterGetsReleasedHandle(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := newTestPool(t, fleet, WithCapacity(1))
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan *Handle, 1)
	go func() {
		h, err := p.Acquire(ctx)
		if err != nil {
			t.Errorf("waiting Acquire() error = %v", err)
		}
		got <- h
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(held, true)

	h := <-got
	if h == nil {
		return
	}
	defer p.Release(h, true)
	if h.ID() != held.ID() {
		t.Errorf("waiter got %s, want %s", h.ID(), held.ID())
	}
}

func TestPool_LaunchFailureFreesSlot(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{configure: func(i int, e *stubEngine) {
		if i == 0 {
			e.onStart = func(context.Context) error { return errors.New("no browser") }
		}
	}}
	p := newTestPool(t, fleet, WithCapacity(1), WithAcquireTimeout(100*time.Millisecond))
	ctx := context.Background()

	_, err := p.Acquire(ctx)
	if !errors.Is(err, ErrEngineLaunch) {
		t.Fatalf("error = %v, want ErrEngineLaunch", err)
	}
	if s := p.Stats(); s.InUse != 0 || s.Started != 0 {
		t.Errorf("Stats() = %+v after failed launch", s)
	}

	h, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() after failed launch error = %v", err)
	}
	p.Release(h, true)
}

func TestPool_CloseWaitsForFailedLaunchTeardown(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	fleet := &stubFleet{configure: func(i int, e *stubEngine) {
		e.onStart = func(context.Context) error { return errors.New("no browser") }
		e.onStop = func() error {
			<-release
			return nil
		}
	}}
	p := newTestPool(t, fleet, WithCapacity(1))

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrEngineLaunch) {
		t.Fatalf("error = %v, want ErrEngineLaunch", err)
	}

	closed := make(chan struct{})
	go func() {
		_ = p.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close() returned before the failed engine was stopped")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return after teardown finished")
	}
	if n := fleet.engine(0).stops.Load(); n != 1 {
		t.Errorf("engine stops = %d, want 1", n)
	}
}

func TestPool_LaunchTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	fleet := &stubFleet{configure: func(_ int, e *stubEngine) {
		e.onStart = func(context.Context) error { <-block; return nil }
	}}
	p := newTestPool(t, fleet, WithLaunchTimeout(50*time.Millisecond))

	_, err := p.Acquire(context.Background())
	if KindOf(err) != KindEngineLaunch || !IsTimeout(err) {
		t.Errorf("error = %v, want engine launch timeout", err)
	}
}

func TestPool_ConcurrentLeasesNeverExceedCapacity(t *testing.T) {
	t.Parallel()

	const (
		capacity = 3
		workers  = 24
		rounds   = 20
	)

	fleet := &stubFleet{}
	p := newTestPool(t, fleet, WithCapacity(capacity), WithAcquireTimeout(5*time.Second))

	var (
		current   atomic.Int32
		peak      atomic.Int32
		discarded sync.Map
		wg        sync.WaitGroup
	)

	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(w), 7))
			for range rounds {
				h, err := p.Acquire(context.Background())
				if err != nil {
					t.Errorf("Acquire() error = %v", err)
					return
				}
				if _, dead := discarded.Load(h.ID()); dead {
					t.Errorf("discarded handle %s handed out again", h.ID())
				}

				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				runtime.Gosched()
				current.Add(-1)

				healthy := rng.IntN(4) != 0
				if !healthy {
					discarded.Store(h.ID(), true)
				}
				p.Release(h, healthy)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > capacity {
		t.Errorf("peak concurrent leases = %d, capacity %d", got, capacity)
	}
	s := p.Stats()
	if s.InUse != 0 {
		t.Errorf("InUse = %d after all releases", s.InUse)
	}
	if s.Available > capacity {
		t.Errorf("Available = %d exceeds capacity", s.Available)
	}
	if s.Started-s.Discarded != s.Available {
		t.Errorf("live handles = %d, available = %d", s.Started-s.Discarded, s.Available)
	}
}

// ---------------------------------------------------------------------------
// TestPool_Close - Shutdown
// ---------------------------------------------------------------------------

func TestPool_Close(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := NewPool(fleet.factory, WithCapacity(2))
	ctx := context.Background()

	idle, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	leased, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(idle, true)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fleet.engine(0).stops.Load() != 1 {
		t.Error("idle engine not stopped by Close")
	}

	_, err = p.Acquire(ctx)
	if !errors.Is(err, ErrPoolClosed) || KindOf(err) != KindServiceBusy {
		t.Errorf("Acquire() after Close = %v, want ErrPoolClosed", err)
	}

	// A lease outstanding at Close is stopped on release, healthy or not.
	p.Release(leased, true)
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if fleet.engine(1).stops.Load() != 1 {
		t.Error("leased engine not stopped after release")
	}
}

// ---------------------------------------------------------------------------
// TestPool_Warm - Pre-starting engines
// ---------------------------------------------------------------------------

func TestPool_Warm(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{}
	p := newTestPool(t, fleet, WithCapacity(2))

	if err := p.Warm(context.Background(), 5); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	s := p.Stats()
	if s.Started != 2 || s.Available != 2 || s.InUse != 0 {
		t.Errorf("Stats() = %+v, want 2 started and available", s)
	}
}

func TestPool_WarmFailure(t *testing.T) {
	t.Parallel()

	fleet := &stubFleet{configure: func(_ int, e *stubEngine) {
		e.onStart = func(context.Context) error { return errors.New("no browser") }
	}}
	p := newTestPool(t, fleet, WithCapacity(2))

	err := p.Warm(context.Background(), 2)
	if !errors.Is(err, ErrEngineLaunch) {
		t.Errorf("Warm() error = %v, want ErrEngineLaunch", err)
	}
	if s := p.Stats(); s.InUse != 0 {
		t.Errorf("InUse = %d after failed warm", s.InUse)
	}
}

// ---------------------------------------------------------------------------
// TestPool_Metrics - Gauges and counters
// ---------------------------------------------------------------------------

func TestPool_Metrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())
	fleet := &stubFleet{}
	p := newTestPool(t, fleet, WithCapacity(2), WithPoolMetrics(m))

	if got := testutil.ToFloat64(m.poolHandles.WithLabelValues("capacity")); got != 2 {
		t.Errorf("capacity gauge = %v, want 2", got)
	}

	h, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(m.poolHandles.WithLabelValues("in_use")); got != 1 {
		t.Errorf("in_use gauge = %v, want 1", got)
	}
	p.Release(h, false)

	if got := testutil.ToFloat64(m.handlesStarted); got != 1 {
		t.Errorf("started = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.handlesDiscarded); got != 1 {
		t.Errorf("discarded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.poolHandles.WithLabelValues("in_use")); got != 0 {
		t.Errorf("in_use gauge = %v, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// TestResolvePoolSize - Capacity resolution
// ---------------------------------------------------------------------------

func TestResolvePoolSize(t *testing.T) {
	t.Parallel()

	if got := ResolvePoolSize(5); got != 5 {
		t.Errorf("ResolvePoolSize(5) = %d, want 5", got)
	}

	got := ResolvePoolSize(0)
	if got < MinPoolSize || got > MaxPoolSize {
		t.Errorf("ResolvePoolSize(0) = %d, want within [%d, %d]", got, MinPoolSize, MaxPoolSize)
	}
}
