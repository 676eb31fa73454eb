// Package shutdown runs cleanup handlers in reverse registration order
// under a shared deadline.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds the whole shutdown when none is configured.
const DefaultTimeout = 30 * time.Second

// Handler is a named cleanup step.
type Handler struct {
	Name    string
	Cleanup func(ctx context.Context) error
}

// Manager handles graceful shutdown of services.
type Manager struct {
	log      *slog.Logger
	timeout  time.Duration
	mu       sync.Mutex
	handlers []Handler
	once     sync.Once
	err      error
}

// NewManager creates a shutdown manager.
func NewManager(log *slog.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{log: log, timeout: timeout}
}

// Register adds a cleanup handler.
func (m *Manager) Register(name string, cleanup func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, Handler{Name: name, Cleanup: cleanup})
	m.log.Debug("registered shutdown handler", "name", name)
}

// Shutdown runs handlers last-registered first, one at a time, so the
// HTTP server drains before the pool it renders with is closed. Later
// handlers still run when an earlier one fails. It runs once; further
// calls return the first result.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		m.mu.Lock()
		handlers := make([]Handler, len(m.handlers))
		copy(handlers, m.handlers)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		m.log.Info("starting graceful shutdown", "handlers", len(handlers), "timeout", m.timeout.String())

		var errs []error
		for i := len(handlers) - 1; i >= 0; i-- {
			h := handlers[i]
			start := time.Now()
			if err := h.Cleanup(ctx); err != nil {
				m.log.Error("shutdown handler failed",
					"name", h.Name,
					"error", err.Error(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				continue
			}
			m.log.Debug("shutdown handler completed",
				"name", h.Name,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}

		m.err = errors.Join(errs...)
		if ctx.Err() != nil {
			m.log.Warn("shutdown timeout exceeded")
		} else {
			m.log.Info("graceful shutdown completed")
		}
	})
	return m.err
}
