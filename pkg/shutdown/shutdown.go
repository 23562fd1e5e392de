// Package shutdown coordinates graceful teardown of the shim's long-lived
// surfaces on SIGTERM/SIGINT.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Manager runs registered teardown functions in LIFO order once a shutdown
// signal arrives.
type Manager struct {
	mu      sync.Mutex
	funcs   []func(context.Context) error
	timeout time.Duration
}

// New creates a manager with the given per-shutdown timeout.
func New(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout}
}

// Register adds a teardown function. Functions run in reverse registration
// order.
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, fn)
}

// Wait blocks until SIGTERM or SIGINT, then runs every registered function
// and returns the first error encountered.
func (m *Manager) Wait() error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	<-sigs
	return m.Shutdown()
}

// Shutdown runs the registered functions immediately.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var first error
	for i := len(m.funcs) - 1; i >= 0; i-- {
		if err := m.funcs[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
