package instance

import (
	"sync"
	"time"
)

// ExitStatus is the terminal result of an instance's init process,
// delivered exactly once per instance.
type ExitStatus struct {
	Code     uint32    `json:"exit_code"`
	ExitedAt time.Time `json:"exited_at"`
}

// ExitChannel is a broadcast-once cell: exactly one writer (the reaper)
// stores a terminal status, and every waiter, whether it registered before
// or after the write, observes the identical value. It is not a queue.
type ExitChannel struct {
	mu     sync.Mutex
	done   chan struct{}
	status ExitStatus
	set    bool
}

// NewExitChannel returns an empty channel.
func NewExitChannel() *ExitChannel {
	return &ExitChannel{done: make(chan struct{})}
}

// Set stores the terminal status and wakes every current and future waiter.
// Only the first call has any effect.
func (c *ExitChannel) Set(code uint32, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return
	}
	c.status = ExitStatus{Code: code, ExitedAt: at}
	c.set = true
	close(c.done)
}

// Wait blocks until a status exists, then returns it. After the single
// write it returns immediately.
func (c *ExitChannel) Wait() ExitStatus {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Done is closed once a status exists, for use in select loops.
func (c *ExitChannel) Done() <-chan struct{} {
	return c.done
}

// Result returns the status without blocking; ok is false while the
// instance is still running.
func (c *ExitChannel) Result() (ExitStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.set
}
