package relay

import "sync"

// CloseEvent is a one-shot close signal shared between a task (StreamPoller
// or Listener) and the Half the Registry holds for it (spec §9 "Cyclic
// ownership (halves)"). The owner calls Close - explicitly, or as the
// finalizer run when its Half is torn down - exactly once; the task polls
// TryRecv once per loop iteration (spec §5 "Cancellation and timeout").
// Idempotent: a second Close is a no-op, matching "send is a terminal
// signal" (spec §5).
type CloseEvent struct {
	once sync.Once
	ch   chan struct{}
}

func NewCloseEvent() *CloseEvent {
	return &CloseEvent{ch: make(chan struct{})}
}

// Close delivers the terminal signal. Safe to call multiple times or
// concurrently; only the first call has any effect.
func (c *CloseEvent) Close() {
	c.once.Do(func() { close(c.ch) })
}

// Done returns a channel that is closed once Close has been called, for use
// in a select alongside other suspension points.
func (c *CloseEvent) Done() <-chan struct{} {
	return c.ch
}

// TryRecv reports whether Close has been called, without blocking - the
// non-blocking probe spec §4.3 step 7 and §4.4 step 3 call for once per
// loop iteration.
func (c *CloseEvent) TryRecv() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}
