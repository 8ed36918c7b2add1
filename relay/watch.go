// Package relay implements the watch-style broadcast slot and the
// one-shot close event (spec §5, §9 "Design Notes"), and the Listener
// consumer built on top of them (spec §4.4).
package relay

import (
	"context"
	"sync"

	"github.com/kaicoh/dynamo-stream/stream"
)

// Watch is a single-value broadcast slot: receivers see only the latest
// published value, and every Send replaces it (spec §5 "Records
// broadcast"). aistore's own teacher pattern - this repo's teacher has no
// native watch channel either - is exactly the {mutex<T>, notification}
// shape spec §9 suggests when the runtime lacks one: a channel that gets
// closed and replaced on every Send, so waiters parked on the old channel
// all wake at once.
type Watch struct {
	mu        sync.Mutex
	val       stream.Records
	ch        chan struct{}
	closed    bool
	receivers int
	version   uint64 // bumped by every Send
}

func NewWatch() *Watch {
	return &Watch{ch: make(chan struct{})}
}

// Send publishes v as the new latest value and reports whether any
// receiver is currently subscribed. A StreamPoller with hasReceivers ==
// false after Send terminates its cycle loop with status CLOSED (spec
// §4.3 step 6).
func (w *Watch) Send(v stream.Records) (hasReceivers bool) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.val = v
	w.version++
	old := w.ch
	w.ch = make(chan struct{})
	hasReceivers = w.receivers > 0
	w.mu.Unlock()
	close(old)
	return hasReceivers
}

// Close marks the watch as no longer accepting values and wakes every
// waiter with ok == false (spec §4.4 "On the watch sender being dropped,
// log and exit"). Idempotent.
func (w *Watch) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	old := w.ch
	w.mu.Unlock()
	close(old)
}

// Subscribe registers a new receiver and returns a handle to it. Callers
// MUST call Receiver.Release when done (the Listener does so as part of
// its own teardown) so Watch.Send's receiver count stays accurate.
func (w *Watch) Subscribe() *Receiver {
	w.mu.Lock()
	w.receivers++
	seen := w.version
	w.mu.Unlock()
	return &Receiver{w: w, seen: seen}
}

// Receiver is one consumer's view of a Watch.
type Receiver struct {
	w        *Watch
	seen     uint64 // Watch version this receiver last returned (or subscribed at)
	released bool
}

// Wait returns the latest value and true as soon as a Send has happened
// that this receiver has not yet seen (including one made before Wait was
// called); otherwise it blocks for the next Send. It returns false once the
// Watch is closed or ctx is done.
func (r *Receiver) Wait(ctx context.Context) (stream.Records, bool) {
	w := r.w
	for {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return nil, false
		}
		if w.version != r.seen {
			r.seen = w.version
			v := w.val
			w.mu.Unlock()
			return v, true
		}
		ch := w.ch
		w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Release unsubscribes. Safe to call more than once.
func (r *Receiver) Release() {
	if r.released {
		return
	}
	r.released = true
	r.w.mu.Lock()
	r.w.receivers--
	r.w.mu.Unlock()
}
