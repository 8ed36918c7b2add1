// Package cos provides common low-level types and utilities shared across
// the relay: sentinel errors, an error aggregator for fan-out failures, and
// ID generation.
package cos

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotConfigured is returned by StreamBackend.ResolveStream when the
	// requested table has no associated change stream.
	ErrNotConfigured = errors.New("table has no associated stream")

	// ErrShardClosed marks a shard whose iterator could not be minted
	// because the shard is already closed or trimmed. Backends do not
	// return it (MintIterator reports such a shard as a nil iterator); the
	// poller logs it when that happens.
	ErrShardClosed = errors.New("shard closed or trimmed")
)

// Errs aggregates errors from concurrent fan-out work (parallel iterator
// minting in the poller) without halting the caller. Safe for concurrent
// use.
type Errs struct {
	mu   sync.Mutex
	errs []error
}

func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
}

func (e *Errs) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return ""
	}
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	return fmt.Sprintf("%d errors, first: %v", len(e.errs), e.errs[0])
}

// Err returns nil if no error was ever added, else the aggregate.
func (e *Errs) Err() error {
	if e.Len() == 0 {
		return nil
	}
	return e
}
