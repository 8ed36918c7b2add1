// Package stream implements the shard/lineage data model and the
// concurrent, parent-first tree walk that reads records off a table's
// change stream (spec §3, §4.2).
package stream

// Shard is one unit of a change stream. A Shard with an empty Iterator after an
// explicit mint attempt is closed and must never be polled again by the
// poller that owns it (spec §3 invariant).
type Shard struct {
	ID       string
	ParentID string // empty means "no parent in the current set"
	Iterator string // empty means "not yet minted, or closed"
}

// HasParent reports whether ParentID names a shard (as opposed to being the
// root-of-stream sentinel).
func (s *Shard) HasParent() bool { return s.ParentID != "" }

// Closed reports whether this shard has no iterator to poll.
func (s *Shard) Closed() bool { return s.Iterator == "" }

// Clone returns a shallow copy, used when a shard is about to be mutated by
// one fan-out task while the original is still referenced elsewhere (a
// single cycle never mutates a Shard in place - see StreamPoller).
func (s *Shard) Clone() *Shard {
	c := *s
	return &c
}
