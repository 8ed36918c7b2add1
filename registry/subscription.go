package registry

import (
	"sync"

	"github.com/kaicoh/dynamo-stream/relay"
)

// Subscription owns one StreamPoller (via its watch and stream half) and a
// set of Listeners (via their close-event halves) for a single table (spec
// §3). The Registry is its unique owner; Subscriptions are never cloned.
type Subscription struct {
	Table string

	watch      *relay.Watch
	streamHalf *relay.CloseEvent

	mu             sync.Mutex
	destinations   map[string]*Destination
	listenerHalves map[string]*relay.CloseEvent
}

func newSubscription(table string, watch *relay.Watch, streamHalf *relay.CloseEvent) *Subscription {
	return &Subscription{
		Table:          table,
		watch:          watch,
		streamHalf:     streamHalf,
		destinations:   make(map[string]*Destination),
		listenerHalves: make(map[string]*relay.CloseEvent),
	}
}

// snapshot returns {id, url} for every live destination, in no particular
// order (spec §4.5 list()).
func (s *Subscription) snapshot() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.destinations))
	for id, d := range s.destinations {
		out = append(out, Snapshot{ID: id, URL: d.URL})
	}
	return out
}

// addDestination records a newly created destination/listener pair. The
// invariant destinations.keys() == listener_halves.keys() (spec §3) is
// maintained by always adding both under the same lock.
func (s *Subscription) addDestination(d *Destination, half *relay.CloseEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destinations[d.ID] = d
	s.listenerHalves[d.ID] = half
}

// removeDestination drops id if present and returns its close half so the
// caller can signal the Listener to stop, plus whether this Subscription now
// has no destinations left. Idempotent: a missing id returns (nil, false,
// false).
func (s *Subscription) removeDestination(id string) (half *relay.CloseEvent, removed bool, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	half, ok := s.listenerHalves[id]
	if !ok {
		return nil, false, false
	}
	delete(s.listenerHalves, id)
	delete(s.destinations, id)
	return half, true, len(s.destinations) == 0
}

// teardown signals every half this Subscription owns to close: the
// StreamPoller via streamHalf, and every Listener via its listenerHalves
// entry (spec §4.5 remove_sub).
func (s *Subscription) teardown() {
	s.streamHalf.Close()
	s.mu.Lock()
	halves := make([]*relay.CloseEvent, 0, len(s.listenerHalves))
	for _, h := range s.listenerHalves {
		halves = append(halves, h)
	}
	s.mu.Unlock()
	for _, h := range halves {
		h.Close()
	}
}
