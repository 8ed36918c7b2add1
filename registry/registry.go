package registry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/kaicoh/dynamo-stream/backend"
	"github.com/kaicoh/dynamo-stream/cmn/cos"
	"github.com/kaicoh/dynamo-stream/cmn/nlog"
	"github.com/kaicoh/dynamo-stream/poller"
	"github.com/kaicoh/dynamo-stream/relay"
	"github.com/kaicoh/dynamo-stream/stats"
)

// Registry holds the StreamBackend and the list of Subscriptions, one per
// subscribed table (spec §4.5). The registry is accessed under a single
// mutex, never held across a suspension point (spec §5): every method
// below takes the lock only long enough to read or mutate the subs map
// itself, handing off to Subscription's own lock (or to a background
// goroutine) for anything that blocks.
type Registry struct {
	backend  backend.StreamBackend
	client   *http.Client
	interval time.Duration
	metrics  *stats.Metrics

	mu   sync.Mutex
	subs map[string]*Subscription
}

// New builds an empty Registry over be. client is used by every Listener
// this registry creates; a nil client defaults to http.DefaultClient. metrics
// may be nil, in which case no Prometheus metrics are recorded.
func New(be backend.StreamBackend, client *http.Client, metrics *stats.Metrics) *Registry {
	if client == nil {
		client = http.DefaultClient
	}
	return &Registry{
		backend:  be,
		client:   client,
		interval: poller.DefaultInterval,
		metrics:  metrics,
		subs:     make(map[string]*Subscription),
	}
}

// AddListener registers url as a destination for table, creating the
// Subscription (and its StreamPoller) if this is the first destination for
// that table (spec §4.5 add_listener). When a new Subscription is created,
// the stream is resolved synchronously so an unresolvable table (spec §6:
// "POST / on an unresolvable table propagates backend NotConfigured as
// 500") surfaces as an error here rather than only as a silent poller exit
// observed much later.
func (r *Registry) AddListener(ctx context.Context, table, url string) (Snapshot, error) {
	r.mu.Lock()
	sub, ok := r.subs[table]
	r.mu.Unlock()

	if !ok {
		handle, err := r.backend.ResolveStream(ctx, table)
		if err != nil {
			return Snapshot{}, err
		}

		r.mu.Lock()
		sub, ok = r.subs[table]
		if !ok {
			sub = r.spawnSubscription(table, handle)
			r.subs[table] = sub
		}
		r.mu.Unlock()
	}

	id := cos.GenDestinationID(time.Now().UnixMilli())
	dest := &Destination{ID: id, URL: url}
	recv := sub.watch.Subscribe()
	half := relay.NewCloseEvent()

	listener := relay.NewListener(id, url, recv, half, r.client)
	listener.Table = table
	listener.Metrics = r.metrics
	listener.OnDeliveryError = dest.setLastError

	sub.addDestination(dest, half)
	go listener.Run(context.Background())

	if r.metrics != nil {
		r.metrics.ActiveListeners.WithLabelValues(table).Inc()
	}

	nlog.Infof("registry: added listener %s -> %s for table %s", id, url, table)
	return Snapshot{ID: id, URL: url}, nil
}

// RemoveListener drops one destination. Idempotent: removing an unknown
// table or id is not an error (spec §4.5 remove_listener). When this was the
// Subscription's last destination, the Subscription is torn down the same
// way RemoveSub does it (spec §3: a Subscription is "destroyed... implicitly
// when all halves drop"), so a later AddListener for the same table spawns a
// fresh StreamPoller instead of attaching to an already-dead watch.
func (r *Registry) RemoveListener(table, id string) {
	r.mu.Lock()
	sub, ok := r.subs[table]
	r.mu.Unlock()
	if !ok {
		return
	}

	half, removed, empty := sub.removeDestination(id)
	if !removed {
		return
	}

	half.Close()
	if r.metrics != nil {
		r.metrics.ActiveListeners.WithLabelValues(table).Dec()
	}
	nlog.Infof("registry: removed listener %s for table %s", id, table)

	if empty {
		r.mu.Lock()
		if cur, ok := r.subs[table]; ok && cur == sub {
			delete(r.subs, table)
		}
		r.mu.Unlock()
		sub.teardown()
		nlog.Infof("registry: table %s has no remaining destinations, subscription torn down", table)
	}
}

// RemoveSub drops every destination for table and tears down its
// StreamPoller. Idempotent (spec §4.5 remove_sub).
func (r *Registry) RemoveSub(table string) {
	r.mu.Lock()
	sub, ok := r.subs[table]
	if ok {
		delete(r.subs, table)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	sub.teardown()
	nlog.Infof("registry: removed subscription for table %s", table)
}

// List returns a snapshot of every table's destinations (spec §4.5 list(),
// §6 GET /).
func (r *Registry) List() map[string][]Snapshot {
	r.mu.Lock()
	subs := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	out := make(map[string][]Snapshot, len(subs))
	for _, s := range subs {
		out[s.Table] = s.snapshot()
	}
	return out
}

// spawnSubscription builds the Subscription and its StreamPoller. handle is
// the stream already resolved by the caller, so the poller's own init skips
// a redundant ResolveStream call.
func (r *Registry) spawnSubscription(table string, handle backend.StreamHandle) *Subscription {
	watch := relay.NewWatch()
	streamHalf := relay.NewCloseEvent()
	sub := newSubscription(table, watch, streamHalf)

	p := poller.New(table, r.backend, watch, streamHalf)
	p.Interval = r.interval
	p.Metrics = r.metrics
	p.Handle = &handle
	go p.Run(context.Background())

	return sub
}
