// Package poller implements StreamPoller, the per-table long-running task
// that discovers shard topology, merges shard records, and publishes them
// to a watch-style broadcast (spec §4.3).
package poller

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kaicoh/dynamo-stream/backend"
	"github.com/kaicoh/dynamo-stream/cmn/cos"
	"github.com/kaicoh/dynamo-stream/cmn/nlog"
	"github.com/kaicoh/dynamo-stream/relay"
	"github.com/kaicoh/dynamo-stream/stats"
	"github.com/kaicoh/dynamo-stream/stream"
)

// DefaultInterval is the per-cycle sleep (spec §4.3: "every interval
// seconds, default 3").
const DefaultInterval = 3 * time.Second

// StreamPoller is the per-table task described in spec §4.3. It owns no
// shared mutable state: its shard set lives entirely on its own goroutine's
// stack between cycles.
type StreamPoller struct {
	Table    string
	Backend  backend.StreamBackend
	Watch    *relay.Watch
	Interval time.Duration

	// MaxConcurrentFetches bounds both the tree-walk fan-out and the
	// parallel iterator-minting fan-out (SPEC_FULL.md Open Questions).
	MaxConcurrentFetches int

	// Metrics is optional; when set, per-cycle shard and duration counters
	// are recorded against it under the Table label.
	Metrics *stats.Metrics

	// Handle, when set before Run is called, is used as-is instead of
	// calling Backend.ResolveStream during init - the caller (Registry)
	// already resolved it synchronously to surface a NotConfigured error
	// to its own caller (spec §6).
	Handle *backend.StreamHandle

	close *relay.CloseEvent

	handle backend.StreamHandle
	shards []*stream.Shard
}

// New builds a StreamPoller for table, publishing to watch. close is the
// receiving end of the one-shot event the owning Subscription's StreamHalf
// signals on teardown (spec §4.5).
func New(table string, be backend.StreamBackend, watch *relay.Watch, close *relay.CloseEvent) *StreamPoller {
	return &StreamPoller{
		Table:                table,
		Backend:              be,
		Watch:                watch,
		Interval:             DefaultInterval,
		MaxConcurrentFetches: stream.DefaultMaxConcurrentFetches,
		close:                close,
	}
}

// Run blocks until the poller reaches a terminal condition: initialization
// failure, loss of all watch receivers, or an explicit close event (spec
// §4.3 lifecycle {init -> loop -> terminal}).
func (p *StreamPoller) Run(ctx context.Context) {
	if err := p.init(ctx); err != nil {
		nlog.Errorf("poller: %s: initialization failed: %v", p.Table, err)
		// "reports to its close-event sender and exits" (spec §4.3): no
		// one is subscribed yet in the common case, but closing the watch
		// means any listener that raced the subscribe sees a clean end
		// rather than hanging forever.
		p.Watch.Close()
		return
	}
	nlog.Infof("poller: %s: initialized with %d shard(s)", p.Table, len(p.shards))

	for {
		if p.close.TryRecv() {
			nlog.Infof("poller: %s: close event received, exiting", p.Table)
			return
		}
		if !p.cycle(ctx) {
			return
		}
		select {
		case <-time.After(p.Interval):
		case <-p.close.Done():
			nlog.Infof("poller: %s: close event received, exiting", p.Table)
			return
		case <-ctx.Done():
			return
		}
	}
}

// init resolves the stream and mints iterators for every currently listed
// shard, keeping only those whose mint succeeded with a live iterator
// (spec §4.3 Initialization).
func (p *StreamPoller) init(ctx context.Context) error {
	if p.Handle != nil {
		p.handle = *p.Handle
	} else {
		handle, err := p.Backend.ResolveStream(ctx, p.Table)
		if err != nil {
			return err
		}
		p.handle = handle
	}

	metas, err := listAllShards(ctx, p.Backend, p.handle)
	if err != nil {
		return err
	}
	p.shards = mintShards(ctx, p.Backend, p.handle, metas, p.maxConcurrent())
	return nil
}

// cycle runs one iteration of spec §4.3's numbered steps. It returns false
// when the poller should terminate (no watch receivers).
func (p *StreamPoller) cycle(ctx context.Context) bool {
	start := time.Now()

	forest := stream.NewLineageForest(p.shards)
	records, shardsAfter := forest.Collect(ctx, p.Backend, p.maxConcurrent())

	newShards := p.refreshTopology(ctx, shardsAfter)
	p.shards = append(shardsAfter, newShards...)

	records.Sort()

	if p.Metrics != nil {
		p.Metrics.ShardsPolled.WithLabelValues(p.Table).Add(float64(len(shardsAfter)))
		p.Metrics.CycleDuration.WithLabelValues(p.Table).Observe(time.Since(start).Seconds())
	}

	hasReceivers := p.Watch.Send(records)
	if !hasReceivers {
		nlog.Infof("poller: %s: no watch receivers remain, terminating cycle loop", p.Table)
		return false
	}
	return true
}

// refreshTopology re-lists shards and mints iterators for any not already
// present in shardsAfter. A transient listing/minting failure here is
// non-fatal (spec §7 rule 2): the cycle simply skips the refresh and
// retries on the next tick.
func (p *StreamPoller) refreshTopology(ctx context.Context, shardsAfter []*stream.Shard) []*stream.Shard {
	known := make(map[string]struct{}, len(shardsAfter))
	for _, s := range shardsAfter {
		known[s.ID] = struct{}{}
	}

	listed, err := listAllShards(ctx, p.Backend, p.handle)
	if err != nil {
		nlog.Warningf("poller: %s: topology refresh failed, retrying next cycle: %v", p.Table, err)
		return nil
	}

	var fresh []backend.ShardMeta
	for _, m := range listed {
		if _, ok := known[m.ID]; !ok {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return mintShards(ctx, p.Backend, p.handle, fresh, p.maxConcurrent())
}

func (p *StreamPoller) maxConcurrent() int {
	if p.MaxConcurrentFetches <= 0 {
		return stream.DefaultMaxConcurrentFetches
	}
	return p.MaxConcurrentFetches
}

// listAllShards drains every page of backend.ListShards.
func listAllShards(ctx context.Context, be backend.StreamBackend, handle backend.StreamHandle) ([]backend.ShardMeta, error) {
	var all []backend.ShardMeta
	var cursor *string
	for {
		page, next, err := be.ListShards(ctx, handle, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == nil {
			return all, nil
		}
		cursor = next
	}
}

// mintShards mints iterators for metas in parallel, bounded by
// maxConcurrent (spec §4.3: "bounded fan-out... MPSC channel of capacity
// max(1, |shards|)"), and keeps only the shards that came back with a live
// iterator. Per-shard mint failures are logged and simply drop that shard;
// they do not fail the whole call (a single bad shard should not block
// every sibling from being polled).
func mintShards(ctx context.Context, be backend.StreamBackend, handle backend.StreamHandle, metas []backend.ShardMeta, maxConcurrent int) []*stream.Shard {
	if len(metas) == 0 {
		return nil
	}
	type result struct {
		shard *stream.Shard
	}
	sink := make(chan result, max(1, len(metas)))
	var failures cos.Errs

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for _, m := range metas {
		m := m
		g.Go(func() error {
			tag := cos.GenTaskTag()
			iter, err := be.MintIterator(gctx, handle, m.ID)
			if err != nil {
				failures.Add(fmt.Errorf("[%s] shard %s: %w", tag, m.ID, err))
				sink <- result{}
				return nil
			}
			if iter == nil {
				nlog.Infof("poller: [%s] shard %s: %v", tag, m.ID, cos.ErrShardClosed)
				sink <- result{}
				return nil
			}
			sink <- result{shard: &stream.Shard{ID: m.ID, ParentID: m.ParentID, Iterator: *iter}}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(sink)
	}()

	out := make([]*stream.Shard, 0, len(metas))
	for r := range sink {
		if r.shard != nil {
			out = append(out, r.shard)
		}
	}
	if n := failures.Len(); n > 0 {
		nlog.Warningf("poller: %d of %d iterator mints failed this round: %v", n, len(metas), failures.Err())
	}
	return out
}
