package stream

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kaicoh/dynamo-stream/cmn/cos"
	"github.com/kaicoh/dynamo-stream/cmn/nlog"
)

// Backend is the subset of backend.StreamBackend the lineage walk needs.
// Kept narrow and local to avoid an import cycle between stream and
// backend; backend.StreamBackend satisfies it structurally.
type Backend interface {
	GetRecords(ctx context.Context, iterator string) (records Records, nextIterator *string, err error)
}

// Lineage is a rose tree of shards rooted at a shard without a live parent
// in the current set (spec §3).
type Lineage struct {
	Shard    *Shard
	Children []*Lineage
}

// WalkResult is one node's contribution to a tree walk: the shard's updated
// state (nil if the fetch failed, or if the shard closed) paired with
// whatever records it yielded this cycle.
type WalkResult struct {
	Shard   *Shard
	Records Records
}

// Walk performs the concurrent, parent-first traversal described in spec
// §4.2: this node's fetch is issued before any child's, and each child is
// walked on its own goroutine of g, so the walk does not wait for those
// descendants - only for this node's own fetch - before returning. g bounds
// total fan-out width (spec §9 open question: capped, not unbounded,
// tree-walk concurrency): when every slot of g is taken, the child is walked
// on the calling goroutine instead, and Walk returns after that child's walk.
func (l *Lineage) Walk(ctx context.Context, g *errgroup.Group, backend Backend, sink chan<- WalkResult) {
	res := l.fetch(ctx, backend)
	select {
	case sink <- res:
	case <-ctx.Done():
		return
	}
	for _, child := range l.Children {
		child := child
		walk := func() error {
			child.Walk(ctx, g, backend, sink)
			return nil
		}
		if !g.TryGo(walk) {
			_ = walk()
		}
	}
}

func (l *Lineage) fetch(ctx context.Context, backend Backend) WalkResult {
	if l.Shard.Closed() {
		return WalkResult{Shard: nil}
	}
	tag := cos.GenTaskTag()
	records, next, err := backend.GetRecords(ctx, l.Shard.Iterator)
	if err != nil {
		nlog.Errorf("stream: [%s] shard %s fetch failed: %v", tag, l.Shard.ID, err)
		return WalkResult{Shard: nil}
	}
	if next == nil {
		// no more data on this iterator: shard is gone as of next cycle
		return WalkResult{Shard: nil, Records: records}
	}
	updated := l.Shard.Clone()
	updated.Iterator = *next
	return WalkResult{Shard: updated, Records: records}
}

// Flatten returns shards in parent-first order: every shard with a present
// parent appears after its parent (spec §8 invariant).
func (l *Lineage) Flatten() []*Shard {
	out := make([]*Shard, 0, 1+len(l.Children))
	l.flattenInto(&out)
	return out
}

func (l *Lineage) flattenInto(out *[]*Shard) {
	*out = append(*out, l.Shard)
	for _, c := range l.Children {
		c.flattenInto(out)
	}
}
