package stream

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrentFetches bounds the width of a single tree walk's
// fan-out (spec §9 open question, resolved in SPEC_FULL.md).
const DefaultMaxConcurrentFetches = 64

// LineageForest is the ordered set of independent lineages for one stream
// (spec §3). No two lineages share a shard; a shard whose parent is present
// in the set is a descendant of that parent.
type LineageForest struct {
	roots []*Lineage
	byID  map[string]*Lineage
}

// NewLineageForest builds a forest from the current shard set using the
// iterative insertion algorithm of spec §3: for each new shard S, reparent
// any existing root whose ParentID == S.ID under S, then attach S under its
// own parent if already present, else add S as a new root.
func NewLineageForest(shards []*Shard) *LineageForest {
	f := &LineageForest{byID: make(map[string]*Lineage, len(shards))}
	for _, s := range shards {
		f.insert(s)
	}
	return f
}

func (f *LineageForest) insert(s *Shard) {
	node := &Lineage{Shard: s}
	f.byID[s.ID] = node

	// (a) reparent any existing root that is actually a child of S
	kept := f.roots[:0]
	for _, r := range f.roots {
		if r.Shard.ParentID == s.ID {
			node.Children = append(node.Children, r)
		} else {
			kept = append(kept, r)
		}
	}
	f.roots = kept

	// (b) attach S under its own parent if already present, else new root
	if s.HasParent() {
		if parent, ok := f.byID[s.ParentID]; ok {
			parent.Children = append(parent.Children, node)
			return
		}
	}
	f.roots = append(f.roots, node)
}

// Roots returns the forest's independent lineages.
func (f *LineageForest) Roots() []*Lineage { return f.roots }

// Flatten returns every shard across every lineage, each lineage's shards in
// parent-first order (spec §8 invariant 1).
func (f *LineageForest) Flatten() []*Shard {
	out := make([]*Shard, 0, len(f.byID))
	for _, r := range f.roots {
		out = append(out, r.Flatten()...)
	}
	return out
}

// Collect fans out one concurrent Walk per root through a bounded sink
// sized to the shard count (or 1, if empty), drains it, and returns the
// merged records and the surviving shards - those whose fetch produced a
// fresh iterator (spec §4.2 LineageForest::collect).
func (f *LineageForest) Collect(ctx context.Context, backend Backend, maxConcurrent int) (Records, []*Shard) {
	n := len(f.byID)
	sinkCap := max(1, n)
	sink := make(chan WalkResult, sinkCap)

	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentFetches
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, r := range f.roots {
		r := r
		g.Go(func() error {
			r.Walk(gctx, g, backend, sink)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(sink)
	}()

	var records Records
	shards := make([]*Shard, 0, n)
	for res := range sink {
		if len(res.Records) > 0 {
			records = append(records, res.Records...)
		}
		if res.Shard != nil {
			shards = append(shards, res.Shard)
		}
	}
	return records, shards
}
