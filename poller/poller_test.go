package poller

import (
	"context"
	"testing"
	"time"

	"github.com/kaicoh/dynamo-stream/backend"
	"github.com/kaicoh/dynamo-stream/relay"
	"github.com/kaicoh/dynamo-stream/stream"
)

// pagedBackend lists shards across two pages and mints deterministic
// iterators, letting listAllShards/mintShards be exercised without a real
// StreamBackend.
type pagedBackend struct {
	pages [][]backend.ShardMeta
}

func (b *pagedBackend) ResolveStream(context.Context, string) (backend.StreamHandle, error) {
	return backend.StreamHandle{}, nil
}

func (b *pagedBackend) ListShards(_ context.Context, _ backend.StreamHandle, cursor *string) ([]backend.ShardMeta, *string, error) {
	idx := 0
	if cursor != nil {
		idx = 1
	}
	if idx >= len(b.pages) {
		return nil, nil, nil
	}
	page := b.pages[idx]
	if idx+1 < len(b.pages) {
		next := "page-2"
		return page, &next, nil
	}
	return page, nil, nil
}

func (b *pagedBackend) MintIterator(_ context.Context, _ backend.StreamHandle, shardID string) (*string, error) {
	iter := "iter-" + shardID
	return &iter, nil
}

func (b *pagedBackend) GetRecords(context.Context, string) (stream.Records, *string, error) {
	return nil, nil, nil
}

func TestListAllShardsDrainsAllPages(t *testing.T) {
	be := &pagedBackend{pages: [][]backend.ShardMeta{
		{{ID: "s1"}, {ID: "s2"}},
		{{ID: "s3"}},
	}}

	all, err := listAllShards(context.Background(), be, backend.StreamHandle{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 shards across both pages, got %d: %+v", len(all), all)
	}
}

func TestMintShardsKeepsEveryMintedShard(t *testing.T) {
	be := &pagedBackend{}
	metas := []backend.ShardMeta{{ID: "s1"}, {ID: "s2"}}

	shards := mintShards(context.Background(), be, backend.StreamHandle{}, metas, 4)
	if len(shards) != 2 {
		t.Fatalf("expected 2 minted shards, got %d", len(shards))
	}
	seen := map[string]bool{}
	for _, s := range shards {
		seen[s.ID] = true
		if s.Iterator != "iter-"+s.ID {
			t.Fatalf("unexpected iterator %q for shard %q", s.Iterator, s.ID)
		}
	}
	if !seen["s1"] || !seen["s2"] {
		t.Fatalf("missing shards: %+v", shards)
	}
}

func TestPollerTerminatesWhenNoReceivers(t *testing.T) {
	be := &pagedBackend{pages: [][]backend.ShardMeta{{}}}
	watch := relay.NewWatch() // no Subscribe() call: zero receivers throughout
	half := relay.NewCloseEvent()

	p := New("orders", be, watch, half)
	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected poller to exit its cycle loop with no receivers")
	}
}
