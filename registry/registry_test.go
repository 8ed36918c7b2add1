package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kaicoh/dynamo-stream/backend"
	"github.com/kaicoh/dynamo-stream/cmn/cos"
	"github.com/kaicoh/dynamo-stream/stream"
)

// fakeBackend is an in-memory StreamBackend with no shards, so any
// Subscription it spawns immediately goes idle after init - enough to
// exercise Registry's bookkeeping without a real poll cycle.
type fakeBackend struct {
	mu            sync.Mutex
	resolveErr    map[string]error
	resolveCalled int
}

func (b *fakeBackend) ResolveStream(_ context.Context, table string) (backend.StreamHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolveCalled++
	if err, ok := b.resolveErr[table]; ok {
		return backend.StreamHandle{}, err
	}
	return backend.StreamHandle{TableName: table, StreamARN: "arn:" + table}, nil
}

func (b *fakeBackend) ListShards(_ context.Context, _ backend.StreamHandle, _ *string) ([]backend.ShardMeta, *string, error) {
	return nil, nil, nil
}

func (b *fakeBackend) MintIterator(_ context.Context, _ backend.StreamHandle, _ string) (*string, error) {
	return nil, nil
}

func (b *fakeBackend) GetRecords(_ context.Context, _ string) (stream.Records, *string, error) {
	return nil, nil, nil
}

func TestRegistryAddListenerCreatesSubscriptionOnce(t *testing.T) {
	be := &fakeBackend{resolveErr: map[string]error{}}
	reg := New(be, http.DefaultClient, nil)

	snap1, err := reg.AddListener(context.Background(), "orders", "https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap2, err := reg.AddListener(context.Background(), "orders", "https://example.com/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap1.ID == snap2.ID {
		t.Fatal("expected distinct destination IDs")
	}

	be.mu.Lock()
	calls := be.resolveCalled
	be.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected ResolveStream to be called once for the shared subscription, got %d", calls)
	}

	list := reg.List()
	if len(list["orders"]) != 2 {
		t.Fatalf("expected 2 destinations, got %+v", list)
	}
}

func TestRegistryAddListenerPropagatesResolveError(t *testing.T) {
	be := &fakeBackend{resolveErr: map[string]error{"bad-table": cos.ErrNotConfigured}}
	reg := New(be, http.DefaultClient, nil)

	_, err := reg.AddListener(context.Background(), "bad-table", "https://example.com/a")
	if !errors.Is(err, cos.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if len(reg.List()) != 0 {
		t.Fatalf("expected no subscription to survive a resolve failure, got %+v", reg.List())
	}
}

func TestRegistryRemoveListenerIsIdempotent(t *testing.T) {
	be := &fakeBackend{}
	reg := New(be, http.DefaultClient, nil)

	reg.RemoveListener("unknown-table", "unknown-id") // must not panic

	snap, err := reg.AddListener(context.Background(), "orders", "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}
	reg.RemoveListener("orders", snap.ID)
	reg.RemoveListener("orders", snap.ID) // second removal is a no-op

	if len(reg.List()["orders"]) != 0 {
		t.Fatalf("expected destination removed, got %+v", reg.List())
	}
}

func TestRegistryRemoveSubIsIdempotent(t *testing.T) {
	be := &fakeBackend{}
	reg := New(be, http.DefaultClient, nil)

	if _, err := reg.AddListener(context.Background(), "orders", "https://example.com/a"); err != nil {
		t.Fatal(err)
	}
	reg.RemoveSub("orders")
	reg.RemoveSub("orders") // idempotent
	reg.RemoveSub("never-existed")

	if len(reg.List()) != 0 {
		t.Fatalf("expected empty registry, got %+v", reg.List())
	}
}

func TestRegistryRemoveLastListenerTearsDownSubscription(t *testing.T) {
	be := &fakeBackend{resolveErr: map[string]error{}}
	reg := New(be, http.DefaultClient, nil)

	snap, err := reg.AddListener(context.Background(), "orders", "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}

	reg.RemoveListener("orders", snap.ID)

	reg.mu.Lock()
	_, stillPresent := reg.subs["orders"]
	reg.mu.Unlock()
	if stillPresent {
		t.Fatal("expected subscription to be torn down once its last destination is removed")
	}

	// Re-adding must spawn a brand new subscription (a fresh ResolveStream
	// call), not attach to the torn-down one's dead watch.
	if _, err := reg.AddListener(context.Background(), "orders", "https://example.com/b"); err != nil {
		t.Fatal(err)
	}

	be.mu.Lock()
	calls := be.resolveCalled
	be.mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected ResolveStream called once per subscription lifetime (2 total), got %d", calls)
	}
	if len(reg.List()["orders"]) != 1 {
		t.Fatalf("expected 1 destination on the fresh subscription, got %+v", reg.List())
	}
}

// TestListenerDeliveryReachesLiveServer is a light integration check that a
// registered destination actually receives a published batch end-to-end
// through Registry -> Subscription -> Watch -> Listener.
func TestListenerDeliveryReachesLiveServer(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case received <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	be := &fakeBackend{}
	reg := New(be, srv.Client(), nil)

	if _, err := reg.AddListener(context.Background(), "orders", srv.URL); err != nil {
		t.Fatal(err)
	}

	sub := reg.subs["orders"]
	sub.watch.Send(stream.Records{{EventID: "e1"}})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
	}

	reg.RemoveSub("orders")
}
