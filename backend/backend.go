// Package backend defines the StreamBackend contract (spec §4.1): the
// opaque adapter between the core engine and whatever cloud change-stream
// service actually backs a table. Concrete implementations (backend/ddb)
// are responsible for converting backend-specific transient failures into
// the three-outcome model described here.
package backend

import (
	"context"

	"github.com/kaicoh/dynamo-stream/stream"
)

// Records is an alias so backend implementations can build batches without
// importing the stream package under a different name.
type Records = stream.Records

// StreamHandle identifies a table's change stream to the backend. Opaque to
// the core; only the backend that minted it can interpret it.
type StreamHandle struct {
	TableName string
	StreamARN string
}

// ShardMeta is a shard as listed by the backend, before any iterator has
// been minted for it.
type ShardMeta struct {
	ID       string
	ParentID string // empty if this shard has no parent in the stream
}

// StreamBackend is the capability set the core requires of the upstream
// stream service (spec §4.1). Implementations MUST apply the
// graceful-closure mapping described on MintIterator and GetRecords: the
// core never sees the backend-specific exception types, only the three
// outcomes (progress, no-op, fatal).
type StreamBackend interface {
	// ResolveStream maps a table name to its stream handle. Returns
	// cos.ErrNotConfigured if the table has no associated stream.
	ResolveStream(ctx context.Context, table string) (StreamHandle, error)

	// ListShards lists one page of a stream's shards. Implementations
	// MUST preserve parent-child links (ShardMeta.ParentID) when the
	// upstream service reports them. cursor is nil for the first page;
	// nextCursor is nil when there is no further page.
	ListShards(ctx context.Context, handle StreamHandle, cursor *string) (shards []ShardMeta, nextCursor *string, err error)

	// MintIterator mints a fresh iterator for shardID. A nil iterator
	// with a nil error means the shard is closed or already trimmed
	// (NotFound / TrimmedDataAccess conditions, mapped here); any other
	// failure is returned as an error and propagates.
	MintIterator(ctx context.Context, handle StreamHandle, shardID string) (iterator *string, err error)

	// GetRecords reads the next batch of records off iterator. Expired,
	// throttled, not-found, and trimmed-access conditions are mapped to
	// (nil records, nil nextIterator, nil error) - a graceful local
	// close, not a propagated failure. A nil nextIterator with a nil
	// error and non-empty records means the shard has no more data to
	// return on this iterator.
	GetRecords(ctx context.Context, iterator string) (records Records, nextIterator *string, err error)
}
