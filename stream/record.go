package stream

import (
	"sort"
	"time"
)

// EventName mirrors DynamoDB Streams' eventName values (spec §3).
type EventName string

const (
	EventInsert  EventName = "INSERT"
	EventModify  EventName = "MODIFY"
	EventRemove  EventName = "REMOVE"
	EventUnknown EventName = "UNKNOWN"
)

// StreamViewType mirrors DynamoDB Streams' StreamViewType values.
type StreamViewType string

const (
	ViewKeysOnly          StreamViewType = "KEYS_ONLY"
	ViewNewAndOldImages   StreamViewType = "NEW_AND_OLD_IMAGES"
	ViewNewImage          StreamViewType = "NEW_IMAGE"
	ViewOldImage          StreamViewType = "OLD_IMAGE"
)

// UserIdentity is the optional principal responsible for the change, carried
// on a Record when the backend supplies one.
type UserIdentity struct {
	PrincipalID string `json:"principalId"`
	Type        string `json:"type"`
}

// DynamoDBPayload is the optional per-item-change payload of a Record (spec
// §3). A Record with a nil payload sorts after every Record that has one.
type DynamoDBPayload struct {
	ApproximateCreationDateTime time.Time                 `json:"ApproximateCreationDateTime"`
	Keys                        map[string]AttributeValue `json:"Keys"`
	NewImage                    map[string]AttributeValue `json:"NewImage,omitempty"`
	OldImage                    map[string]AttributeValue `json:"OldImage,omitempty"`
	SequenceNumber              string                    `json:"SequenceNumber"`
	SizeBytes                   int64                     `json:"SizeBytes"`
	StreamViewType              StreamViewType            `json:"StreamViewType"`
}

// Record is one item-level change observed on a shard (spec §3).
type Record struct {
	EventID      string           `json:"eventID"`
	EventName    EventName        `json:"eventName"`
	EventVersion string           `json:"eventVersion"`
	EventSource  string           `json:"eventSource"`
	AWSRegion    string           `json:"awsRegion"`
	DynamoDB     *DynamoDBPayload `json:"dynamodb,omitempty"`
	UserIdentity *UserIdentity    `json:"userIdentity,omitempty"`
}

// sequenceNumber returns the record's sort key and whether it has one at
// all; a record without a payload (or with an empty sequence number) has no
// sort key and sorts last (spec §3 Ordering).
func (r Record) sequenceNumber() (string, bool) {
	if r.DynamoDB == nil || r.DynamoDB.SequenceNumber == "" {
		return "", false
	}
	return r.DynamoDB.SequenceNumber, true
}

// Records is a finite ordered sequence of Record (spec §3).
type Records []Record

func (rs *Records) Append(more ...Record) { *rs = append(*rs, more...) }
func (rs Records) IsEmpty() bool          { return len(rs) == 0 }

// Sort orders records by sequence_number, lexicographically ascending,
// with payload-less records last (spec §3, §8 invariant 2). Stable so that
// records sharing a sequence number (never expected in practice, but not
// forbidden) keep their arrival order.
func (rs Records) Sort() {
	sort.SliceStable(rs, func(i, j int) bool {
		si, oki := rs[i].sequenceNumber()
		sj, okj := rs[j].sequenceNumber()
		switch {
		case oki && okj:
			return si < sj
		case oki && !okj:
			return true
		default:
			return false
		}
	})
}
