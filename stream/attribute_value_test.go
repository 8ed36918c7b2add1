package stream

import (
	"encoding/json"
	"testing"
)

func TestAttributeValueRoundTrip(t *testing.T) {
	cases := []AttributeValue{
		NewS("hello"),
		NewN("42"),
		NewBOOL(true),
		NewNULL(),
		{Kind: AttrB, B: []byte("binary")},
		{Kind: AttrSS, SS: []string{"a", "b"}},
		{Kind: AttrL, L: []AttributeValue{NewS("x"), NewN("1")}},
		{Kind: AttrM, M: map[string]AttributeValue{"k": NewS("v")}},
	}
	for _, av := range cases {
		data, err := json.Marshal(av)
		if err != nil {
			t.Fatalf("marshal %+v: %v", av, err)
		}
		var got AttributeValue
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got.Kind != av.Kind {
			t.Fatalf("kind mismatch: want %v got %v (json=%s)", av.Kind, got.Kind, data)
		}
	}
}

func TestAttributeValueRejectsMultipleTags(t *testing.T) {
	var av AttributeValue
	err := json.Unmarshal([]byte(`{"S":"a","N":"1"}`), &av)
	if err == nil {
		t.Fatal("expected an error for a multi-key attribute value")
	}
}

func TestAttributeValueRejectsUnknownTag(t *testing.T) {
	var av AttributeValue
	err := json.Unmarshal([]byte(`{"WAT":"a"}`), &av)
	if err == nil {
		t.Fatal("expected an error for an unknown attribute value tag")
	}
}

func TestRecordsSortPutsPayloadlessLast(t *testing.T) {
	rs := Records{
		{EventID: "no-payload"},
		{EventID: "b", DynamoDB: &DynamoDBPayload{SequenceNumber: "02"}},
		{EventID: "a", DynamoDB: &DynamoDBPayload{SequenceNumber: "01"}},
	}
	rs.Sort()
	if rs[0].EventID != "a" || rs[1].EventID != "b" || rs[2].EventID != "no-payload" {
		t.Fatalf("unexpected order: %+v", rs)
	}
}
