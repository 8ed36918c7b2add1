package stream

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fixedBackend returns canned records/next-iterator pairs keyed by the
// iterator string the shard currently carries.
type fixedBackend struct {
	onGetRecords func(iterator string) (Records, *string, error)
}

func (b *fixedBackend) GetRecords(_ context.Context, iterator string) (Records, *string, error) {
	return b.onGetRecords(iterator)
}

func ptr(s string) *string { return &s }

// subtreeIDs walks l and every descendant, returning the set of shard IDs
// reachable at or below it.
func subtreeIDs(l *Lineage) map[string]bool {
	out := map[string]bool{l.Shard.ID: true}
	for _, c := range l.Children {
		for id := range subtreeIDs(c) {
			out[id] = true
		}
	}
	return out
}

var _ = Describe("LineageForest", func() {
	// Tree 0->{1,2,3}, 1->{4,5}, 2->{6}, 6->{7,8}.
	newTreeShards := func() []*Shard {
		return []*Shard{
			{ID: "0"},
			{ID: "1", ParentID: "0"},
			{ID: "2", ParentID: "0"},
			{ID: "3", ParentID: "0"},
			{ID: "4", ParentID: "1"},
			{ID: "5", ParentID: "1"},
			{ID: "6", ParentID: "2"},
			{ID: "7", ParentID: "6"},
			{ID: "8", ParentID: "6"},
		}
	}

	orders := [][]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8},
		{8, 7, 6, 5, 4, 3, 2, 1, 0},
		{4, 5, 1, 7, 8, 6, 2, 3, 0},
		{0, 3, 2, 6, 8, 7, 1, 5, 4},
		{2, 0, 1, 3, 6, 4, 7, 5, 8},
	}

	It("reconstructs a single rooted tree regardless of insertion order", func() {
		for _, order := range orders {
			base := newTreeShards()
			shuffled := make([]*Shard, len(order))
			for i, idx := range order {
				shuffled[i] = base[idx]
			}

			forest := NewLineageForest(shuffled)
			Expect(forest.Roots()).To(HaveLen(1))

			root := forest.Roots()[0]
			Expect(root.Shard.ID).To(Equal("0"))
			Expect(subtreeIDs(root)).To(HaveLen(9))

			flat := forest.Flatten()
			Expect(flat).To(HaveLen(9))
			position := make(map[string]int, len(flat))
			for i, s := range flat {
				position[s.ID] = i
			}
			for _, s := range shuffled {
				if s.ParentID == "" {
					continue
				}
				Expect(position[s.ParentID]).To(BeNumerically("<", position[s.ID]),
					"parent %s must precede child %s", s.ParentID, s.ID)
			}
		}
	})

	It("keeps two disjoint trees separate", func() {
		base := []*Shard{
			{ID: "0"},
			{ID: "1", ParentID: "0"},
			{ID: "2", ParentID: "0"},
			{ID: "3"},
			{ID: "4", ParentID: "3"},
			{ID: "5", ParentID: "3"},
		}
		order := []int{4, 1, 0, 5, 3, 2}
		shuffled := make([]*Shard, len(order))
		for i, idx := range order {
			shuffled[i] = base[idx]
		}

		forest := NewLineageForest(shuffled)
		Expect(forest.Roots()).To(HaveLen(2))
	})

	It("merges and orders records from two shards (spec concrete scenario 3)", func() {
		shardA := &Shard{ID: "A", Iterator: "iterA"}
		shardB := &Shard{ID: "B", Iterator: "iterB"}

		be := &fixedBackend{onGetRecords: func(iter string) (Records, *string, error) {
			switch iter {
			case "iterA":
				return Records{{EventID: "e2", DynamoDB: &DynamoDBPayload{SequenceNumber: "02"}}, {EventID: "e4", DynamoDB: &DynamoDBPayload{SequenceNumber: "04"}}}, ptr("iterA2"), nil
			case "iterB":
				return Records{{EventID: "e1", DynamoDB: &DynamoDBPayload{SequenceNumber: "01"}}, {EventID: "e3", DynamoDB: &DynamoDBPayload{SequenceNumber: "03"}}}, nil, nil
			}
			return nil, nil, nil
		}}

		forest := NewLineageForest([]*Shard{shardA, shardB})
		records, shardsAfter := forest.Collect(context.Background(), be, 4)
		records.Sort()

		Expect(records).To(HaveLen(4))
		seqs := make([]string, len(records))
		for i, r := range records {
			seqs[i] = r.DynamoDB.SequenceNumber
		}
		Expect(seqs).To(Equal([]string{"01", "02", "03", "04"}))

		// B returned next_iterator=None: gone from the next cycle's set.
		Expect(shardsAfter).To(HaveLen(1))
		Expect(shardsAfter[0].ID).To(Equal("A"))
		Expect(shardsAfter[0].Iterator).To(Equal("iterA2"))
	})
})
