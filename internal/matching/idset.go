package matching

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// IDSet is a compressed set of subscription ids used to compare match
// results across matchers.
type IDSet struct {
	bm *roaring.Bitmap
}

// NewIDSet collects the ids of subs.
func NewIDSet(subs []*Subscription) IDSet {
	bm := roaring.New()
	for _, s := range subs {
		bm.Add(uint32(s.ID))
	}
	return IDSet{bm: bm}
}

func (s IDSet) Len() int { return int(s.bm.GetCardinality()) }

func (s IDSet) Contains(id int) bool {
	return id >= 0 && s.bm.Contains(uint32(id))
}

func (s IDSet) Equal(other IDSet) bool {
	return s.bm.Equals(other.bm)
}

// Difference returns the ids in s that are missing from other, ascending.
func (s IDSet) Difference(other IDSet) []int {
	diff := roaring.AndNot(s.bm, other.bm)
	ids := make([]int, 0, diff.GetCardinality())
	it := diff.Iterator()
	for it.HasNext() {
		ids = append(ids, int(it.Next()))
	}
	return ids
}

// Union merges other into s.
func (s IDSet) Union(other IDSet) {
	s.bm.Or(other.bm)
}
