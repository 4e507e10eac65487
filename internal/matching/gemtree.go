package matching

import (
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

const (
	noParent = -1
	noCell   = -1

	// per-node weight in the ranking cost model
	rankWeight = 0.5
)

// GemTreeConfig holds GEM-Tree construction parameters.
type GemTreeConfig struct {
	Subscribers     int
	TotalAttributes int
	Predicates      int
	ValueDomain     int
	// Cells is the side length of every VNode's cell grid.
	Cells int
	// SplitThreshold is the popularity an attribute must exceed before a
	// bucket can split on it.
	SplitThreshold int
	// GrowthFactor multiplies a full bucket's capacity when it cannot split.
	GrowthFactor float64
	Alpha        float64
	Ranked       bool
}

func (c GemTreeConfig) validate() error {
	switch {
	case c.ValueDomain <= 0:
		return apperrors.Configf("gem-tree: value domain must be positive, got %d", c.ValueDomain)
	case c.Cells <= 0:
		return apperrors.Configf("gem-tree: cells must be positive, got %d", c.Cells)
	case c.SplitThreshold < 0:
		return apperrors.Configf("gem-tree: split threshold must not be negative, got %d", c.SplitThreshold)
	case c.GrowthFactor <= 1:
		return apperrors.Configf("gem-tree: growth factor must exceed 1, got %g", c.GrowthFactor)
	case c.TotalAttributes < 0:
		return apperrors.Configf("gem-tree: total attributes must not be negative, got %d", c.TotalAttributes)
	}
	return nil
}

// aNode holds a bucket of subscriptions plus the VNodes that split it.
type aNode struct {
	parent     int // vNode index, noParent for the root
	bucket     []*Subscription
	capacity   int
	directory  map[int]int // attribute -> vNode index
	popularity map[int]int // attribute -> bucket subscriptions constraining it
}

// vNode splits one attribute into a cells×cells grid of aNodes addressed by
// [row=cellIndex(high)][col=cellIndex(low)].
type vNode struct {
	parent      int // aNode index
	attribute   int
	cells       []int // aNode index per row*cells+col, noCell until used
	descendants []int

	// ranking state
	n       int // subscriptions stored directly in this node's cell buckets
	h       int
	num     float64
	cost    float64
	ranking int
}

// GemTree is a recursive index alternating bucket nodes (aNode) and range
// splitting nodes (vNode). Nodes live in two arenas and refer to each other
// by index; parent links are lookups only.
type GemTree struct {
	cfg             GemTreeConfig
	anodes          []aNode
	vnodes          []vNode
	initialCapacity int
	size            int
	bounds          bounds
}

func NewGemTree(cfg GemTreeConfig) (*GemTree, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	t := &GemTree{
		cfg:             cfg,
		initialCapacity: max(cfg.Cells*cfg.Cells/2+cfg.Cells/2, 1),
		bounds:          bounds{attributes: cfg.TotalAttributes, domain: cfg.ValueDomain},
	}
	t.newANode(noParent)
	return t, nil
}

func (t *GemTree) Algorithm() Algorithm {
	if t.cfg.Ranked {
		return AlgorithmGemTree
	}
	return AlgorithmGemTreeUnrank
}

func (t *GemTree) Len() int { return t.size }

func (t *GemTree) newANode(parent int) int {
	t.anodes = append(t.anodes, aNode{
		parent:     parent,
		capacity:   t.initialCapacity,
		directory:  make(map[int]int),
		popularity: make(map[int]int),
	})
	return len(t.anodes) - 1
}

func (t *GemTree) newVNode(parent, attr int) int {
	cells := make([]int, t.cfg.Cells*t.cfg.Cells)
	for i := range cells {
		cells[i] = noCell
	}
	t.vnodes = append(t.vnodes, vNode{parent: parent, attribute: attr, cells: cells})
	return len(t.vnodes) - 1
}

func (t *GemTree) cellIndex(v int) int {
	if v < 0 || v >= t.cfg.ValueDomain {
		return t.cfg.Cells - 1
	}
	return v * t.cfg.Cells / t.cfg.ValueDomain
}

func (t *GemTree) cellOf(p Predicate) int {
	return t.cellIndex(p.High)*t.cfg.Cells + t.cellIndex(p.Low)
}

// child returns the aNode under cell, creating it on first use.
func (t *GemTree) child(vIdx, cell int) int {
	if a := t.vnodes[vIdx].cells[cell]; a != noCell {
		return a
	}
	a := t.newANode(vIdx)
	t.vnodes[vIdx].cells[cell] = a
	return a
}

// pathAttributes returns the split attributes of every vNode from vIdx up
// to the root.
func (t *GemTree) pathAttributes(vIdx int) map[int]struct{} {
	attrs := make(map[int]struct{})
	for vIdx != noParent {
		v := &t.vnodes[vIdx]
		attrs[v.attribute] = struct{}{}
		vIdx = t.anodes[v.parent].parent
	}
	return attrs
}

func (t *GemTree) Insert(sub *Subscription) error {
	if err := t.bounds.validateSubscription(sub); err != nil {
		return err
	}

	cur := 0
	var path []int
	onPath := make(map[int]struct{})
	attrs := sub.Attributes()
	for {
		next := t.route(cur, attrs, onPath)
		if next == noParent {
			break
		}
		v := &t.vnodes[next]
		onPath[v.attribute] = struct{}{}
		path = append(path, next)
		cur = t.child(next, t.cellOf(sub.Predicates[v.attribute]))
	}

	t.store(cur, sub)
	t.size++

	split := noParent
	a := &t.anodes[cur]
	if len(a.bucket) >= a.capacity {
		if attr, ok := t.splitAttribute(cur, onPath); ok {
			split = t.split(cur, attr)
		} else {
			a.capacity = max(int(float64(a.capacity)*t.cfg.GrowthFactor), a.capacity+1)
		}
	}

	if t.cfg.Ranked {
		if split != noParent {
			t.rank(split)
		}
		for i := len(path) - 1; i >= 0; i-- {
			t.rank(path[i])
		}
	}
	return nil
}

// route picks the vNode of aNode a that sub descends into, or noParent when
// the subscription stays in a's bucket.
func (t *GemTree) route(a int, attrs []int, onPath map[int]struct{}) int {
	dir := t.anodes[a].directory
	if len(dir) == 0 {
		return noParent
	}
	best := noParent
	for _, attr := range attrs {
		if _, used := onPath[attr]; used {
			continue
		}
		vIdx, ok := dir[attr]
		if !ok {
			continue
		}
		if !t.cfg.Ranked {
			return vIdx
		}
		if best == noParent || t.vnodes[vIdx].ranking > t.vnodes[best].ranking {
			best = vIdx
		}
	}
	return best
}

func (t *GemTree) store(a int, sub *Subscription) {
	n := &t.anodes[a]
	n.bucket = append(n.bucket, sub)
	for attr := range sub.Predicates {
		n.popularity[attr]++
	}
	if n.parent != noParent {
		t.vnodes[n.parent].n++
	}
}

// splitAttribute returns the most popular attribute of a's bucket that
// exceeds the split threshold and is not already split on along the path.
// Ties go to the lowest attribute id.
func (t *GemTree) splitAttribute(a int, onPath map[int]struct{}) (int, bool) {
	n := &t.anodes[a]
	best, bestCount := 0, 0
	found := false
	for attr, count := range n.popularity {
		if count <= t.cfg.SplitThreshold {
			continue
		}
		if _, used := onPath[attr]; used {
			continue
		}
		if _, exists := n.directory[attr]; exists {
			continue
		}
		if !found || count > bestCount || (count == bestCount && attr < best) {
			best, bestCount, found = attr, count, true
		}
	}
	return best, found
}

// split creates a vNode on attr under aNode a and moves every bucket
// subscription constraining attr into its grid cell.
func (t *GemTree) split(a, attr int) int {
	vIdx := t.newVNode(a, attr)
	parent := t.anodes[a].parent

	old := t.anodes[a].bucket
	kept := make([]*Subscription, 0, len(old))
	var moved []*Subscription
	for _, sub := range old {
		if _, ok := sub.Predicates[attr]; ok {
			moved = append(moved, sub)
		} else {
			kept = append(kept, sub)
		}
	}

	n := &t.anodes[a]
	n.bucket = kept
	for _, sub := range moved {
		for pa := range sub.Predicates {
			n.popularity[pa]--
			if n.popularity[pa] == 0 {
				delete(n.popularity, pa)
			}
		}
	}
	n.directory[attr] = vIdx
	if parent != noParent {
		t.vnodes[parent].n -= len(moved)
		t.vnodes[parent].descendants = append(t.vnodes[parent].descendants, vIdx)
	}

	for _, sub := range moved {
		t.store(t.child(vIdx, t.cellOf(sub.Predicates[attr])), sub)
	}
	return vIdx
}

// rank recomputes the cost model of one vNode from its own cells and its
// descendants, which must already be up to date.
func (t *GemTree) rank(vIdx int) {
	onPath := t.pathAttributes(vIdx)
	v := &t.vnodes[vIdx]

	distinct := make(map[int]struct{})
	for _, a := range v.cells {
		if a == noCell {
			continue
		}
		for attr := range t.anodes[a].popularity {
			if _, used := onPath[attr]; !used {
				distinct[attr] = struct{}{}
			}
		}
	}
	v.h = len(distinct)

	cost := rankWeight*float64(v.n)*t.cfg.Alpha + rankWeight*float64(v.h)
	num := float64(v.n)
	for _, d := range v.descendants {
		cost += rankWeight * t.vnodes[d].cost
		num += t.vnodes[d].num
	}
	v.cost = cost
	v.num = num
	if num == 0 {
		v.ranking = 0
	} else {
		v.ranking = int(math.Floor(cost / num))
	}
}

func (t *GemTree) Match(ev Event) ([]*Subscription, error) {
	if err := t.bounds.validateEvent(ev); err != nil {
		return nil, err
	}
	m := &gemMatch{
		tree:    t,
		ev:      ev,
		onPath:  make(map[int]struct{}),
		verify:  make(map[int]struct{}),
		matched: make([]*Subscription, 0),
	}
	m.visit(0)
	return m.matched, nil
}

// gemMatch carries the per-call state of one Match traversal.
type gemMatch struct {
	tree    *GemTree
	ev      Event
	onPath  map[int]struct{}
	verify  map[int]struct{}
	matched []*Subscription
}

func (m *gemMatch) visit(a int) {
	n := &m.tree.anodes[a]
	for _, sub := range n.bucket {
		if m.accepts(sub) {
			m.matched = append(m.matched, sub)
		}
	}
	if len(n.directory) == 0 {
		return
	}

	cells := m.tree.cfg.Cells
	for attr, value := range m.ev.Values {
		vIdx, ok := n.directory[attr]
		if !ok {
			continue
		}
		v := &m.tree.vnodes[vIdx]
		idx := m.tree.cellIndex(value)
		m.onPath[attr] = struct{}{}

		// cells strictly above the value on high and below it on low contain it
		for row := idx + 1; row < cells; row++ {
			for col := 0; col < idx; col++ {
				m.descend(v, row*cells+col)
			}
		}

		_, verified := m.verify[attr]
		m.verify[attr] = struct{}{}
		for row := idx; row < cells; row++ {
			m.descend(v, row*cells+idx)
		}
		for col := 0; col < idx; col++ {
			m.descend(v, idx*cells+col)
		}
		if !verified {
			delete(m.verify, attr)
		}

		delete(m.onPath, attr)
	}
}

func (m *gemMatch) descend(v *vNode, cell int) {
	if a := v.cells[cell]; a != noCell {
		m.visit(a)
	}
}

// accepts applies the predicate check, skipping attributes whose range the
// tree already routed on unless they were marked for verification.
func (m *gemMatch) accepts(sub *Subscription) bool {
	for attr, p := range sub.Predicates {
		value, ok := m.ev.Values[attr]
		if !ok {
			return false
		}
		if _, routed := m.onPath[attr]; routed {
			if _, check := m.verify[attr]; !check {
				continue
			}
		}
		if !p.Contains(value) {
			return false
		}
	}
	return true
}

// GemTreeStats describes the shape of a GemTree.
type GemTreeStats struct {
	ANodes        int `json:"anodes"`
	VNodes        int `json:"vnodes"`
	Depth         int `json:"depth"`
	Subscriptions int `json:"subscriptions"`
	RootBucket    int `json:"root_bucket"`
	RootCapacity  int `json:"root_capacity"`
	LargestBucket int `json:"largest_bucket"`
	MaxCapacity   int `json:"max_capacity"`
}

func (t *GemTree) Stats() GemTreeStats {
	s := GemTreeStats{
		ANodes:        len(t.anodes),
		VNodes:        len(t.vnodes),
		Subscriptions: t.size,
		RootBucket:    len(t.anodes[0].bucket),
		RootCapacity:  t.anodes[0].capacity,
	}
	for i := range t.anodes {
		s.LargestBucket = max(s.LargestBucket, len(t.anodes[i].bucket))
		s.MaxCapacity = max(s.MaxCapacity, t.anodes[i].capacity)
	}
	for i := range t.vnodes {
		s.Depth = max(s.Depth, len(t.pathAttributes(i)))
	}
	return s
}

// rootVNode returns the root's vNode splitting attr.
func (t *GemTree) rootVNode(attr int) (int, bool) {
	v, ok := t.anodes[0].directory[attr]
	return v, ok
}

// cellBucket returns the bucket under [row][col] of vNode vIdx.
func (t *GemTree) cellBucket(vIdx, row, col int) []*Subscription {
	a := t.vnodes[vIdx].cells[row*t.cfg.Cells+col]
	if a == noCell {
		return nil
	}
	return t.anodes[a].bucket
}

func (t *GemTree) rootBucket() []*Subscription {
	return t.anodes[0].bucket
}

func (t *GemTree) sealed() {}
