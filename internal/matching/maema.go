package matching

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

const (
	lowBound  = 0
	highBound = 1
)

// MAEMAConfig holds MAEMA construction parameters.
type MAEMAConfig struct {
	TotalAttributes int
	MaxBuckets      int
	// Capacity bounds subscription ids to [0, Capacity).
	Capacity    int
	ValueDomain int
	// Width is the expected fraction of the domain a predicate covers.
	Width float64
	// Predicates is the expected predicate count per subscription.
	Predicates int
}

func (c MAEMAConfig) validate() error {
	switch {
	case c.ValueDomain <= 0:
		return apperrors.Configf("maema: value domain must be positive, got %d", c.ValueDomain)
	case c.TotalAttributes <= 0:
		return apperrors.Configf("maema: total attributes must be positive, got %d", c.TotalAttributes)
	case c.MaxBuckets <= 0:
		return apperrors.Configf("maema: max buckets must be positive, got %d", c.MaxBuckets)
	case c.Capacity <= 0:
		return apperrors.Configf("maema: capacity must be positive, got %d", c.Capacity)
	case c.Predicates <= 1:
		return apperrors.Configf("maema: predicates per subscription must exceed 1, got %d", c.Predicates)
	case c.Width <= 0 || c.Width >= 1:
		return apperrors.Configf("maema: width must lie in (0,1), got %g", c.Width)
	}
	return nil
}

type boundEntry struct {
	id    uint
	bound int
}

// MAEMA files each predicate's low and high bound into per-attribute bucket
// arrays. Matching marks subscriptions that a bucket scan proves cannot
// match, then runs the full predicate check on every unmarked subscription.
type MAEMA struct {
	subs       []*Subscription
	present    *bitset.BitSet
	buckets    [][2][][]boundEntry
	bucketStep int
	nbrBuckets int
	radius     int
	capacity   int
	bounds     bounds
}

func NewMAEMA(cfg MAEMAConfig) (*MAEMA, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	step := ceilDiv(cfg.ValueDomain, cfg.MaxBuckets)
	nbrBuckets := ceilDiv(cfg.ValueDomain, step)

	buckets := make([][2][][]boundEntry, cfg.TotalAttributes)
	for attr := range buckets {
		buckets[attr][lowBound] = make([][]boundEntry, nbrBuckets)
		buckets[attr][highBound] = make([][]boundEntry, nbrBuckets)
	}

	return &MAEMA{
		present:    bitset.New(uint(cfg.Capacity)),
		buckets:    buckets,
		bucketStep: step,
		nbrBuckets: nbrBuckets,
		radius:     neighborRadius(nbrBuckets, cfg.Width, cfg.Predicates),
		capacity:   cfg.Capacity,
		bounds:     bounds{attributes: cfg.TotalAttributes, domain: cfg.ValueDomain},
	}, nil
}

// neighborRadius estimates how many neighbouring buckets are scanned on each
// side of the anchor: round(b * (1 - ((1-w)/(1-w^k))^(1/(k-1)))).
func neighborRadius(nbrBuckets int, w float64, k int) int {
	ratio := (1 - w) / (1 - math.Pow(w, float64(k)))
	y := float64(nbrBuckets) * (1 - math.Pow(ratio, 1/float64(k-1)))
	return int(math.Round(y))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func (m *MAEMA) Algorithm() Algorithm { return AlgorithmMAEMA }

func (m *MAEMA) Len() int { return len(m.subs) }

// Radius reports the neighbour radius derived at construction.
func (m *MAEMA) Radius() int { return m.radius }

// Buckets reports the number of buckets per attribute and bound.
func (m *MAEMA) Buckets() int { return m.nbrBuckets }

func (m *MAEMA) Insert(sub *Subscription) error {
	if err := m.bounds.validateSubscription(sub); err != nil {
		return err
	}
	if sub.ID >= m.capacity {
		return apperrors.Invalidf("maema: subscription id %d outside capacity %d", sub.ID, m.capacity)
	}
	id := uint(sub.ID)
	if m.present.Test(id) {
		return apperrors.Invalidf("maema: duplicate subscription id %d", sub.ID)
	}
	m.present.Set(id)
	m.subs = append(m.subs, sub)

	for attr, p := range sub.Predicates {
		arr := &m.buckets[attr]
		lb := p.Low / m.bucketStep
		hb := p.High / m.bucketStep
		arr[lowBound][lb] = append(arr[lowBound][lb], boundEntry{id: id, bound: p.Low})
		arr[highBound][hb] = append(arr[highBound][hb], boundEntry{id: id, bound: p.High})
	}
	return nil
}

func (m *MAEMA) Match(ev Event) ([]*Subscription, error) {
	if err := m.bounds.validateEvent(ev); err != nil {
		return nil, err
	}
	matched := make([]*Subscription, 0)
	if len(m.subs) == 0 {
		return matched, nil
	}

	// marked ids hold at least one predicate whose bound excludes the value
	marked := bitset.New(uint(m.capacity))
	for attr, value := range ev.Values {
		arr := &m.buckets[attr]
		b := value / m.bucketStep

		for _, e := range arr[lowBound][b] {
			if e.bound > value {
				marked.Set(e.id)
			}
		}
		for i := b + 1; i < min(m.nbrBuckets, b+m.radius); i++ {
			for _, e := range arr[lowBound][i] {
				marked.Set(e.id)
			}
		}

		for _, e := range arr[highBound][b] {
			if e.bound < value {
				marked.Set(e.id)
			}
		}
		for i := b - 1; i >= max(0, b-m.radius); i-- {
			for _, e := range arr[highBound][i] {
				marked.Set(e.id)
			}
		}
	}

	for _, sub := range m.subs {
		if marked.Test(uint(sub.ID)) {
			continue
		}
		if sub.Matches(ev) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func (m *MAEMA) sealed() {}
