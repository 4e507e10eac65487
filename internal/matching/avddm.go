package matching

import (
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

// group is one contiguous bin [min, max) of an attribute's value domain. It
// holds the predicates whose low bound falls inside the bin.
type group struct {
	min   int
	max   int
	preds []groupPredicate
}

type groupPredicate struct {
	low  int
	high int
	slot int
}

// AVDDM partitions each attribute's value domain into a fixed number of
// groups and files every predicate under the group holding its low bound.
// Matching counts satisfied predicates per subscription while scanning groups
// in ascending order, stopping at the first group that starts above the
// event value.
type AVDDM struct {
	subs          []*Subscription
	unconstrained []*Subscription
	attributes    map[int][]group
	nbrGroups     int
	groupStep     int
	valDom        int
	bounds        bounds
}

// NewAVDDM sizes the groups from the expected number of subscribers: the
// group count is the rounded cube root, capped by the value domain.
// Attribute ids must lie in [0,totalAttributes); zero accepts any
// non-negative id.
func NewAVDDM(expectedSubscribers, totalAttributes, valDom int) (*AVDDM, error) {
	if valDom <= 0 {
		return nil, apperrors.Configf("avddm: value domain must be positive, got %d", valDom)
	}
	nbrGroups := int(math.Round(math.Cbrt(float64(expectedSubscribers))))
	nbrGroups = min(nbrGroups, valDom)
	if nbrGroups <= 0 {
		return nil, apperrors.Configf("avddm: %d expected subscribers yields no groups", expectedSubscribers)
	}
	return &AVDDM{
		attributes: make(map[int][]group),
		nbrGroups:  nbrGroups,
		groupStep:  valDom / nbrGroups,
		valDom:     valDom,
		bounds:     bounds{attributes: totalAttributes, domain: valDom},
	}, nil
}

func (a *AVDDM) Algorithm() Algorithm { return AlgorithmAVDDM }

func (a *AVDDM) Len() int { return len(a.subs) + len(a.unconstrained) }

// Groups reports the number of groups per attribute.
func (a *AVDDM) Groups() int { return a.nbrGroups }

func (a *AVDDM) Insert(sub *Subscription) error {
	if err := a.bounds.validateSubscription(sub); err != nil {
		return err
	}
	if len(sub.Predicates) == 0 {
		a.unconstrained = append(a.unconstrained, sub)
		return nil
	}
	slot := len(a.subs)
	a.subs = append(a.subs, sub)
	for attr, p := range sub.Predicates {
		groups, ok := a.attributes[attr]
		if !ok {
			groups = a.newGroups()
			a.attributes[attr] = groups
		}
		g := &groups[a.groupIndex(p.Low)]
		g.preds = append(g.preds, groupPredicate{low: p.Low, high: p.High, slot: slot})
	}
	return nil
}

func (a *AVDDM) Match(ev Event) ([]*Subscription, error) {
	if err := a.bounds.validateEvent(ev); err != nil {
		return nil, err
	}
	counter := make(map[int]int)
	for attr, value := range ev.Values {
		groups, ok := a.attributes[attr]
		if !ok {
			continue
		}
	scan:
		for i := range groups {
			g := &groups[i]
			switch {
			case value >= g.max:
				// every low bound in g is below value; only the high bound decides
				for _, p := range g.preds {
					if value <= p.high {
						counter[p.slot]++
					}
				}
			case value >= g.min:
				for _, p := range g.preds {
					if p.low <= value && value <= p.high {
						counter[p.slot]++
					}
				}
			default:
				break scan
			}
		}
	}

	matched := make([]*Subscription, 0, len(a.unconstrained))
	matched = append(matched, a.unconstrained...)
	for slot, count := range counter {
		sub := a.subs[slot]
		if count == len(sub.Predicates) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func (a *AVDDM) newGroups() []group {
	groups := make([]group, a.nbrGroups)
	for i := range groups {
		groups[i] = group{min: i * a.groupStep, max: (i + 1) * a.groupStep}
	}
	groups[a.nbrGroups-1].max = a.valDom
	return groups
}

// groupIndex returns the group whose range holds low. The last group absorbs
// the remainder of the integer division.
func (a *AVDDM) groupIndex(low int) int {
	return min(low/a.groupStep, a.nbrGroups-1)
}

func (a *AVDDM) sealed() {}
