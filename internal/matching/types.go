// Package matching implements content-based publish/subscribe event matching.
//
// A Subscription is a conjunction of closed-range predicates, at most one per
// attribute. An Event assigns integer values to attributes. A subscription
// matches an event when the event carries a value for every constrained
// attribute and each value lies inside its predicate's range.
//
// Four index structures implement the Matcher contract: Linear (full scan,
// used as the correctness oracle), AVDDM (value-domain groups), MAEMA
// (bound buckets with a verification pass) and GEM-Tree (a recursive tree of
// bucket nodes and cell grids, optionally cost-ranked).
package matching

import (
	"sort"
)

// Predicate constrains one attribute to the closed interval [Low, High].
type Predicate struct {
	Attribute int `json:"attribute"`
	Low       int `json:"low"`
	High      int `json:"high"`
}

// Contains reports whether v lies in [Low, High].
func (p Predicate) Contains(v int) bool {
	return p.Low <= v && v <= p.High
}

// Subscription is a conjunction of predicates keyed by attribute.
type Subscription struct {
	ID         int               `json:"id"`
	Predicates map[int]Predicate `json:"predicates"`
}

// NewSubscription builds a subscription from a list of predicates. A later
// predicate on the same attribute replaces an earlier one.
func NewSubscription(id int, preds ...Predicate) *Subscription {
	m := make(map[int]Predicate, len(preds))
	for _, p := range preds {
		m[p.Attribute] = p
	}
	return &Subscription{ID: id, Predicates: m}
}

// Matches applies the full predicate check against ev.
func (s *Subscription) Matches(ev Event) bool {
	for attr, p := range s.Predicates {
		v, ok := ev.Values[attr]
		if !ok || !p.Contains(v) {
			return false
		}
	}
	return true
}

// Attributes returns the constrained attributes in ascending order.
func (s *Subscription) Attributes() []int {
	attrs := make([]int, 0, len(s.Predicates))
	for attr := range s.Predicates {
		attrs = append(attrs, attr)
	}
	sort.Ints(attrs)
	return attrs
}

// Event is a sparse assignment of values to attributes.
type Event struct {
	Values map[int]int `json:"values"`
}

// NewEvent wraps an attribute → value map.
func NewEvent(values map[int]int) Event {
	if values == nil {
		values = make(map[int]int)
	}
	return Event{Values: values}
}

// IDs returns the subscription ids of subs in ascending order.
func IDs(subs []*Subscription) []int {
	ids := make([]int, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	sort.Ints(ids)
	return ids
}
