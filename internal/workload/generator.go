// Package workload generates uniformly distributed subscriptions and events
// from a seeded source, so benchmark runs and tests are reproducible.
package workload

import (
	"math/rand"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/internal/matching"
	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

// Generator draws workloads from a single random stream. It is not safe for
// concurrent use.
type Generator struct {
	rng *rand.Rand
}

func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Subscriptions returns n subscriptions with ids 0..n-1. Each one constrains
// k distinct attributes with a range covering about width·valDom values.
func (g *Generator) Subscriptions(n, totalAttrs, k, valDom int, width float64) ([]*matching.Subscription, error) {
	if err := checkShape(n, totalAttrs, k, valDom); err != nil {
		return nil, err
	}
	if width < 0 || width >= 1 {
		return nil, apperrors.Configf("workload: width must lie in [0,1), got %g", width)
	}

	span := max(int(float64(valDom)*(1-width)), 1)
	extent := int(float64(valDom) * width)
	subs := make([]*matching.Subscription, n)
	for i := range subs {
		preds := make(map[int]matching.Predicate, k)
		for _, attr := range g.attributes(totalAttrs, k) {
			low := g.rng.Intn(span)
			high := min(low+extent, valDom-1)
			preds[attr] = matching.Predicate{Attribute: attr, Low: low, High: high}
		}
		subs[i] = &matching.Subscription{ID: i, Predicates: preds}
	}
	return subs, nil
}

// Events returns n events, each assigning a value in [0,valDom) to
// eventAttrs distinct attributes.
func (g *Generator) Events(n, totalAttrs, eventAttrs, valDom int) ([]matching.Event, error) {
	if err := checkShape(n, totalAttrs, eventAttrs, valDom); err != nil {
		return nil, err
	}
	events := make([]matching.Event, n)
	for i := range events {
		values := make(map[int]int, eventAttrs)
		for _, attr := range g.attributes(totalAttrs, eventAttrs) {
			values[attr] = g.rng.Intn(valDom)
		}
		events[i] = matching.NewEvent(values)
	}
	return events, nil
}

// attributes draws k distinct attribute ids from [0,total) by rejection.
func (g *Generator) attributes(total, k int) []int {
	used := make(map[int]struct{}, k)
	attrs := make([]int, 0, k)
	for len(attrs) < k {
		attr := g.rng.Intn(total)
		if _, ok := used[attr]; ok {
			continue
		}
		used[attr] = struct{}{}
		attrs = append(attrs, attr)
	}
	return attrs
}

func checkShape(n, totalAttrs, k, valDom int) error {
	switch {
	case n < 0:
		return apperrors.Configf("workload: count must not be negative, got %d", n)
	case totalAttrs <= 0:
		return apperrors.Configf("workload: total attributes must be positive, got %d", totalAttrs)
	case k < 0 || k > totalAttrs:
		return apperrors.Configf("workload: %d attributes requested out of %d", k, totalAttrs)
	case valDom <= 0:
		return apperrors.Configf("workload: value domain must be positive, got %d", valDom)
	}
	return nil
}
