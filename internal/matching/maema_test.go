package matching

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

func TestMAEMARadius(t *testing.T) {
	m, err := NewMAEMA(MAEMAConfig{TotalAttributes: 2, MaxBuckets: 10, Capacity: 10, ValueDomain: 100, Width: 0.5, Predicates: 2})
	require.NoError(t, err)
	assert.Equal(t, 10, m.Buckets())
	// 10 * (1 - (0.5/0.75)) = 3.33
	assert.Equal(t, 3, m.Radius())

	m, err = NewMAEMA(MAEMAConfig{TotalAttributes: 2, MaxBuckets: 3, Capacity: 10, ValueDomain: 10, Width: 0.5, Predicates: 2})
	require.NoError(t, err)
	// step ceil(10/3)=4 gives 3 buckets
	assert.Equal(t, 3, m.Buckets())
}

func TestMAEMADoubleCheckWithZeroRadius(t *testing.T) {
	m, err := NewMAEMA(MAEMAConfig{TotalAttributes: 2, MaxBuckets: 1, Capacity: 10, ValueDomain: 10, Width: 0.5, Predicates: 2})
	require.NoError(t, err)
	require.Equal(t, 0, m.Radius())

	require.NoError(t, m.Insert(NewSubscription(0, Predicate{Attribute: 0, Low: 2, High: 4})))
	require.NoError(t, m.Insert(NewSubscription(1,
		Predicate{Attribute: 0, Low: 0, High: 9},
		Predicate{Attribute: 1, Low: 6, High: 8},
	)))

	cases := []struct {
		values map[int]int
		want   []int
	}{
		{map[int]int{0: 3}, []int{0}},
		{map[int]int{0: 2}, []int{0}},
		{map[int]int{0: 4}, []int{0}},
		{map[int]int{0: 5}, []int{}},
		{map[int]int{0: 3, 1: 7}, []int{0, 1}},
		{map[int]int{0: 9, 1: 6}, []int{1}},
		{map[int]int{0: 9, 1: 5}, []int{}},
	}
	for _, tc := range cases {
		got, err := m.Match(NewEvent(tc.values))
		require.NoError(t, err)
		assert.Equal(t, tc.want, IDs(got), "event %v", tc.values)
	}
}

func TestMAEMANeighbourBucketsExcludeNonMatches(t *testing.T) {
	m, err := NewMAEMA(MAEMAConfig{TotalAttributes: 1, MaxBuckets: 10, Capacity: 4, ValueDomain: 100, Width: 0.5, Predicates: 2})
	require.NoError(t, err)
	require.NoError(t, m.Insert(NewSubscription(0, Predicate{Attribute: 0, Low: 25, High: 30})))
	require.NoError(t, m.Insert(NewSubscription(1, Predicate{Attribute: 0, Low: 60, High: 70})))
	require.NoError(t, m.Insert(NewSubscription(2, Predicate{Attribute: 0, Low: 0, High: 99})))

	for value, want := range map[int][]int{27: {0, 2}, 45: {2}, 65: {1, 2}, 99: {2}} {
		got, err := m.Match(NewEvent(map[int]int{0: value}))
		require.NoError(t, err)
		assert.Equal(t, want, IDs(got), "value %d", value)
	}
}

func TestMAEMACapacity(t *testing.T) {
	m, err := NewMAEMA(MAEMAConfig{TotalAttributes: 1, MaxBuckets: 2, Capacity: 2, ValueDomain: 10, Width: 0.2, Predicates: 2})
	require.NoError(t, err)

	require.NoError(t, m.Insert(NewSubscription(1)))
	assert.True(t, errors.Is(m.Insert(NewSubscription(2)), apperrors.ErrInvalidInput))
	assert.True(t, errors.Is(m.Insert(NewSubscription(1)), apperrors.ErrInvalidInput), "duplicate id")
	assert.Equal(t, 1, m.Len())
}

func TestMAEMARejectsConfig(t *testing.T) {
	base := MAEMAConfig{TotalAttributes: 2, MaxBuckets: 5, Capacity: 10, ValueDomain: 100, Width: 0.3, Predicates: 2}
	for name, mutate := range map[string]func(*MAEMAConfig){
		"predicates": func(c *MAEMAConfig) { c.Predicates = 1 },
		"width zero": func(c *MAEMAConfig) { c.Width = 0 },
		"width one":  func(c *MAEMAConfig) { c.Width = 1 },
		"domain":     func(c *MAEMAConfig) { c.ValueDomain = 0 },
		"buckets":    func(c *MAEMAConfig) { c.MaxBuckets = 0 },
		"capacity":   func(c *MAEMAConfig) { c.Capacity = 0 },
		"attributes": func(c *MAEMAConfig) { c.TotalAttributes = 0 },
	} {
		cfg := base
		mutate(&cfg)
		_, err := NewMAEMA(cfg)
		assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig), name)
	}
}
