package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowRefills(t *testing.T) {
	l := New(2, time.Second)
	defer l.Close()
	clock := time.Unix(1000, 0)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	clock = clock.Add(500 * time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestResetAndEvict(t *testing.T) {
	l := New(1, time.Second)
	defer l.Close()
	clock := time.Unix(1000, 0)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))

	clock = clock.Add(3 * time.Second)
	l.evictIdle()
	assert.Empty(t, l.buckets)
}

func TestZeroLimitDeniesEverything(t *testing.T) {
	l := New(0, time.Second)
	defer l.Close()
	assert.False(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}
