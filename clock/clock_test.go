package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goa-design/kernel/clock"
)

func TestFakeNowAndAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	require.Equal(t, start, c.Now())

	c.Advance(5 * time.Minute)
	assert.Equal(t, start.Add(5*time.Minute), c.Now())
}

func TestFakeAfterFiresImmediately(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))

	select {
	case <-c.After(time.Hour):
	default:
		t.Fatal("expected Fake.After to fire without blocking")
	}
}

func TestRealNowAdvances(t *testing.T) {
	r := clock.NewReal()
	first := r.Now()
	time.Sleep(time.Millisecond)
	second := r.Now()
	assert.True(t, second.After(first) || second.Equal(first))
}
