package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yourorg/clipqueue/internal/domain"
)

func freshCounter(now time.Time, window time.Duration) domain.RateCounter {
	return domain.RateCounter{
		UserID:       42,
		RequestCount: 1,
		WindowStart:  now,
		WindowEnd:    now.Add(window),
	}
}

func TestAdvanceAdmitsUpToCap(t *testing.T) {
	now := time.Now()
	window := time.Hour
	c := freshCounter(now, window)

	// The counter starts at 1 (the creating request); cap of 5 leaves 4
	// more admissions inside the window.
	for i := 0; i < 4; i++ {
		res := advance(&c, now.Add(time.Minute), 5, window)
		assert.True(t, res.Allowed, "admission %d", i+2)
	}
	assert.Equal(t, 5, c.RequestCount)

	res := advance(&c, now.Add(2*time.Minute), 5, window)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5, res.Count)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestAdvanceRetryAfterIsTimeToWindowEnd(t *testing.T) {
	now := time.Now()
	window := time.Hour
	c := freshCounter(now, window)
	c.RequestCount = 5

	res := advance(&c, now.Add(20*time.Minute), 5, window)
	assert.False(t, res.Allowed)
	assert.Equal(t, 40*time.Minute, res.RetryAfter)
}

func TestAdvanceResetsAfterWindowEnd(t *testing.T) {
	now := time.Now()
	window := time.Hour
	c := freshCounter(now, window)
	c.RequestCount = 5

	later := now.Add(window) // exactly at windowEnd counts as expired
	res := advance(&c, later, 5, window)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 1, c.RequestCount)
	assert.Equal(t, later, c.WindowStart)
	assert.Equal(t, later.Add(window), c.WindowEnd)
}

func TestAdvanceDenialDoesNotMutate(t *testing.T) {
	now := time.Now()
	window := time.Hour
	c := freshCounter(now, window)
	c.RequestCount = 3

	_ = advance(&c, now.Add(time.Minute), 3, window)
	assert.Equal(t, 3, c.RequestCount, "a denied request must not consume quota")
}

func TestFormatRetryAfter(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{3*time.Minute + 20*time.Second, "3m 20s"},
		{time.Hour + 5*time.Minute, "1h 5m"},
		{-time.Second, "0s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatRetryAfter(tt.d))
	}
}
