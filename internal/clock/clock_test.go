package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealIsUTC(t *testing.T) {
	now := Real().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Minute)
}

func TestFake(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	assert.Equal(t, start, f.Now())
	assert.Equal(t, start, f.Now(), "Now must not advance on its own")

	f.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), f.Now())

	later := start.Add(24 * time.Hour)
	f.Set(later)
	assert.Equal(t, later, f.Now())
}

func TestFakeSatisfiesClock(t *testing.T) {
	var c Clock = NewFake(time.Time{})
	assert.True(t, c.Now().IsZero())
}
