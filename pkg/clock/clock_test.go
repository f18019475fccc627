package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_NowReturnsWallClock(t *testing.T) {
	before := time.Now()
	got := Real{}.Now()
	after := time.Now()
	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestFake_NowReturnsSetTime(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(epoch)
	assert.Equal(t, epoch, f.Now())
}

func TestFake_AdvanceMovesTimeForward(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(epoch)
	f.Advance(5 * time.Minute)
	assert.Equal(t, epoch.Add(5*time.Minute), f.Now())
}

func TestFake_SetPinsTime(t *testing.T) {
	f := NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f.Set(later)
	assert.Equal(t, later, f.Now())
}
