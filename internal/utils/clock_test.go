package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonotonicClockNeverGoesBackwards(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Second), base.Add(2 * time.Second)}
	i := 0
	clock := NewMonotonicClock(time.Microsecond)
	clock.now = func() time.Time {
		t := ticks[i]
		i++
		return t
	}

	first := clock.Next()
	second := clock.Next()
	third := clock.Next()

	assert.Equal(t, base, first)
	assert.Equal(t, base, second)
	assert.Equal(t, base.Add(2*time.Second), third)
}

func TestMonotonicClockTruncates(t *testing.T) {
	clock := NewMonotonicClock(time.Millisecond)
	clock.now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 1_234_567, time.UTC) }
	assert.Equal(t, 1_000_000, clock.Next().Nanosecond())
}

func TestValidateMessageContent(t *testing.T) {
	assert.True(t, IsValidationError(ValidateMessageContent("")))
	assert.True(t, IsValidationError(ValidateMessageContent("  \n\t")))
	assert.NoError(t, ValidateMessageContent("hi"))
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("admin123")
	assert.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "admin123"))
	assert.True(t, IsErrorCode(CheckPassword(hash, "nope"), ErrInvalidCredentials))
}
