package common

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(5, 0))
	assert.InDelta(t, 0.7, Ratio(7, 10), 1e-9)
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "70%", FormatPercent(0.7))
	assert.Equal(t, "88%", FormatPercent(0.875))
	assert.Equal(t, "0%", FormatPercent(0))
}

func TestDaysBetween(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(45), DaysBetween(now.Add(-45*24*time.Hour), now))
	assert.Equal(t, int64(0), DaysBetween(now.Add(-23*time.Hour), now))
	assert.Equal(t, int64(0), DaysBetween(now.Add(time.Hour), now))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrMemberNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", ErrPetitionNotFound)))
	assert.False(t, IsNotFound(ErrUnknownAction))
}

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation("Nowhere/Invalid"))
}

func TestFormatPoints(t *testing.T) {
	assert.Equal(t, "+25 points", FormatPoints(25))
	assert.Equal(t, "+1 point", FormatPoints(1))
	assert.Equal(t, "-1 point", FormatPoints(-1))
	assert.Equal(t, "+1,000 points", FormatPoints(1000))
	assert.Equal(t, "-2,350 points", FormatPoints(-2350))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "12,005", FormatNumber(12005))
	assert.Equal(t, "1,000,000", FormatNumber(1000000))
	assert.Equal(t, "-4,200", FormatNumber(-4200))
}
