// Package common contains helpers used across the engine:
// percentage formatting, whole-day arithmetic and time zone loading.
package common

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// Ratio returns part/total, or 0 when total is zero.
func Ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// FormatPercent renders a ratio as a whole percentage.
//
// Examples:
//
//	FormatPercent(0.7)   → "70%"
//	FormatPercent(0.875) → "88%"
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%d%%", int64(math.Round(ratio*100)))
}

// DaysBetween returns the number of whole days elapsed from since to now.
// A negative span (clock skew) yields 0.
func DaysBetween(since, now time.Time) int64 {
	d := now.Sub(since)
	if d <= 0 {
		return 0
	}
	return int64(d / (24 * time.Hour))
}

// LoadLocation loads the configured time zone, falling back to UTC.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("timezone", name).Warn("Failed to load time zone, using UTC")
		return time.UTC
	}
	return loc
}
