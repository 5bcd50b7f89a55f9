// Package common: format.go renders counts for activity notices and alerts.
package common

import "fmt"

// PluralizePoints returns "point" or "points" for n.
func PluralizePoints(n int64) string {
	if n == 1 || n == -1 {
		return "point"
	}
	return "points"
}

// FormatPoints renders a signed amount such as "+25 points" or "-1 point".
//
// Examples:
//
//	FormatPoints(100) → "+100 points"
//	FormatPoints(1)   → "+1 point"
//	FormatPoints(-50) → "-50 points"
func FormatPoints(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%s %s", FormatNumber(amount), PluralizePoints(amount))
	}
	return fmt.Sprintf("-%s %s", FormatNumber(-amount), PluralizePoints(amount))
}

// FormatNumber groups thousands with commas: FormatNumber(12350) → "12,350".
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatNumber(n/1000), n%1000)
}
