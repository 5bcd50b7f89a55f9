// Package engagement: levels.go holds the level formula.
//
//	level(points)         = floor(sqrt(points / 10)) + 1
//	PointsForNextLevel(l) = l² × 10
//
// Level L is reached at PointsForNextLevel(L-1) points:
//
//	level 1:   0 points
//	level 2:  10 points
//	level 3:  40 points
//	level 4:  90 points
//	level 5: 160 points
package engagement

import "math"

const pointsPerLevelUnit = 10

// CalculateLevel returns the level for a lifetime point total.
// Negative totals are treated as zero.
func CalculateLevel(points int64) int {
	if points < 0 {
		points = 0
	}
	return int(isqrt(points/pointsPerLevelUnit)) + 1
}

// PointsForNextLevel returns the total needed to leave level.
func PointsForNextLevel(level int) int64 {
	if level < 0 {
		level = 0
	}
	l := int64(level)
	return l * l * pointsPerLevelUnit
}

// Progress describes how far a member is into their current level.
type Progress struct {
	Current int64   `json:"current"`
	Needed  int64   `json:"needed"`
	Percent float64 `json:"percent"`
}

// ComputeProgress returns progress within level for points.
func ComputeProgress(points int64, level int) Progress {
	floor := PointsForNextLevel(level - 1)
	needed := PointsForNextLevel(level) - floor
	current := points - floor
	if current < 0 {
		current = 0
	}
	if current > needed {
		current = needed
	}
	p := Progress{Current: current, Needed: needed}
	if needed > 0 {
		p.Percent = math.Round(float64(current)/float64(needed)*1000) / 10
	}
	return p
}

// isqrt is floor(sqrt(n)) without float rounding surprises.
func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
