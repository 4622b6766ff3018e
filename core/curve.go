package core

import "math"

// Experience curve constants. RequiredXP grows polynomially so early levels
// come quickly while high levels demand sustained play.
const (
	BaseRequirement = 100
	GrowthExponent  = 1.5

	// PrestigeThreshold is the level at which a prestige reset becomes available.
	PrestigeThreshold = 100
)

// RequiredXP returns the experience needed to advance from level-1 to level.
// Levels at or below 1 require nothing. Strictly increasing for level >= 2.
func RequiredXP(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Floor(BaseRequirement * math.Pow(float64(level), GrowthExponent)))
}

// CumulativeXP returns the total experience required to reach level from a
// fresh level-1 record, i.e. the sum of RequiredXP(2..level).
func CumulativeXP(level int) int64 {
	var sum int64
	for l := 2; l <= level; l++ {
		sum += RequiredXP(l)
	}
	return sum
}

// LevelForTotalXP returns the largest level whose cumulative requirement does
// not exceed totalXP. Non-positive totals map to level 1. The result always
// agrees with repeated application of the engine's level-up loop.
func LevelForTotalXP(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	level := 1
	remaining := totalXP
	for {
		need := RequiredXP(level + 1)
		if remaining < need {
			return level
		}
		remaining -= need
		level++
	}
}
