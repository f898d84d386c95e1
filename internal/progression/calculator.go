// Package progression holds the pure experience math: how total XP maps
// to a level, how far into a level a user is, and how a streak scales
// rewards. No I/O and no hidden state; every function is deterministic.
package progression

import "math"

const (
	// MinimumLevel is the level every account starts at and can never
	// drop below.
	MinimumLevel = 1
	// StreakMultiplierCap bounds the reward multiplier regardless of
	// streak length.
	StreakMultiplierCap = 4

	baseXPPerLevel = 500
	levelExponent  = 1.5
)

// XPRequiredForLevel returns the marginal experience needed to advance
// from level n to n+1. Levels below the minimum are treated as the
// minimum so the function stays total.
func XPRequiredForLevel(level int) int64 {
	if level < MinimumLevel {
		level = MinimumLevel
	}
	return int64(math.Round(baseXPPerLevel + math.Pow(float64(level), levelExponent)))
}

// CumulativeThreshold returns the total experience required to reach
// the given level. The first level sits at zero and thresholds are
// strictly increasing.
func CumulativeThreshold(level int) int64 {
	if level <= MinimumLevel {
		return 0
	}
	var total int64
	for n := MinimumLevel; n < level; n++ {
		total += XPRequiredForLevel(n)
	}
	return total
}

// LevelForTotalXP returns the largest level whose cumulative threshold
// does not exceed the supplied total. Negative totals clamp to the
// minimum level.
func LevelForTotalXP(totalXP int64) int {
	if totalXP < 0 {
		return MinimumLevel
	}
	level := MinimumLevel
	threshold := int64(0)
	for {
		next := threshold + XPRequiredForLevel(level)
		if next > totalXP {
			return level
		}
		threshold = next
		level++
	}
}

// LevelProgress describes where a total XP value sits inside its level.
type LevelProgress struct {
	Level            int
	XPIntoLevel      int64
	XPNeededForLevel int64
	Percent          float64
}

// ProgressWithinLevel resolves the level for the total and how far the
// total has advanced toward the next threshold. Percent is clamped to
// the 0..100 range.
func ProgressWithinLevel(totalXP int64) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := LevelForTotalXP(totalXP)
	floor := CumulativeThreshold(level)
	needed := XPRequiredForLevel(level)
	into := totalXP - floor

	percent := float64(into) / float64(needed) * 100
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	return LevelProgress{
		Level:            level,
		XPIntoLevel:      into,
		XPNeededForLevel: needed,
		Percent:          percent,
	}
}

// StreakMultiplier converts a streak length into the experience
// multiplier, capped so long streaks cannot run rewards away. A zero
// streak yields a zero multiplier.
func StreakMultiplier(streakDays int) int64 {
	if streakDays < 0 {
		return 0
	}
	if streakDays > StreakMultiplierCap {
		return StreakMultiplierCap
	}
	return int64(streakDays)
}
