// Package progression holds the XP curve and level-role math. Everything here
// is pure: levels are always recomputable from cumulative XP alone.
package progression

import "math"

// ThresholdForLevel returns the XP required to advance from level to level+1.
func ThresholdForLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Floor(100 * math.Pow(float64(level), 1.5)))
}

// SumToLevel returns the cumulative XP required to complete levels 1..level,
// i.e. the XP at which a user reaches level+1.
func SumToLevel(level int) int64 {
	var total int64
	for l := 1; l <= level; l++ {
		total += ThresholdForLevel(l)
	}
	return total
}

// LevelFromXP returns the level for cumulative XP. Zero XP is level 1.
func LevelFromXP(xp int64) int {
	level, _, _ := Breakdown(xp)
	return level
}

// Breakdown returns the level for cumulative XP, the XP accumulated within
// that level, and the XP needed to reach the next level.
func Breakdown(xp int64) (level int, progress int64, needed int64) {
	if xp < 0 {
		xp = 0
	}
	level = 1
	remaining := xp
	for {
		need := ThresholdForLevel(level)
		if remaining < need {
			return level, remaining, need
		}
		remaining -= need
		level++
	}
}

// Percent returns the display percentage toward the next level, clamped to
// [0, 100]. The clamp is display-only; stored values are never clamped.
func Percent(progress, needed int64) int {
	if needed <= 0 {
		return 0
	}
	pct := int(math.Floor(float64(progress) / float64(needed) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
