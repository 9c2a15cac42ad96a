package progression

// XP thresholds grow quadratically: reaching level n costs 25*(n-1)*n XP
// in total, so level 2 opens at 50 XP, level 3 at 150, level 4 at 300.
// This is the single level formula for the whole service; every place
// that turns XP into a level goes through LevelFromXP.

const (
	DefaultXPReward = 10
	ExtraXPReward   = 5
)

// XPForLevel returns the cumulative XP required to reach level.
// Level 1 is the floor and costs nothing.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return 25 * (level - 1) * level
}

// XPForNextLevel returns the cumulative XP required to reach level+1.
// Strictly increasing in level.
func XPForNextLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return XPForLevel(level + 1)
}

// LevelFromXP returns the highest level whose threshold is covered by xp.
func LevelFromXP(xp int) int {
	if xp < 0 {
		return 1
	}
	level := 1
	for XPForLevel(level+1) <= xp {
		level++
	}
	return level
}

type XPGain struct {
	NewXP     int  `json:"new_xp"`
	OldLevel  int  `json:"old_level"`
	NewLevel  int  `json:"new_level"`
	LeveledUp bool `json:"leveled_up"`
}

// ApplyXPGain adds gained XP and recomputes the level. A single large gain
// may cross several thresholds at once.
func ApplyXPGain(currentXP, gained int) XPGain {
	oldLevel := LevelFromXP(currentXP)
	newXP := currentXP + gained
	newLevel := LevelFromXP(newXP)

	return XPGain{
		NewXP:     newXP,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LeveledUp: newLevel > oldLevel,
	}
}
