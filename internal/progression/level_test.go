package progression

import "testing"

func TestLevelFromXPAtZero(t *testing.T) {
	if got := LevelFromXP(0); got != 1 {
		t.Fatalf("LevelFromXP(0) = %d, want 1", got)
	}
}

func TestLevelThresholds(t *testing.T) {
	cases := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{49, 1},
		{50, 2},
		{149, 2},
		{150, 3},
		{299, 3},
		{300, 4},
		{500, 5},
	}

	for _, c := range cases {
		if got := LevelFromXP(c.xp); got != c.want {
			t.Errorf("LevelFromXP(%d) = %d, want %d", c.xp, got, c.want)
		}
	}
}

func TestLevelMonotonic(t *testing.T) {
	prev := LevelFromXP(0)
	for xp := 1; xp <= 5000; xp++ {
		cur := LevelFromXP(xp)
		if cur < prev {
			t.Fatalf("level decreased from %d to %d at xp=%d", prev, cur, xp)
		}
		prev = cur
	}
}

func TestXPForNextLevelStrictlyIncreasing(t *testing.T) {
	for level := 1; level < 50; level++ {
		if XPForNextLevel(level+1) <= XPForNextLevel(level) {
			t.Fatalf("XPForNextLevel not strictly increasing at level %d", level)
		}
	}
}

func TestApplyXPGainLevelUp(t *testing.T) {
	// 45 XP at level 1, a 10 XP challenge crosses the 50 XP threshold.
	got := ApplyXPGain(45, 10)

	if got.NewXP != 55 {
		t.Errorf("NewXP = %d, want 55", got.NewXP)
	}
	if got.OldLevel != 1 || got.NewLevel != 2 {
		t.Errorf("levels = %d -> %d, want 1 -> 2", got.OldLevel, got.NewLevel)
	}
	if !got.LeveledUp {
		t.Error("expected LeveledUp")
	}
}

func TestApplyXPGainNoLevelUp(t *testing.T) {
	got := ApplyXPGain(10, 10)
	if got.LeveledUp {
		t.Error("did not expect LeveledUp at 20 XP")
	}
	if got.NewLevel != 1 {
		t.Errorf("NewLevel = %d, want 1", got.NewLevel)
	}
}

func TestApplyXPGainMultiLevelJump(t *testing.T) {
	// 0 -> 350 XP covers level 2 (50), 3 (150) and 4 (300) in one gain.
	got := ApplyXPGain(0, 350)
	if got.NewLevel != 4 {
		t.Errorf("NewLevel = %d, want 4", got.NewLevel)
	}
	if !got.LeveledUp {
		t.Error("expected LeveledUp")
	}
}
