package progression

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"growthAPI/internal/badge"
	"growthAPI/internal/challenge"
	"growthAPI/internal/progress"
	"growthAPI/internal/stats"
)

func testChallenge() challenge.Challenge {
	return challenge.Challenge{ID: uuid.New(), Category: "Confidence", Title: "Speak up once"}
}

func baseProgress(last *time.Time, streak int) progress.UserProgress {
	return progress.UserProgress{
		UserID:        uuid.New(),
		XP:            0,
		Level:         1,
		Streak:        streak,
		LongestStreak: streak,
		LastCompletionDate: last,
	}
}

func TestCompleteChallengeLevelUpScenario(t *testing.T) {
	// xp=45, level threshold 50 for level 2, +10 XP challenge.
	e := NewEngine(DefaultConfig())
	p := baseProgress(nil, 0)
	p.XP = 45

	got := e.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day("2024-01-01"), false)

	if got.NewXP != 55 {
		t.Errorf("NewXP = %d, want 55", got.NewXP)
	}
	if got.NewLevel != 2 || !got.LeveledUp {
		t.Errorf("NewLevel = %d, LeveledUp = %v, want 2/true", got.NewLevel, got.LeveledUp)
	}
	if got.NewStreak != 1 {
		t.Errorf("NewStreak = %d, want 1", got.NewStreak)
	}
	if got.TotalChallengesCompleted != 1 {
		t.Errorf("TotalChallengesCompleted = %d, want 1", got.TotalChallengesCompleted)
	}
}

func TestCompleteChallengeFreezeRescue(t *testing.T) {
	// lastCompletion 2024-01-01, streak 5, completing on 2024-01-03 with one token.
	e := NewEngine(DefaultConfig())
	last := day("2024-01-01")
	p := baseProgress(&last, 5)
	p.StreakFreezeTokens = 1

	got := e.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day("2024-01-03"), false)

	if !got.FreezeUsed {
		t.Fatal("expected freeze token to be consumed")
	}
	if got.NewStreak != 6 {
		t.Errorf("NewStreak = %d, want 6", got.NewStreak)
	}
	if got.StreakFreezeTokens != 0 {
		t.Errorf("tokens = %d, want 0", got.StreakFreezeTokens)
	}
}

func TestCompleteChallengeBreakWithoutTokens(t *testing.T) {
	e := NewEngine(DefaultConfig())
	last := day("2024-01-01")
	p := baseProgress(&last, 5)

	got := e.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day("2024-01-03"), false)

	if got.FreezeUsed {
		t.Error("no tokens available, freeze must not apply")
	}
	if got.NewStreak != 1 {
		t.Errorf("NewStreak = %d, want 1", got.NewStreak)
	}
	if got.NewLongestStreak != 5 {
		t.Errorf("NewLongestStreak = %d, want 5", got.NewLongestStreak)
	}
}

func TestCompleteChallengeBreakTooOldForFreeze(t *testing.T) {
	// Three missed days: the token must be kept and the streak reset.
	e := NewEngine(DefaultConfig())
	last := day("2024-01-01")
	p := baseProgress(&last, 5)
	p.StreakFreezeTokens = 2

	got := e.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day("2024-01-05"), false)

	if got.FreezeUsed {
		t.Error("freeze must not apply beyond two missed days")
	}
	if got.NewStreak != 1 {
		t.Errorf("NewStreak = %d, want 1", got.NewStreak)
	}
	if got.StreakFreezeTokens != 2 {
		t.Errorf("tokens = %d, want 2 untouched", got.StreakFreezeTokens)
	}
}

func TestCompleteChallengeExtraDoesNotTouchStreakOrCount(t *testing.T) {
	e := NewEngine(DefaultConfig())
	last := day("2024-01-01")
	p := baseProgress(&last, 3)
	p.TotalChallengesCompleted = 12

	got := e.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day("2024-01-09"), true)

	if got.NewStreak != 3 {
		t.Errorf("NewStreak = %d, want 3 unchanged", got.NewStreak)
	}
	if got.TotalChallengesCompleted != 12 {
		t.Errorf("count = %d, want 12 unchanged", got.TotalChallengesCompleted)
	}
	if got.XPAwarded != ExtraXPReward {
		t.Errorf("XPAwarded = %d, want extra reward %d", got.XPAwarded, ExtraXPReward)
	}
}

func TestCompleteChallengeSameDayRepeatPolicy(t *testing.T) {
	last := day("2024-01-01")

	allowed := NewEngine(DefaultConfig())
	p := baseProgress(&last, 4)
	got := allowed.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day("2024-01-01"), false)
	if got.XPAwarded != DefaultXPReward {
		t.Errorf("allowing repeats: XPAwarded = %d, want %d", got.XPAwarded, DefaultXPReward)
	}
	if got.NewStreak != 4 {
		t.Errorf("same-day NewStreak = %d, want 4 unchanged", got.NewStreak)
	}

	cfg := DefaultConfig()
	cfg.AllowSameDayRepeat = false
	blocked := NewEngine(cfg)
	got = blocked.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day("2024-01-01"), false)
	if got.XPAwarded != 0 {
		t.Errorf("blocking repeats: XPAwarded = %d, want 0", got.XPAwarded)
	}
	if !got.SameDayRepeat {
		t.Error("expected SameDayRepeat flag")
	}
}

func TestCompleteChallengeCustomReward(t *testing.T) {
	e := NewEngine(DefaultConfig())
	reward := 40
	ch := testChallenge()
	ch.XPReward = &reward

	got := e.CompleteChallenge(baseProgress(nil, 0), ch, nil, nil, stats.Snapshot{}, day("2024-01-01"), false)
	if got.XPAwarded != 40 || got.NewXP != 40 {
		t.Errorf("XPAwarded = %d, NewXP = %d, want 40/40", got.XPAwarded, got.NewXP)
	}
}

func TestCompleteChallengeLevelUpGrantsTokens(t *testing.T) {
	e := NewEngine(DefaultConfig())
	p := baseProgress(nil, 0)
	p.XP = 45

	got := e.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day("2024-01-01"), false)
	if got.StreakFreezeTokens != 1 {
		t.Errorf("tokens = %d, want 1 granted on level-up", got.StreakFreezeTokens)
	}
}

func TestCompleteChallengeAwardsBadgesFromUpdatedStats(t *testing.T) {
	e := NewEngine(DefaultConfig())
	catalog := []badge.Badge{
		badgeDef(badge.CriteriaChallengeCount, 1),
		badgeDef(badge.CriteriaStreak, 1),
		badgeDef(badge.CriteriaReflections, 3),
	}

	snap := stats.Snapshot{Reflections: 2}
	got := e.CompleteChallenge(baseProgress(nil, 0), testChallenge(), catalog, nil, snap, day("2024-01-01"), false)

	if len(got.NewBadges) != 2 {
		t.Fatalf("awarded %d badges, want 2 (count + streak)", len(got.NewBadges))
	}
}

func TestCompleteChallengeOutputAtomicity(t *testing.T) {
	// For non-extra same/next-day completions the result must never show
	// a lower level or a shrinking streak.
	e := NewEngine(DefaultConfig())
	last := day("2024-01-05")

	for _, today := range []string{"2024-01-05", "2024-01-06"} {
		p := baseProgress(&last, 7)
		p.XP = 500

		got := e.CompleteChallenge(p, testChallenge(), nil, nil, stats.Snapshot{}, day(today), false)
		if got.NewLevel < got.OldLevel {
			t.Errorf("%s: level decreased %d -> %d", today, got.OldLevel, got.NewLevel)
		}
		if got.NewStreak < p.Streak {
			t.Errorf("%s: streak decreased %d -> %d", today, p.Streak, got.NewStreak)
		}
	}
}
