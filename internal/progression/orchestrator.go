package progression

import (
	"time"

	"github.com/google/uuid"

	"growthAPI/internal/badge"
	"growthAPI/internal/challenge"
	"growthAPI/internal/progress"
	"growthAPI/internal/stats"
)

// Config holds the policy knobs for a completion. AllowSameDayRepeat
// controls whether a second completion on the same calendar day still
// awards XP; the streak is untouched either way.
type Config struct {
	DefaultXPReward        int
	ExtraXPReward          int
	AllowSameDayRepeat     bool
	FreezeTokensPerLevelUp int
}

func DefaultConfig() Config {
	return Config{
		DefaultXPReward:        DefaultXPReward,
		ExtraXPReward:          ExtraXPReward,
		AllowSameDayRepeat:     true,
		FreezeTokensPerLevelUp: 1,
	}
}

// Engine composes the selector, streak, level and badge rules into one
// pure computation per completion. It performs no I/O: callers read the
// current state, run CompleteChallenge, and persist the Result as a
// single transaction.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Result is the atomic outcome of one completion. Everything the caller
// must persist or announce is in here; nothing has been written yet.
type Result struct {
	XPAwarded                int           `json:"xp_awarded"`
	NewXP                    int           `json:"new_xp"`
	OldLevel                 int           `json:"old_level"`
	NewLevel                 int           `json:"new_level"`
	LeveledUp                bool          `json:"leveled_up"`
	NewStreak                int           `json:"new_streak"`
	NewLongestStreak         int           `json:"new_longest_streak"`
	StreakDateUpdated        bool          `json:"streak_date_updated"`
	StreakFreezeTokens       int           `json:"streak_freeze_tokens"`
	FreezeUsed               bool          `json:"freeze_used"`
	TotalChallengesCompleted int           `json:"total_challenges_completed"`
	SameDayRepeat            bool          `json:"same_day_repeat"`
	NewBadges                []badge.Badge `json:"new_badges"`
}

// CompleteChallenge runs one completion against the current progress.
// The snapshot must be the pre-completion stats with time-of-day and
// weekly/monthly counters already including this completion's timestamp;
// the engine overwrites only the count, level and streak fields before
// badge evaluation.
func (e *Engine) CompleteChallenge(p progress.UserProgress, ch challenge.Challenge, badgeCatalog []badge.Badge, earned map[uuid.UUID]struct{}, snapshot stats.Snapshot, today time.Time, isExtra bool) Result {
	gain := e.cfg.DefaultXPReward
	if isExtra {
		gain = e.cfg.ExtraXPReward
	} else if ch.XPReward != nil {
		gain = *ch.XPReward
	}

	sameDay := !isExtra && p.LastCompletionDate != nil && DaysBetween(*p.LastCompletionDate, today) == 0
	if sameDay && !e.cfg.AllowSameDayRepeat {
		gain = 0
	}

	xp := ApplyXPGain(p.XP, gain)

	tokens := p.StreakFreezeTokens
	freezeUsed := false
	if !isExtra {
		risk := AssessRisk(p.LastCompletionDate, p.Streak, today)
		if CanUseFreeze(risk.AtRisk, risk.MissedDays, tokens) {
			if fr := ConsumeFreeze(tokens); fr.Success {
				tokens = fr.NewTokens
				freezeUsed = true
			}
		}
	}

	streak := RecordCompletion(p.LastCompletionDate, p.Streak, p.LongestStreak, today, isExtra, freezeUsed)

	if xp.LeveledUp {
		tokens += e.cfg.FreezeTokensPerLevelUp * (xp.NewLevel - xp.OldLevel)
	}

	total := p.TotalChallengesCompleted
	if !isExtra {
		total++
	}

	snapshot.ChallengesCompleted = total
	snapshot.Level = xp.NewLevel
	snapshot.Streak = streak.NewStreak

	newBadges := EvaluateBadges(snapshot, badgeCatalog, earned)

	return Result{
		XPAwarded:                gain,
		NewXP:                    xp.NewXP,
		OldLevel:                 xp.OldLevel,
		NewLevel:                 xp.NewLevel,
		LeveledUp:                xp.LeveledUp,
		NewStreak:                streak.NewStreak,
		NewLongestStreak:         streak.NewLongest,
		StreakDateUpdated:        streak.DateUpdated,
		StreakFreezeTokens:       tokens,
		FreezeUsed:               freezeUsed,
		TotalChallengesCompleted: total,
		SameDayRepeat:            sameDay,
		NewBadges:                newBadges,
	}
}
