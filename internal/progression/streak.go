package progression

import "time"

// Streak continuity is decided on UTC calendar days only. Mixing local
// time with date strings is how streaks break at midnight; everything
// here truncates to a UTC date before comparing.

const maxFreezableMissedDays = 2

type StreakResult struct {
	NewStreak   int  `json:"new_streak"`
	NewLongest  int  `json:"new_longest"`
	DateUpdated bool `json:"date_updated"`
}

type Risk struct {
	AtRisk     bool `json:"at_risk"`
	MissedDays int  `json:"missed_days"`
}

type FreezeResult struct {
	Success   bool `json:"success"`
	NewTokens int  `json:"new_tokens"`
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from earlier to later.
func DaysBetween(earlier, later time.Time) int {
	return int(dateOnly(later).Sub(dateOnly(earlier)) / (24 * time.Hour))
}

// RecordCompletion decides how a completion on today affects the streak.
// Extra completions never touch continuity. A same-day duplicate leaves
// the streak and the completion date alone. A gap wider than one day
// resets to 1 unless the caller already consumed a freeze token
// (freezeApplied), in which case the break is forgiven.
func RecordCompletion(lastCompletion *time.Time, streak, longestStreak int, today time.Time, isExtra, freezeApplied bool) StreakResult {
	if isExtra {
		return StreakResult{NewStreak: streak, NewLongest: longestStreak}
	}

	newStreak := 1
	dateUpdated := true

	if lastCompletion != nil {
		switch diff := DaysBetween(*lastCompletion, today); {
		case diff == 0:
			newStreak = streak
			dateUpdated = false
		case diff == 1:
			newStreak = streak + 1
		default:
			if freezeApplied {
				newStreak = streak + 1
			}
		}
	}

	newLongest := longestStreak
	if newStreak > newLongest {
		newLongest = newStreak
	}

	return StreakResult{
		NewStreak:   newStreak,
		NewLongest:  newLongest,
		DateUpdated: dateUpdated,
	}
}

// AssessRisk reports whether an active streak has already missed at least
// one full day. MissedDays counts the days beyond the allowed one-day gap.
func AssessRisk(lastCompletion *time.Time, streak int, today time.Time) Risk {
	if streak <= 0 || lastCompletion == nil {
		return Risk{}
	}

	diff := DaysBetween(*lastCompletion, today)
	if diff <= 1 {
		return Risk{}
	}

	return Risk{AtRisk: true, MissedDays: diff - 1}
}

// CanUseFreeze reports whether a freeze token can still rescue the streak.
// A token forgives at most two missed days; older breaks are gone.
func CanUseFreeze(atRisk bool, missedDays, tokens int) bool {
	return atRisk && tokens > 0 && missedDays <= maxFreezableMissedDays
}

// ConsumeFreeze spends one token. With no tokens left it is a no-op.
func ConsumeFreeze(tokens int) FreezeResult {
	if tokens <= 0 {
		return FreezeResult{Success: false, NewTokens: tokens}
	}
	return FreezeResult{Success: true, NewTokens: tokens - 1}
}
