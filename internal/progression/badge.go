package progression

import (
	"github.com/google/uuid"

	"growthAPI/internal/badge"
	"growthAPI/internal/stats"
)

// EvaluateBadges returns the catalog badges newly satisfied by the stats
// snapshot. Already-earned badges are never returned again, and a badge
// can appear at most once per call even when several entries share a
// criteria type.
func EvaluateBadges(snapshot stats.Snapshot, catalog []badge.Badge, alreadyEarned map[uuid.UUID]struct{}) []badge.Badge {
	awarded := make(map[uuid.UUID]struct{}, len(alreadyEarned))
	for id := range alreadyEarned {
		awarded[id] = struct{}{}
	}

	var newlyEarned []badge.Badge
	for _, b := range catalog {
		if _, ok := awarded[b.ID]; ok {
			continue
		}
		if criteriaValue(snapshot, b.CriteriaType) >= b.Target {
			newlyEarned = append(newlyEarned, b)
			awarded[b.ID] = struct{}{}
		}
	}

	return newlyEarned
}

// criteriaValue maps a criteria type onto its snapshot scalar. Unknown
// types evaluate to -1 so a malformed catalog row can never award.
func criteriaValue(s stats.Snapshot, t badge.CriteriaType) int {
	switch t {
	case badge.CriteriaChallengeCount:
		return s.ChallengesCompleted
	case badge.CriteriaLevel:
		return s.Level
	case badge.CriteriaStreak:
		return s.Streak
	case badge.CriteriaReflections:
		return s.Reflections
	case badge.CriteriaShares:
		return s.Shares
	case badge.CriteriaLikesGiven:
		return s.LikesGiven
	case badge.CriteriaLikesReceived:
		return s.LikesReceived
	case badge.CriteriaComments:
		return s.Comments
	case badge.CriteriaPackCompletion:
		return s.PacksCompleted
	case badge.CriteriaTimeOfDay:
		return s.EarlyBirdCompletions
	case badge.CriteriaWeeklyCount:
		return s.CompletionsThisWeek
	case badge.CriteriaMonthlyCount:
		return s.CompletionsThisMonth
	default:
		return -1
	}
}
