package progression

import (
	"testing"

	"github.com/google/uuid"

	"growthAPI/internal/badge"
	"growthAPI/internal/stats"
)

func badgeDef(criteria badge.CriteriaType, target int) badge.Badge {
	return badge.Badge{ID: uuid.New(), Name: string(criteria), CriteriaType: criteria, Target: target}
}

func TestEvaluateBadgesAwardsAtThreshold(t *testing.T) {
	catalog := []badge.Badge{
		badgeDef(badge.CriteriaChallengeCount, 10),
		badgeDef(badge.CriteriaStreak, 7),
		badgeDef(badge.CriteriaLevel, 5),
	}

	snap := stats.Snapshot{ChallengesCompleted: 10, Streak: 6, Level: 5}

	got := EvaluateBadges(snap, catalog, nil)
	if len(got) != 2 {
		t.Fatalf("awarded %d badges, want 2", len(got))
	}
	for _, b := range got {
		if b.CriteriaType == badge.CriteriaStreak {
			t.Error("streak badge awarded below target")
		}
	}
}

func TestEvaluateBadgesSkipsAlreadyEarned(t *testing.T) {
	b := badgeDef(badge.CriteriaChallengeCount, 1)
	earned := map[uuid.UUID]struct{}{b.ID: {}}

	got := EvaluateBadges(stats.Snapshot{ChallengesCompleted: 50}, []badge.Badge{b}, earned)
	if len(got) != 0 {
		t.Fatalf("re-awarded earned badge: %+v", got)
	}
}

func TestEvaluateBadgesIdempotent(t *testing.T) {
	catalog := []badge.Badge{
		badgeDef(badge.CriteriaReflections, 5),
		badgeDef(badge.CriteriaWeeklyCount, 3),
	}
	snap := stats.Snapshot{Reflections: 5, CompletionsThisWeek: 4}

	first := EvaluateBadges(snap, catalog, nil)
	if len(first) != 2 {
		t.Fatalf("first call awarded %d, want 2", len(first))
	}

	earned := make(map[uuid.UUID]struct{})
	for _, b := range first {
		earned[b.ID] = struct{}{}
	}

	second := EvaluateBadges(snap, catalog, earned)
	if len(second) != 0 {
		t.Fatalf("second call with identical stats awarded %d, want 0", len(second))
	}
}

func TestEvaluateBadgesSharedCriteriaType(t *testing.T) {
	// Two streak badges newly qualifying in the same call: both awarded,
	// each exactly once.
	catalog := []badge.Badge{
		badgeDef(badge.CriteriaStreak, 3),
		badgeDef(badge.CriteriaStreak, 7),
	}

	got := EvaluateBadges(stats.Snapshot{Streak: 7}, catalog, nil)
	if len(got) != 2 {
		t.Fatalf("awarded %d, want 2", len(got))
	}
	if got[0].ID == got[1].ID {
		t.Error("same badge returned twice in one call")
	}
}

func TestEvaluateBadgesUnknownCriteriaNeverAwards(t *testing.T) {
	catalog := []badge.Badge{{ID: uuid.New(), CriteriaType: "phase_of_moon", Target: 0}}

	got := EvaluateBadges(stats.Snapshot{}, catalog, nil)
	if len(got) != 0 {
		t.Fatalf("unknown criteria awarded: %+v", got)
	}
}

func TestEvaluateBadgesCoversAllCriteriaTypes(t *testing.T) {
	snap := stats.Snapshot{
		ChallengesCompleted:  1,
		Level:                1,
		Streak:               1,
		Reflections:          1,
		Shares:               1,
		LikesGiven:           1,
		LikesReceived:        1,
		Comments:             1,
		PacksCompleted:       1,
		EarlyBirdCompletions: 1,
		CompletionsThisWeek:  1,
		CompletionsThisMonth: 1,
	}

	types := []badge.CriteriaType{
		badge.CriteriaChallengeCount, badge.CriteriaLevel, badge.CriteriaStreak,
		badge.CriteriaReflections, badge.CriteriaShares, badge.CriteriaLikesGiven,
		badge.CriteriaLikesReceived, badge.CriteriaComments, badge.CriteriaPackCompletion,
		badge.CriteriaTimeOfDay, badge.CriteriaWeeklyCount, badge.CriteriaMonthlyCount,
	}

	var catalog []badge.Badge
	for _, ct := range types {
		catalog = append(catalog, badgeDef(ct, 1))
	}

	got := EvaluateBadges(snap, catalog, nil)
	if len(got) != len(types) {
		t.Fatalf("awarded %d, want %d (every criteria type mapped)", len(got), len(types))
	}
}
