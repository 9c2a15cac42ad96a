package badge

import (
	"time"

	"github.com/google/uuid"
)

type CriteriaType string

const (
	CriteriaChallengeCount CriteriaType = "challenge_count"
	CriteriaLevel          CriteriaType = "level"
	CriteriaStreak         CriteriaType = "streak"
	CriteriaReflections    CriteriaType = "reflection_count"
	CriteriaShares         CriteriaType = "share_count"
	CriteriaLikesGiven     CriteriaType = "likes_given"
	CriteriaLikesReceived  CriteriaType = "likes_received"
	CriteriaComments       CriteriaType = "comment_count"
	CriteriaPackCompletion CriteriaType = "pack_completion"
	CriteriaTimeOfDay      CriteriaType = "time_of_day"
	CriteriaWeeklyCount    CriteriaType = "weekly_count"
	CriteriaMonthlyCount   CriteriaType = "monthly_count"
)

type Badge struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Description  string       `json:"description" db:"description"`
	Icon         string       `json:"icon" db:"icon"`
	CriteriaType CriteriaType `json:"criteria_type" db:"criteria_type"`
	Target       int          `json:"target" db:"target"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

type UserBadge struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	BadgeID  uuid.UUID `json:"badge_id" db:"badge_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

type BadgeWithStatus struct {
	Badge
	Earned   bool       `json:"earned"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}
