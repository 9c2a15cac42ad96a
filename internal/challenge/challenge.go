package challenge

import (
	"time"

	"github.com/google/uuid"
)

type Challenge struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Category    string    `json:"category" db:"category"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	XPReward    *int      `json:"xp_reward,omitempty" db:"xp_reward"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CompletionRecord is append-only: inserted once per completion, never updated.
type CompletionRecord struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	ChallengeID    uuid.UUID `json:"challenge_id" db:"challenge_id"`
	Category       string    `json:"category" db:"category"`
	CompletedAt    time.Time `json:"completed_at" db:"completed_at"`
	ReflectionText *string   `json:"reflection_text,omitempty" db:"reflection_text"`
	PhotoURL       *string   `json:"photo_url,omitempty" db:"photo_url"`
	IsExtra        bool      `json:"is_extra" db:"is_extra"`
	XPAwarded      int       `json:"xp_awarded" db:"xp_awarded"`
}

type AssignChallengeRequest struct {
	Category string `json:"category" validate:"required"`
}

type CompleteChallengeRequest struct {
	ChallengeID    string `json:"challengeId" validate:"required"`
	ReflectionText string `json:"reflectionText,omitempty"`
	PhotoURL       string `json:"photoUrl,omitempty"`
	ShareToFeed    bool   `json:"shareToFeed,omitempty"`
}

type AssignedChallenge struct {
	Challenge    *Challenge `json:"challenge"`
	Fallback     bool       `json:"fallback"`
	FallbackFrom string     `json:"fallback_from,omitempty"`
}
