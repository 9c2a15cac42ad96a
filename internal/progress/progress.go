package progress

import (
	"time"

	"github.com/google/uuid"
)

// UserProgress is the mutable per-user aggregate. Version backs the
// conditional UPDATE used for optimistic concurrency: a write only lands
// when the row still carries the version the caller read.
type UserProgress struct {
	UserID                   uuid.UUID  `json:"user_id" db:"user_id"`
	XP                       int        `json:"xp" db:"xp"`
	Level                    int        `json:"level" db:"level"`
	Streak                   int        `json:"streak" db:"streak"`
	LongestStreak            int        `json:"longest_streak" db:"longest_streak"`
	LastCompletionDate       *time.Time `json:"last_completion_date" db:"last_completion_date"`
	StreakFreezeTokens       int        `json:"streak_freeze_tokens" db:"streak_freeze_tokens"`
	TotalChallengesCompleted int        `json:"total_challenges_completed" db:"total_challenges_completed"`
	CurrentChallengeID       *uuid.UUID `json:"current_challenge_id" db:"current_challenge_id"`
	Version                  int        `json:"-" db:"version"`
	CreatedAt                time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at" db:"updated_at"`
}
