package progression

import (
	"math/rand"

	"github.com/google/uuid"

	"growthAPI/internal/challenge"
)

// Selection is the outcome of picking the next challenge. Fallback marks
// a pick from an alternate growth area after the target ran dry, so the
// UI can tell the user this isn't their primary focus.
type Selection struct {
	Challenge    challenge.Challenge `json:"challenge"`
	Fallback     bool                `json:"fallback"`
	FallbackFrom string              `json:"fallback_from,omitempty"`
}

// SelectChallenge picks a uniformly random uncompleted challenge from the
// target category, walking fallbackOrder when the target is exhausted.
// Returns nil when every category is exhausted — a terminal state, not an
// error. Pure function of its inputs: the rng is injected and no selection
// state is cached here; persisting the pick is the caller's job.
func SelectChallenge(catalog []challenge.Challenge, targetCategory string, completedIDs map[uuid.UUID]struct{}, fallbackOrder []string, rng *rand.Rand) *Selection {
	if pick := pickFromCategory(catalog, targetCategory, completedIDs, rng); pick != nil {
		return &Selection{Challenge: *pick}
	}

	for _, category := range fallbackOrder {
		if category == targetCategory {
			continue
		}
		if pick := pickFromCategory(catalog, category, completedIDs, rng); pick != nil {
			return &Selection{
				Challenge:    *pick,
				Fallback:     true,
				FallbackFrom: targetCategory,
			}
		}
	}

	return nil
}

func pickFromCategory(catalog []challenge.Challenge, category string, completedIDs map[uuid.UUID]struct{}, rng *rand.Rand) *challenge.Challenge {
	var pool []challenge.Challenge
	for _, c := range catalog {
		if c.Category != category {
			continue
		}
		if _, done := completedIDs[c.ID]; done {
			continue
		}
		pool = append(pool, c)
	}

	if len(pool) == 0 {
		return nil
	}

	picked := pool[rng.Intn(len(pool))]
	return &picked
}
