package progression

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"growthAPI/internal/challenge"
)

func testCatalog() []challenge.Challenge {
	mk := func(category, title string) challenge.Challenge {
		return challenge.Challenge{ID: uuid.New(), Category: category, Title: title}
	}
	return []challenge.Challenge{
		mk("Confidence", "Speak up once in a meeting"),
		mk("Confidence", "Give a stranger a compliment"),
		mk("Confidence", "Record a one-minute video of yourself"),
		mk("Mindfulness", "Five minutes of unguided breathing"),
		mk("Discipline", "No phone for the first hour of the day"),
	}
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestSelectChallengeFromTargetCategory(t *testing.T) {
	catalog := testCatalog()

	sel := SelectChallenge(catalog, "Mindfulness", nil, []string{"Confidence"}, testRNG())
	if sel == nil {
		t.Fatal("expected a selection")
	}
	if sel.Challenge.Category != "Mindfulness" {
		t.Errorf("category = %q, want Mindfulness", sel.Challenge.Category)
	}
	if sel.Fallback {
		t.Error("selection from target category must not be flagged as fallback")
	}
}

func TestSelectChallengeRespectsExclusion(t *testing.T) {
	catalog := testCatalog()

	completed := make(map[uuid.UUID]struct{})
	// Complete all but one Confidence challenge; the pick must be the survivor.
	var survivor uuid.UUID
	for i, c := range catalog {
		if c.Category != "Confidence" {
			continue
		}
		if i == 2 {
			survivor = c.ID
			continue
		}
		completed[c.ID] = struct{}{}
	}

	for i := 0; i < 20; i++ {
		sel := SelectChallenge(catalog, "Confidence", completed, nil, testRNG())
		if sel == nil {
			t.Fatal("expected a selection")
		}
		if sel.Challenge.ID != survivor {
			t.Fatalf("picked completed challenge %s", sel.Challenge.ID)
		}
	}
}

func TestSelectChallengeFallsBack(t *testing.T) {
	catalog := testCatalog()

	// Exhaust Mindfulness entirely.
	completed := make(map[uuid.UUID]struct{})
	for _, c := range catalog {
		if c.Category == "Mindfulness" {
			completed[c.ID] = struct{}{}
		}
	}

	sel := SelectChallenge(catalog, "Mindfulness", completed, []string{"Mindfulness", "Confidence", "Discipline"}, testRNG())
	if sel == nil {
		t.Fatal("expected a fallback selection")
	}
	if !sel.Fallback {
		t.Error("expected Fallback flag")
	}
	if sel.FallbackFrom != "Mindfulness" {
		t.Errorf("FallbackFrom = %q, want Mindfulness", sel.FallbackFrom)
	}
	if sel.Challenge.Category != "Confidence" {
		t.Errorf("category = %q, want first non-empty fallback Confidence", sel.Challenge.Category)
	}
}

func TestSelectChallengeExhaustedEverywhere(t *testing.T) {
	catalog := testCatalog()

	completed := make(map[uuid.UUID]struct{})
	for _, c := range catalog {
		completed[c.ID] = struct{}{}
	}

	sel := SelectChallenge(catalog, "Confidence", completed, []string{"Mindfulness", "Discipline"}, testRNG())
	if sel != nil {
		t.Fatalf("expected nil on full exhaustion, got %+v", sel)
	}
}

func TestSelectChallengeUnknownCategoryUsesFallback(t *testing.T) {
	catalog := testCatalog()

	sel := SelectChallenge(catalog, "Gratitude", nil, []string{"Discipline"}, testRNG())
	if sel == nil {
		t.Fatal("expected a selection via fallback")
	}
	if !sel.Fallback || sel.Challenge.Category != "Discipline" {
		t.Errorf("got %+v, want Discipline fallback", sel)
	}
}
