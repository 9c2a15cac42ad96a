package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthAPI/handlers"
	"growthAPI/internal/challenge"
	"growthAPI/services"
	"growthAPI/tests/helpers"
)

// TestFullChallengeFlow simulates the complete loop: sign up, get a
// challenge assigned, complete it, then complete a bonus challenge.
func TestFullChallengeFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)
	defer helpers.CleanupChallenges(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)
	webhookHandler := handlers.NewWebhookHandler(userService)

	os.Setenv("CLERK_WEBHOOK_SECRET", "")
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	category := fmt.Sprintf("testcat-%d", time.Now().UnixNano())

	// Step 1: User signs up via Clerk webhook
	t.Log("Step 1: User signs up")

	createPayload := helpers.MockClerkWebhookPayload("user.created", clerkID)
	req1 := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(createPayload))
	rr1 := httptest.NewRecorder()

	webhookHandler.HandleClerkWebhook(rr1, req1)
	require.Equal(t, http.StatusOK, rr1.Code, "Webhook should succeed")

	// Step 2: Seed challenges and warm the catalog
	t.Log("Step 2: Seed challenges")

	ctx := context.Background()
	firstID := helpers.SeedChallenge(t, pool, category, "First test challenge", 10)
	secondID := helpers.SeedChallenge(t, pool, category, "Second test challenge", 10)

	_, err := challengeService.RefreshCatalog(ctx)
	require.NoError(t, err)

	// Step 3: Assign a challenge from the seeded category
	t.Log("Step 3: Assign challenge")

	assigned, err := challengeService.AssignNextChallenge(ctx, clerkID, category)
	require.NoError(t, err)
	require.NotNil(t, assigned.Challenge)
	assert.Equal(t, category, assigned.Challenge.Category)
	assert.False(t, assigned.Fallback)

	current, err := challengeService.GetCurrentChallenge(ctx, clerkID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, assigned.Challenge.ID, current.ID)

	// Step 4: Complete the assigned challenge
	t.Log("Step 4: Complete challenge")

	result, err := challengeService.CompleteChallenge(ctx, clerkID, &challenge.CompleteChallengeRequest{
		ChallengeID:    assigned.Challenge.ID.String(),
		ReflectionText: "Felt good to get this done early.",
	}, false)
	require.NoError(t, err)

	assert.Equal(t, 10, result.XPAwarded)
	assert.Equal(t, 10, result.NewXP)
	assert.Equal(t, 1, result.NewStreak)
	assert.Equal(t, 1, result.TotalChallengesCompleted)
	assert.False(t, result.FreezeUsed)

	// Assignment is cleared on completion
	current, err = challengeService.GetCurrentChallenge(ctx, clerkID)
	require.NoError(t, err)
	assert.Nil(t, current)

	// Step 5: Repeating an already-completed challenge is rejected
	t.Log("Step 5: Duplicate completion rejected")

	_, err = challengeService.CompleteChallenge(ctx, clerkID, &challenge.CompleteChallengeRequest{
		ChallengeID: assigned.Challenge.ID.String(),
	}, false)
	assert.ErrorIs(t, err, services.ErrAlreadyCompleted)

	// Step 6: Complete a bonus challenge for reduced XP
	t.Log("Step 6: Complete extra challenge")

	extraID := firstID
	if assigned.Challenge.ID.String() == firstID {
		extraID = secondID
	}

	extraResult, err := challengeService.CompleteChallenge(ctx, clerkID, &challenge.CompleteChallengeRequest{
		ChallengeID: extraID,
	}, true)
	require.NoError(t, err)

	assert.Equal(t, 5, extraResult.XPAwarded, "Extra completions earn reduced XP")
	assert.Equal(t, 15, extraResult.NewXP)
	assert.Equal(t, 1, extraResult.NewStreak, "Extra completions do not advance the streak")
	assert.Equal(t, 1, extraResult.TotalChallengesCompleted, "Extra completions do not count toward the total")

	// Step 7: Progress reflects the XP from both completions but counts
	// only the primary one
	t.Log("Step 7: Verify progress")

	progress, err := userService.GetProgress(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, 15, progress.XP)
	assert.Equal(t, 1, progress.Level)
	assert.Equal(t, 1, progress.Streak)
	assert.Equal(t, 1, progress.TotalChallengesCompleted)
	require.NotNil(t, progress.LastCompletionDate)
}

// TestCompleteChallenge_ReflectionBadgesAwardedImmediately covers badges
// whose threshold is crossed by the completion being processed: the
// reflection and share counters must include the in-flight request, not
// trail it by one completion.
func TestCompleteChallenge_ReflectionBadgesAwardedImmediately(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)
	defer helpers.CleanupChallenges(t, pool)
	defer helpers.CleanupBadges(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)
	webhookHandler := handlers.NewWebhookHandler(userService)

	os.Setenv("CLERK_WEBHOOK_SECRET", "")
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	category := fmt.Sprintf("testcat-%d", time.Now().UnixNano())

	createPayload := helpers.MockClerkWebhookPayload("user.created", clerkID)
	rr := httptest.NewRecorder()
	webhookHandler.HandleClerkWebhook(rr, httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(createPayload)))
	require.Equal(t, http.StatusOK, rr.Code)

	ctx := context.Background()
	challengeID := helpers.SeedChallenge(t, pool, category, "Reflect on it", 10)
	reflectionBadgeID := helpers.SeedBadge(t, pool, "First reflection", "reflection_count", 1)
	shareBadgeID := helpers.SeedBadge(t, pool, "First share", "share_count", 1)

	_, err := challengeService.RefreshCatalog(ctx)
	require.NoError(t, err)

	result, err := challengeService.CompleteChallenge(ctx, clerkID, &challenge.CompleteChallengeRequest{
		ChallengeID:    challengeID,
		ReflectionText: "Wrote this down before finishing.",
		ShareToFeed:    true,
	}, false)
	require.NoError(t, err)

	awarded := make(map[string]bool)
	for _, b := range result.NewBadges {
		awarded[b.ID.String()] = true
	}
	assert.True(t, awarded[reflectionBadgeID], "Reflection badge should land on the completion that crosses its target")
	assert.True(t, awarded[shareBadgeID], "Share badge should land on the completion that crosses its target")
}

func TestAssignChallenge_FallbackCategory(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)
	defer helpers.CleanupChallenges(t, pool)

	userService := services.NewUserService(pool)
	challengeService := services.NewChallengeService(pool, nil)
	webhookHandler := handlers.NewWebhookHandler(userService)

	os.Setenv("CLERK_WEBHOOK_SECRET", "")
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	category := fmt.Sprintf("testcat-%d", time.Now().UnixNano())
	emptyCategory := category + "-empty"

	createPayload := helpers.MockClerkWebhookPayload("user.created", clerkID)
	rr := httptest.NewRecorder()
	webhookHandler.HandleClerkWebhook(rr, httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(createPayload)))
	require.Equal(t, http.StatusOK, rr.Code)

	ctx := context.Background()
	helpers.SeedChallenge(t, pool, category, "Fallback target", 10)

	_, err := challengeService.RefreshCatalog(ctx)
	require.NoError(t, err)

	// Requesting a category with no challenges falls back to another one.
	assigned, err := challengeService.AssignNextChallenge(ctx, clerkID, emptyCategory)
	require.NoError(t, err)
	require.NotNil(t, assigned.Challenge)
	assert.True(t, assigned.Fallback)
	assert.Equal(t, emptyCategory, assigned.FallbackFrom)

	// An empty category is an input error.
	_, err = challengeService.AssignNextChallenge(ctx, clerkID, "")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}
