package helpers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SetupTestDB creates a test database connection, skipping the test when
// no database is configured.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL must be set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	return pool
}

// CleanupTestDB cleans up test data
func CleanupTestDB(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM users WHERE email LIKE 'test%@example.com'")
	if err != nil {
		t.Logf("Warning: failed to cleanup test data: %v", err)
	}
	pool.Close()
}

// GenerateMockClerkJWT generates a mock JWT token for testing
func GenerateMockClerkJWT(clerkID string) (string, error) {
	secretKey := []byte("test-secret-key-for-testing-only")

	claims := jwt.MapClaims{
		"sub": clerkID,
		"iss": "https://clerk.test",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour * 24).Unix(),
		"azp": "test-app-id",
		"sid": "sess_test123",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// MockClerkWebhookPayload creates a mock webhook payload
func MockClerkWebhookPayload(eventType string, clerkID string) []byte {
	payload := ""

	switch eventType {
	case "user.created":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"first_name": "Test",
				"last_name": "User",
				"email_addresses": [{
					"id": "email_123",
					"email_address": "test.user@example.com",
					"verification": {"status": "verified"}
				}],
				"primary_email_address_id": "email_123",
				"username": "testuser",
				"image_url": "https://example.com/image.jpg",
				"profile_image_url": "https://example.com/image.jpg"
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)

	case "user.updated":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"first_name": "Updated",
				"last_name": "User",
				"email_addresses": [{
					"id": "email_123",
					"email_address": "test.user@example.com",
					"verification": {"status": "verified"}
				}],
				"username": "updateduser",
				"image_url": "https://example.com/new-image.jpg"
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)

	case "user.deleted":
		payload = fmt.Sprintf(`{
			"data": {
				"id": "%s",
				"deleted": true
			},
			"object": "event",
			"type": "%s"
		}`, clerkID, eventType)
	}

	return []byte(payload)
}

// SeedChallenge inserts a test challenge and returns its id.
func SeedChallenge(t *testing.T, pool *pgxpool.Pool, category, title string, xpReward int) string {
	ctx := context.Background()

	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO challenges (id, category, title, description, xp_reward, is_active, created_at)
		VALUES (gen_random_uuid(), $1, $2, 'seeded for tests', $3, true, NOW())
		RETURNING id
	`, category, title, xpReward).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed challenge: %v", err)
	}

	return id
}

// SeedBadge inserts a test badge and returns its id.
func SeedBadge(t *testing.T, pool *pgxpool.Pool, name, criteriaType string, target int) string {
	ctx := context.Background()

	var id string
	err := pool.QueryRow(ctx, `
		INSERT INTO badges (id, name, description, icon, criteria_type, target, created_at)
		VALUES (gen_random_uuid(), $1, 'seeded for tests', 'star', $2, $3, NOW())
		RETURNING id
	`, name, criteriaType, target).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to seed badge: %v", err)
	}

	return id
}

// CleanupBadges removes badges seeded by tests.
func CleanupBadges(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM badges WHERE description = 'seeded for tests'")
	if err != nil {
		t.Logf("Warning: failed to cleanup seeded badges: %v", err)
	}
}

// CleanupChallenges removes challenges seeded by tests.
func CleanupChallenges(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM challenges WHERE description = 'seeded for tests'")
	if err != nil {
		t.Logf("Warning: failed to cleanup seeded challenges: %v", err)
	}
}
