package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"growthAPI/internal/badge"
	"growthAPI/internal/challenge"
	"growthAPI/internal/progress"
	"growthAPI/internal/progression"
	"growthAPI/internal/stats"
	"growthAPI/middleware"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrConflict signals an optimistic-concurrency miss on the progress row.
	ErrConflict = errors.New("progress version conflict")
	// ErrNoChallengesAvailable means every category is exhausted for this user.
	ErrNoChallengesAvailable = errors.New("no challenges available")
	// ErrAlreadyCompleted blocks re-completing a challenge the user already did.
	ErrAlreadyCompleted = errors.New("challenge already completed")
	// ErrInvalidInput covers malformed ids and out-of-range values.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	completionMaxAttempts = 3
	catalogTTL            = 5 * time.Minute
	catalogPageSize       = 500
	earlyBirdCutoffHour   = 9
)

type ChallengeService struct {
	db            *pgxpool.Pool
	engine        *progression.Engine
	notifications *NotificationService

	catalogMu        sync.RWMutex
	catalog          []challenge.Challenge
	catalogRefreshed time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewChallengeService(db *pgxpool.Pool, notifications *NotificationService) *ChallengeService {
	return &ChallengeService{
		db:            db,
		engine:        progression.NewEngine(progression.DefaultConfig()),
		notifications: notifications,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Catalog returns the active challenge catalog from an in-memory cache,
// reloading it from Postgres when stale.
func (s *ChallengeService) Catalog(ctx context.Context) ([]challenge.Challenge, error) {
	s.catalogMu.RLock()
	if s.catalog != nil && time.Since(s.catalogRefreshed) < catalogTTL {
		cached := s.catalog
		s.catalogMu.RUnlock()
		return cached, nil
	}
	s.catalogMu.RUnlock()

	return s.RefreshCatalog(ctx)
}

// RefreshCatalog reloads the catalog with a keyset-paginated scan so a
// large table never pins one long-running cursor.
func (s *ChallengeService) RefreshCatalog(ctx context.Context) ([]challenge.Challenge, error) {
	var all []challenge.Challenge
	lastID := uuid.Nil

	for {
		query := `
		SELECT id, category, title, description, xp_reward, is_active, created_at
		FROM challenges
		WHERE is_active = true AND id > $1
		ORDER BY id
		LIMIT $2
		`

		rows, err := s.db.Query(ctx, query, lastID, catalogPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load challenge catalog: %w", err)
		}

		count := 0
		for rows.Next() {
			var c challenge.Challenge
			err := rows.Scan(
				&c.ID,
				&c.Category,
				&c.Title,
				&c.Description,
				&c.XPReward,
				&c.IsActive,
				&c.CreatedAt,
			)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan challenge: %w", err)
			}
			all = append(all, c)
			lastID = c.ID
			count++
		}
		rows.Close()

		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating challenges: %w", err)
		}

		if count < catalogPageSize {
			break
		}
	}

	s.catalogMu.Lock()
	s.catalog = all
	s.catalogRefreshed = time.Now()
	s.catalogMu.Unlock()

	log.Printf("Challenge catalog refreshed: %d active challenges", len(all))
	return all, nil
}

func (s *ChallengeService) GetCurrentChallenge(ctx context.Context, clerkID string) (*challenge.Challenge, error) {
	var currentID *uuid.UUID
	query := `
	SELECT p.current_challenge_id
	FROM user_progress p
	JOIN users u ON u.id = p.user_id
	WHERE u.clerk_id = $1
	`
	err := s.db.QueryRow(ctx, query, clerkID).Scan(&currentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get current challenge: %w", err)
	}

	if currentID == nil {
		return nil, nil
	}

	return s.getChallenge(ctx, *currentID)
}

// AssignNextChallenge picks the user's next challenge in the requested
// category, falling back to other categories when the target is exhausted,
// and persists it as the current assignment. Returns
// ErrNoChallengesAvailable when the whole catalog is done.
func (s *ChallengeService) AssignNextChallenge(ctx context.Context, clerkID string, category string) (*challenge.AssignedChallenge, error) {
	if category == "" {
		return nil, fmt.Errorf("%w: category required", ErrInvalidInput)
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	completed, err := s.completedChallengeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	selection := s.selectChallenge(catalog, category, completed)
	if selection == nil {
		return nil, ErrNoChallengesAvailable
	}

	update := `
	UPDATE user_progress
	SET current_challenge_id = $2, updated_at = NOW()
	WHERE user_id = $1
	`
	if _, err = s.db.Exec(ctx, update, userID, selection.Challenge.ID); err != nil {
		return nil, fmt.Errorf("failed to persist assignment: %w", err)
	}

	ch := selection.Challenge
	return &challenge.AssignedChallenge{
		Challenge:    &ch,
		Fallback:     selection.Fallback,
		FallbackFrom: selection.FallbackFrom,
	}, nil
}

func (s *ChallengeService) selectChallenge(catalog []challenge.Challenge, category string, completed map[uuid.UUID]struct{}) *progression.Selection {
	fallbackOrder := categoriesOf(catalog)

	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return progression.SelectChallenge(catalog, category, completed, fallbackOrder, s.rng)
}

// categoriesOf returns the distinct catalog categories sorted, so the
// fallback walk is deterministic.
func categoriesOf(catalog []challenge.Challenge) []string {
	seen := make(map[string]struct{})
	var categories []string
	for _, c := range catalog {
		if _, ok := seen[c.Category]; ok {
			continue
		}
		seen[c.Category] = struct{}{}
		categories = append(categories, c.Category)
	}
	sort.Strings(categories)
	return categories
}

// CompleteChallenge runs the full completion flow: read state, run the
// pure progression engine, then persist the outcome in one transaction
// with a conditional UPDATE on the progress row's version. A version miss
// means another request landed first; state is re-read and the engine
// re-run, up to three attempts.
func (s *ChallengeService) CompleteChallenge(ctx context.Context, clerkID string, req *challenge.CompleteChallengeRequest, isExtra bool) (*progression.Result, error) {
	challengeID, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed challenge id", ErrInvalidInput)
	}

	var userID uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	ch, err := s.getChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	if !isExtra {
		var done bool
		err = s.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM challenge_completions WHERE user_id = $1 AND challenge_id = $2 AND is_extra = false)`,
			userID, challengeID,
		).Scan(&done)
		if err != nil {
			return nil, fmt.Errorf("failed to check prior completion: %w", err)
		}
		if done {
			return nil, ErrAlreadyCompleted
		}
	}

	badgeCatalog, err := s.badgeCatalog(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	for attempt := 1; attempt <= completionMaxAttempts; attempt++ {
		p, err := s.readProgress(ctx, userID)
		if err != nil {
			return nil, err
		}

		earned, err := s.earnedBadgeIDs(ctx, userID)
		if err != nil {
			return nil, err
		}

		snapshot, err := s.buildSnapshot(ctx, userID, now, req)
		if err != nil {
			return nil, err
		}

		result := s.engine.CompleteChallenge(*p, *ch, badgeCatalog, earned, snapshot, now, isExtra)

		err = s.persistCompletion(ctx, userID, ch, p, &result, req, now, isExtra)
		if errors.Is(err, ErrConflict) {
			middleware.CompletionConflicts.Inc()
			log.Printf("Completion conflict for user %s (attempt %d/%d)", userID, attempt, completionMaxAttempts)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.afterCompletion(userID, ch, &result, isExtra)
		return &result, nil
	}

	return nil, ErrConflict
}

func (s *ChallengeService) readProgress(ctx context.Context, userID uuid.UUID) (*progress.UserProgress, error) {
	query := `
	SELECT user_id, xp, level, streak, longest_streak, last_completion_date,
		   streak_freeze_tokens, total_challenges_completed, current_challenge_id,
		   version, created_at, updated_at
	FROM user_progress
	WHERE user_id = $1
	`

	p := &progress.UserProgress{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.XP,
		&p.Level,
		&p.Streak,
		&p.LongestStreak,
		&p.LastCompletionDate,
		&p.StreakFreezeTokens,
		&p.TotalChallengesCompleted,
		&p.CurrentChallengeID,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("progress not found")
		}
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}

	return p, nil
}

// persistCompletion writes the engine result atomically: the conditional
// progress UPDATE, the append-only completion record, and the optional
// feed post all commit or none do. Badge grants happen after commit.
func (s *ChallengeService) persistCompletion(ctx context.Context, userID uuid.UUID, ch *challenge.Challenge, p *progress.UserProgress, result *progression.Result, req *challenge.CompleteChallengeRequest, now time.Time, isExtra bool) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lastCompletion := p.LastCompletionDate
	if result.StreakDateUpdated {
		lastCompletion = &now
	}

	currentChallengeID := p.CurrentChallengeID
	if !isExtra && currentChallengeID != nil && *currentChallengeID == ch.ID {
		currentChallengeID = nil
	}

	update := `
	UPDATE user_progress
	SET xp = $2,
		level = $3,
		streak = $4,
		longest_streak = $5,
		last_completion_date = $6,
		streak_freeze_tokens = $7,
		total_challenges_completed = $8,
		current_challenge_id = $9,
		version = version + 1,
		updated_at = NOW()
	WHERE user_id = $1 AND version = $10
	`

	tag, err := tx.Exec(ctx, update,
		userID,
		result.NewXP,
		result.NewLevel,
		result.NewStreak,
		result.NewLongestStreak,
		lastCompletion,
		result.StreakFreezeTokens,
		result.TotalChallengesCompleted,
		currentChallengeID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	var reflectionText, photoURL *string
	if req.ReflectionText != "" {
		reflectionText = &req.ReflectionText
	}
	if req.PhotoURL != "" {
		photoURL = &req.PhotoURL
	}

	insertCompletion := `
	INSERT INTO challenge_completions (id, user_id, challenge_id, category, completed_at, reflection_text, photo_url, is_extra, xp_awarded)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, insertCompletion,
		uuid.New(),
		userID,
		ch.ID,
		ch.Category,
		now,
		reflectionText,
		photoURL,
		isExtra,
		result.XPAwarded,
	)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}

	if req.ShareToFeed && reflectionText != nil {
		insertPost := `
		INSERT INTO feed_posts (id, user_id, challenge_id, category, reflection_text, photo_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		_, err = tx.Exec(ctx, insertPost,
			uuid.New(),
			userID,
			ch.ID,
			ch.Category,
			*reflectionText,
			photoURL,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to share reflection: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit completion: %w", err)
	}

	return nil
}

// afterCompletion applies the side effects the completion transaction
// deliberately leaves out: badge grants, metrics and push notifications.
// None of these can undo the committed progress.
func (s *ChallengeService) afterCompletion(userID uuid.UUID, ch *challenge.Challenge, result *progression.Result, isExtra bool) {
	middleware.ChallengeCompletions.WithLabelValues(ch.Category, fmt.Sprintf("%t", isExtra)).Inc()
	if result.LeveledUp {
		middleware.LevelUps.Inc()
	}
	if result.FreezeUsed {
		middleware.FreezesConsumed.Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.grantBadges(ctx, userID, result.NewBadges)

	if s.notifications == nil {
		return
	}
	if result.LeveledUp {
		s.notifications.NotifyLevelUp(ctx, userID, result.NewLevel)
	}
	for _, b := range result.NewBadges {
		s.notifications.NotifyBadgeUnlocked(ctx, userID, b.Name)
	}
	if result.FreezeUsed {
		s.notifications.NotifyFreezeUsed(ctx, userID, result.NewStreak, result.StreakFreezeTokens)
	}
}

// grantBadges inserts the earned rows idempotently. A failed grant is
// retried in the background; the committed progress is never rolled back
// over a badge write.
func (s *ChallengeService) grantBadges(ctx context.Context, userID uuid.UUID, badges []badge.Badge) {
	for _, b := range badges {
		if err := s.grantBadge(ctx, userID, b.ID); err != nil {
			log.Printf("Badge grant failed for user %s badge %s: %v, scheduling retry", userID, b.ID, err)
			go s.retryBadgeGrant(userID, b.ID)
			continue
		}
		middleware.BadgesAwarded.Inc()
	}
}

func (s *ChallengeService) grantBadge(ctx context.Context, userID, badgeID uuid.UUID) error {
	query := `
	INSERT INTO user_badges (id, user_id, badge_id, earned_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (user_id, badge_id) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query, uuid.New(), userID, badgeID)
	return err
}

func (s *ChallengeService) retryBadgeGrant(userID, badgeID uuid.UUID) {
	for attempt := 1; attempt <= 3; attempt++ {
		time.Sleep(time.Duration(attempt) * 5 * time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.grantBadge(ctx, userID, badgeID)
		cancel()

		if err == nil {
			middleware.BadgesAwarded.Inc()
			log.Printf("Badge grant retry succeeded for user %s badge %s", userID, badgeID)
			return
		}
		log.Printf("Badge grant retry %d failed for user %s badge %s: %v", attempt, userID, badgeID, err)
	}
}

// buildSnapshot assembles the scalar counters the badge engine evaluates.
// The weekly/monthly/time-of-day counters, and the reflection/share counts
// when the request carries them, already include the completion happening
// at `now`; the engine itself never touches dates.
func (s *ChallengeService) buildSnapshot(ctx context.Context, userID uuid.UUID, now time.Time, req *challenge.CompleteChallengeRequest) (stats.Snapshot, error) {
	query := `
	SELECT
		(SELECT COUNT(*) FROM challenge_completions
			WHERE user_id = $1 AND reflection_text IS NOT NULL) AS reflections,
		(SELECT COUNT(*) FROM feed_posts WHERE user_id = $1) AS shares,
		(SELECT COUNT(*) FROM post_likes WHERE user_id = $1) AS likes_given,
		(SELECT COUNT(*) FROM post_likes pl
			JOIN feed_posts fp ON fp.id = pl.post_id
			WHERE fp.user_id = $1) AS likes_received,
		(SELECT COUNT(*) FROM post_comments WHERE user_id = $1) AS comments,
		(SELECT COUNT(*) FROM (
			SELECT c.category
			FROM challenges c
			WHERE c.is_active = true
			GROUP BY c.category
			HAVING COUNT(*) = COUNT(*) FILTER (
				WHERE c.id IN (SELECT challenge_id FROM challenge_completions WHERE user_id = $1)
			)
		) done_packs) AS packs_completed,
		(SELECT COUNT(*) FROM challenge_completions
			WHERE user_id = $1 AND EXTRACT(HOUR FROM completed_at AT TIME ZONE 'UTC') < $2) AS early_bird,
		(SELECT COUNT(*) FROM challenge_completions
			WHERE user_id = $1 AND completed_at >= DATE_TRUNC('week', $3::timestamptz)) AS this_week,
		(SELECT COUNT(*) FROM challenge_completions
			WHERE user_id = $1 AND completed_at >= DATE_TRUNC('month', $3::timestamptz)) AS this_month
	`

	var snap stats.Snapshot
	err := s.db.QueryRow(ctx, query, userID, earlyBirdCutoffHour, now).Scan(
		&snap.Reflections,
		&snap.Shares,
		&snap.LikesGiven,
		&snap.LikesReceived,
		&snap.Comments,
		&snap.PacksCompleted,
		&snap.EarlyBirdCompletions,
		&snap.CompletionsThisWeek,
		&snap.CompletionsThisMonth,
	)
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("failed to build stats snapshot: %w", err)
	}

	// Fold in the completion being processed right now.
	snap.CompletionsThisWeek++
	snap.CompletionsThisMonth++
	if now.Hour() < earlyBirdCutoffHour {
		snap.EarlyBirdCompletions++
	}
	if req.ReflectionText != "" {
		snap.Reflections++
		if req.ShareToFeed {
			snap.Shares++
		}
	}

	return snap, nil
}

func (s *ChallengeService) completedChallengeIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT challenge_id FROM challenge_completions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed challenges: %w", err)
	}
	defer rows.Close()

	completed := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan completion id: %w", err)
		}
		completed[id] = struct{}{}
	}

	return completed, rows.Err()
}

func (s *ChallengeService) earnedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := s.db.Query(ctx,
		`SELECT badge_id FROM user_badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load earned badges: %w", err)
	}
	defer rows.Close()

	earned := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan badge id: %w", err)
		}
		earned[id] = struct{}{}
	}

	return earned, rows.Err()
}

func (s *ChallengeService) badgeCatalog(ctx context.Context) ([]badge.Badge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, icon, criteria_type, target, created_at FROM badges`)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}
	defer rows.Close()

	var catalog []badge.Badge
	for rows.Next() {
		var b badge.Badge
		err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.CriteriaType, &b.Target, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		catalog = append(catalog, b)
	}

	return catalog, rows.Err()
}

func (s *ChallengeService) getChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range catalog {
		if catalog[i].ID == id {
			return &catalog[i], nil
		}
	}

	// Not in the cache; the challenge may have been deactivated since.
	query := `
	SELECT id, category, title, description, xp_reward, is_active, created_at
	FROM challenges
	WHERE id = $1
	`
	c := &challenge.Challenge{}
	err = s.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Category, &c.Title, &c.Description, &c.XPReward, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: challenge not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	return c, nil
}
