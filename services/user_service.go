package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"growthAPI/internal/badge"
	"growthAPI/internal/calendar"
	"growthAPI/internal/leaderboard"
	"growthAPI/internal/progress"
	"growthAPI/internal/stats"
	"growthAPI/internal/user"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

// CreateUser inserts the user row and seeds the progress row in one
// transaction. New accounts start at level 1 with a single freeze token.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	user := &user.User{
		ID:        uuid.New().String(),
		ClerkID:   req.ClerkID,
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at
	`

	err = tx.QueryRow(
		ctx,
		query,
		user.ID,
		user.ClerkID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.ImageURL,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(
		&user.ID,
		&user.ClerkID,
		&user.Email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.ImageURL,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	progressQuery := `
	INSERT INTO user_progress (user_id, xp, level, streak, longest_streak, streak_freeze_tokens, total_challenges_completed, version, created_at, updated_at)
	VALUES ($1, 0, 1, 0, 0, 1, 0, 0, NOW(), NOW())
	`
	if _, err = tx.Exec(ctx, progressQuery, user.ID); err != nil {
		return nil, fmt.Errorf("failed to seed user progress: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `
	SELECT id, clerk_id, email, username, first_name, last_name, image_url, email_verified, growth_area, gems, created_at, updated_at
	FROM users
	WHERE clerk_id = $1
	`

	user := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID).Scan(
		&user.ID,
		&user.ClerkID,
		&user.Email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.ImageURL,
		&user.EmailVerified,
		&user.GrowthArea,
		&user.Gems,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := `
	UPDATE users
	SET
		username = COALESCE(NULLIF($2, ''), username),
		first_name = COALESCE(NULLIF($3, ''), first_name),
		last_name = COALESCE(NULLIF($4, ''), last_name),
		image_url = COALESCE(NULLIF($5, ''), image_url),
		growth_area = COALESCE(NULLIF($6, ''), growth_area),
		updated_at = NOW()
	WHERE clerk_id = $1
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, email_verified, growth_area, gems, created_at, updated_at
	`

	user := &user.User{}
	err := s.db.QueryRow(
		ctx,
		query,
		clerkID,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
		req.GrowthArea,
	).Scan(
		&user.ID,
		&user.ClerkID,
		&user.Email,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.ImageURL,
		&user.EmailVerified,
		&user.GrowthArea,
		&user.Gems,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	query := `DELETE FROM users WHERE clerk_id = $1`

	result, err := s.db.Exec(ctx, query, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	query := `
	UPDATE users
	SET email_verified = $2, updated_at = NOW()
	WHERE clerk_id = $1
	`

	_, err := s.db.Exec(ctx, query, clerkID, verified)
	return err
}

func (s *UserService) GetProgress(ctx context.Context, clerkID string) (*progress.UserProgress, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	query := `
	SELECT user_id, xp, level, streak, longest_streak, last_completion_date,
		   streak_freeze_tokens, total_challenges_completed, current_challenge_id,
		   version, created_at, updated_at
	FROM user_progress
	WHERE user_id = $1
	`

	p := &progress.UserProgress{}
	err = s.db.QueryRow(ctx, query, userID).Scan(
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
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return p, nil
}

func (s *UserService) GetFriends(ctx context.Context, clerkID string) ([]*user.User, error) {
	query := `
    SELECT DISTINCT
        u.id,
        u.clerk_id,
        u.email,
        u.username,
        u.first_name,
        u.last_name,
        u.image_url,
        u.email_verified,
        u.created_at,
        u.updated_at
    FROM users u
    INNER JOIN friendships f ON (
        (f.user_id = u.id AND f.friend_id = (SELECT id FROM users WHERE clerk_id = $1))
        OR
        (f.friend_id = u.id AND f.user_id = (SELECT id FROM users WHERE clerk_id = $1))
    )
    WHERE f.status = 'accepted'
    AND u.clerk_id != $1
    ORDER BY u.username
    `

	rows, err := s.db.Query(ctx, query, clerkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []*user.User
	for rows.Next() {
		var u user.User
		err := rows.Scan(
			&u.ID,
			&u.ClerkID,
			&u.Email,
			&u.Username,
			&u.FirstName,
			&u.LastName,
			&u.ImageURL,
			&u.EmailVerified,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		friends = append(friends, &u)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return friends, nil
}

func (s *UserService) AddFriend(ctx context.Context, clerkID string, friendClerkID string) error {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		log.Printf("AddFriend: Failed to find user with clerk_id %s: %v", clerkID, err)
		return fmt.Errorf("user not found")
	}

	var friendID uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, friendClerkID).Scan(&friendID)
	if err != nil {
		log.Printf("AddFriend: Failed to find friend with clerk_id %s: %v", friendClerkID, err)
		return fmt.Errorf("friend user not found")
	}

	if userID == friendID {
		return fmt.Errorf("cannot add yourself as a friend")
	}

	var exists bool
	checkQuery := `
		SELECT EXISTS(
			SELECT 1 FROM friendships
			WHERE (user_id = $1 AND friend_id = $2)
			   OR (user_id = $2 AND friend_id = $1)
		)
	`
	err = s.db.QueryRow(ctx, checkQuery, userID, friendID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existing friendship")
	}

	if exists {
		return fmt.Errorf("friendship already exists")
	}

	insertQuery := `
		INSERT INTO friendships (user_id, friend_id, status, created_at)
		VALUES ($1, $2, 'accepted', NOW())
	`

	_, err = s.db.Exec(ctx, insertQuery, userID, friendID)
	if err != nil {
		log.Printf("AddFriend: Failed to insert friendship: %v", err)
		return fmt.Errorf("failed to create friendship")
	}

	return nil
}

func (s *UserService) RemoveFriend(ctx context.Context, clerkID string, friendClerkID string) error {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("user not found")
	}

	var friendID uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, friendClerkID).Scan(&friendID)
	if err != nil {
		return fmt.Errorf("friend user not found")
	}

	deleteQuery := `
		DELETE FROM friendships
		WHERE (user_id = $1 AND friend_id = $2)
		   OR (user_id = $2 AND friend_id = $1)
	`

	result, err := s.db.Exec(ctx, deleteQuery, userID, friendID)
	if err != nil {
		return fmt.Errorf("failed to remove friendship")
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("friendship not found")
	}

	return nil
}

func (s *UserService) GetBadges(ctx context.Context, clerkID string) ([]*badge.BadgeWithStatus, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	query := `
	SELECT
		b.id,
		b.name,
		b.description,
		b.icon,
		b.criteria_type,
		b.target,
		b.created_at,
		CASE WHEN ub.id IS NOT NULL THEN true ELSE false END as earned,
		ub.earned_at
	FROM badges b
	LEFT JOIN user_badges ub ON b.id = ub.badge_id AND ub.user_id = $1
	ORDER BY earned DESC, b.target ASC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.BadgeWithStatus

	for rows.Next() {
		b := &badge.BadgeWithStatus{}
		err := rows.Scan(
			&b.ID,
			&b.Name,
			&b.Description,
			&b.Icon,
			&b.CriteriaType,
			&b.Target,
			&b.CreatedAt,
			&b.Earned,
			&b.EarnedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}

		badges = append(badges, b)
	}

	return badges, nil
}

func (s *UserService) GetGlobalLeaderboard(ctx context.Context, clerkID string) (*leaderboard.Leaderboard, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	query := `
	SELECT
		u.id AS user_id,
		u.username,
		u.image_url,
		COALESCE(p.xp, 0) AS xp,
		COALESCE(p.level, 1) AS level,
		RANK() OVER (ORDER BY COALESCE(p.xp, 0) DESC, COALESCE(p.streak, 0) DESC) AS rank,
		COALESCE(p.streak, 0) AS current_streak
	FROM users u
	LEFT JOIN user_progress p ON u.id = p.user_id
	ORDER BY xp DESC, current_streak DESC
	LIMIT 50
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.LeaderboardEntry
	var userPosition *leaderboard.LeaderboardEntry

	for rows.Next() {
		entry := &leaderboard.LeaderboardEntry{}
		err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.ImageURL,
			&entry.XP,
			&entry.Level,
			&entry.Rank,
			&entry.CurrentStreak,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entries = append(entries, entry)

		if entry.UserID == userID {
			userPosition = entry
		}
	}

	return &leaderboard.Leaderboard{
		Entries:      entries,
		UserPosition: userPosition,
		TotalUsers:   len(entries),
	}, nil
}

func (s *UserService) GetFriendsLeaderboard(ctx context.Context, clerkID string) (*leaderboard.Leaderboard, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	query := `
	SELECT
		u.id AS user_id,
		u.username,
		u.image_url,
		COALESCE(p.xp, 0) AS xp,
		COALESCE(p.level, 1) AS level,
		RANK() OVER (ORDER BY COALESCE(p.xp, 0) DESC, COALESCE(p.streak, 0) DESC) AS rank,
		COALESCE(p.streak, 0) AS current_streak
	FROM users u
	LEFT JOIN user_progress p ON u.id = p.user_id
	WHERE u.id = $1
	   OR u.id IN (
			SELECT friend_id FROM friendships WHERE user_id = $1 AND status = 'accepted'
			UNION
			SELECT user_id FROM friendships WHERE friend_id = $1 AND status = 'accepted'
	   )
	ORDER BY xp DESC, current_streak DESC
	LIMIT 50
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.LeaderboardEntry
	var userPosition *leaderboard.LeaderboardEntry

	for rows.Next() {
		entry := &leaderboard.LeaderboardEntry{}
		err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.ImageURL,
			&entry.XP,
			&entry.Level,
			&entry.Rank,
			&entry.CurrentStreak,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entries = append(entries, entry)

		if entry.UserID == userID {
			userPosition = entry
		}
	}

	return &leaderboard.Leaderboard{
		Entries:      entries,
		UserPosition: userPosition,
		TotalUsers:   len(entries),
	}, nil
}

func (s *UserService) GetCalendar(ctx context.Context, clerkID string, year int, month int) (*calendar.CalendarResponse, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	startDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	endDate := startDate.AddDate(0, 1, -1)

	query := `
	SELECT completed_at::date, MIN(category)
	FROM challenge_completions
	WHERE user_id = $1
		AND completed_at >= $2
		AND completed_at < $3 + INTERVAL '1 day'
	GROUP BY completed_at::date
	ORDER BY completed_at::date
	`

	rows, err := s.db.Query(ctx, query, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	defer rows.Close()

	dayMap := make(map[string]string)
	for rows.Next() {
		var date time.Time
		var category string
		if err := rows.Scan(&date, &category); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		dayMap[date.Format("2006-01-02")] = category
	}

	var days []*calendar.CalendarDay
	today := time.Now().UTC().Format("2006-01-02")

	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format("2006-01-02")
		day := &calendar.CalendarDay{
			Date:    d,
			IsToday: dateStr == today,
		}
		if category, ok := dayMap[dateStr]; ok {
			day.Completed = true
			day.Category = &category
		}
		days = append(days, day)
	}

	return &calendar.CalendarResponse{
		Year:  year,
		Month: month,
		Days:  days,
	}, nil
}

func (s *UserService) GetUserStats(ctx context.Context, clerkID string) (*stats.UserStats, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	query := `
	SELECT
		EXISTS(
			SELECT 1 FROM challenge_completions
			WHERE user_id = $1 AND completed_at::date = CURRENT_DATE
		) AS today_completed,
		(SELECT COALESCE(COUNT(DISTINCT completed_at::date), 0) FROM challenge_completions
			WHERE user_id = $1 AND completed_at >= DATE_TRUNC('week', CURRENT_DATE)) AS days_this_week,
		(SELECT COALESCE(COUNT(DISTINCT completed_at::date), 0) FROM challenge_completions
			WHERE user_id = $1 AND completed_at >= DATE_TRUNC('month', CURRENT_DATE)) AS days_this_month,
		(SELECT COALESCE(COUNT(DISTINCT completed_at::date), 0) FROM challenge_completions
			WHERE user_id = $1 AND completed_at >= DATE_TRUNC('year', CURRENT_DATE)) AS days_this_year,
		COALESCE(p.total_challenges_completed, 0) AS total_completions,
		COALESCE(p.streak, 0) AS current_streak,
		COALESCE(p.longest_streak, 0) AS longest_streak,
		COALESCE(p.xp, 0) AS xp,
		COALESCE(p.level, 1) AS level,
		(SELECT COUNT(*) FROM user_badges WHERE user_id = $1) AS badges_count,
		(SELECT COUNT(*) FROM friendships f
			WHERE (f.user_id = $1 OR f.friend_id = $1) AND f.status = 'accepted') AS friends_count
	FROM user_progress p
	WHERE p.user_id = $1
	`

	stats := &stats.UserStats{}
	err = s.db.QueryRow(ctx, query, userID).Scan(
		&stats.TodayCompleted,
		&stats.DaysThisWeek,
		&stats.DaysThisMonth,
		&stats.DaysThisYear,
		&stats.TotalCompletions,
		&stats.CurrentStreak,
		&stats.LongestStreak,
		&stats.XP,
		&stats.Level,
		&stats.BadgesCount,
		&stats.FriendsCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	// Engagement score: streak^2*0.3 + totalCompletions*0.05 + badges*1
	stats.EngagementScore = float64(stats.CurrentStreak*stats.CurrentStreak)*0.3 +
		(float64(stats.TotalCompletions) * 0.05) +
		(float64(stats.BadgesCount) * 1)

	rankQuery := `
	WITH ranked_users AS (
		SELECT
			user_id,
			RANK() OVER (ORDER BY xp DESC, streak DESC) AS rank
		FROM user_progress
	)
	SELECT rank
	FROM ranked_users
	WHERE user_id = $1
	`

	err = s.db.QueryRow(ctx, rankQuery, userID).Scan(&stats.Rank)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate rank: %w", err)
	}

	return stats, nil
}

type FeedPost struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Username       string    `json:"username"`
	UserImageURL   *string   `json:"user_image_url"`
	Category       string    `json:"category"`
	ChallengeTitle string    `json:"challenge_title"`
	ReflectionText string    `json:"reflection_text"`
	PhotoURL       *string   `json:"photo_url"`
	LikeCount      int       `json:"like_count"`
	CommentCount   int       `json:"comment_count"`
	LikedByMe      bool      `json:"liked_by_me"`
	SourceType     string    `json:"source_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// GetReflectionFeed blends friend posts with recent posts from everyone
// else, friends first, capped at 50.
func (s *UserService) GetReflectionFeed(ctx context.Context, clerkID string) ([]FeedPost, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	query := `
	WITH friend_posts AS (
		SELECT
			fp.id,
			fp.user_id,
			u.username,
			u.image_url AS user_image_url,
			fp.category,
			c.title AS challenge_title,
			fp.reflection_text,
			fp.photo_url,
			fp.created_at,
			'friend' AS source_type
		FROM feed_posts fp
		JOIN users u ON u.id = fp.user_id
		JOIN challenges c ON c.id = fp.challenge_id
		WHERE fp.user_id != $1
			AND fp.created_at >= NOW() - INTERVAL '5 days'
			AND fp.user_id IN (
				SELECT friend_id FROM friendships
				WHERE user_id = $1 AND status = 'accepted'
				UNION
				SELECT user_id FROM friendships
				WHERE friend_id = $1 AND status = 'accepted'
			)
		ORDER BY fp.created_at DESC
		LIMIT 30
	),
	friend_count AS (
		SELECT COUNT(*) as cnt FROM friend_posts
	),
	other_posts AS (
		SELECT
			fp.id,
			fp.user_id,
			u.username,
			u.image_url AS user_image_url,
			fp.category,
			c.title AS challenge_title,
			fp.reflection_text,
			fp.photo_url,
			fp.created_at,
			'other' AS source_type
		FROM feed_posts fp
		JOIN users u ON u.id = fp.user_id
		JOIN challenges c ON c.id = fp.challenge_id
		WHERE fp.user_id != $1
			AND fp.created_at >= NOW() - INTERVAL '5 days'
			AND fp.user_id NOT IN (
				SELECT friend_id FROM friendships
				WHERE user_id = $1 AND status = 'accepted'
				UNION
				SELECT user_id FROM friendships
				WHERE friend_id = $1 AND status = 'accepted'
			)
		ORDER BY fp.created_at DESC
		LIMIT GREATEST(20, 50 - (SELECT cnt FROM friend_count))
	)
	SELECT
		combined.id,
		combined.user_id,
		combined.username,
		combined.user_image_url,
		combined.category,
		combined.challenge_title,
		combined.reflection_text,
		combined.photo_url,
		(SELECT COUNT(*) FROM post_likes pl WHERE pl.post_id = combined.id) AS like_count,
		(SELECT COUNT(*) FROM post_comments pc WHERE pc.post_id = combined.id) AS comment_count,
		EXISTS(SELECT 1 FROM post_likes pl WHERE pl.post_id = combined.id AND pl.user_id = $1) AS liked_by_me,
		combined.source_type,
		combined.created_at
	FROM (
		SELECT * FROM friend_posts
		UNION ALL
		SELECT * FROM other_posts
	) AS combined
	ORDER BY created_at DESC
	LIMIT 50
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	defer rows.Close()

	var posts []FeedPost
	for rows.Next() {
		var post FeedPost
		err := rows.Scan(
			&post.ID,
			&post.UserID,
			&post.Username,
			&post.UserImageURL,
			&post.Category,
			&post.ChallengeTitle,
			&post.ReflectionText,
			&post.PhotoURL,
			&post.LikeCount,
			&post.CommentCount,
			&post.LikedByMe,
			&post.SourceType,
			&post.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}

		posts = append(posts, post)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	if posts == nil {
		posts = []FeedPost{}
	}

	return posts, nil
}

// LikeFeedPost is idempotent: liking a post twice leaves a single like.
func (s *UserService) LikeFeedPost(ctx context.Context, clerkID string, postID string) error {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	postUUID, err := uuid.Parse(postID)
	if err != nil {
		return fmt.Errorf("invalid post id")
	}

	query := `
	INSERT INTO post_likes (user_id, post_id, created_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (user_id, post_id) DO NOTHING
	`

	if _, err = s.db.Exec(ctx, query, userID, postUUID); err != nil {
		return fmt.Errorf("failed to like post: %w", err)
	}

	return nil
}

func (s *UserService) UnlikeFeedPost(ctx context.Context, clerkID string, postID string) error {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	postUUID, err := uuid.Parse(postID)
	if err != nil {
		return fmt.Errorf("invalid post id")
	}

	query := `DELETE FROM post_likes WHERE user_id = $1 AND post_id = $2`

	if _, err = s.db.Exec(ctx, query, userID, postUUID); err != nil {
		return fmt.Errorf("failed to unlike post: %w", err)
	}

	return nil
}

func (s *UserService) CommentFeedPost(ctx context.Context, clerkID string, postID string, text string) error {
	if text == "" {
		return fmt.Errorf("comment text required")
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_id = $1", clerkID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	postUUID, err := uuid.Parse(postID)
	if err != nil {
		return fmt.Errorf("invalid post id")
	}

	query := `
	INSERT INTO post_comments (id, user_id, post_id, comment_text, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err = s.db.Exec(ctx, query, uuid.New(), userID, postUUID, text); err != nil {
		return fmt.Errorf("failed to comment on post: %w", err)
	}

	return nil
}
