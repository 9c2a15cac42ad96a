package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"growthAPI/internal/notification"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notificationTTL = 7 * 24 * time.Hour

type NotificationService struct {
	db         *pgxpool.Pool
	dispatcher *NotificationDispatcher
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	service := &NotificationService{
		db: db,
	}

	service.dispatcher = NewNotificationDispatcher(service)

	return service
}

func (s *NotificationService) Dispatcher() *NotificationDispatcher {
	return s.dispatcher
}

// CreateNotification persists the notification and hands it to the
// dispatcher unless it is scheduled for later. A type the user disabled
// is silently skipped.
func (s *NotificationService) CreateNotification(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error) {
	prefs, err := s.GetUserPreferencesByUUID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	if enabled, ok := prefs.EnabledTypes[string(req.Type)]; ok && !enabled {
		log.Printf("Notification type %s disabled for user %s", req.Type, req.UserID)
		return nil, nil
	}

	priority := req.Priority
	if priority == "" {
		priority = notification.PriorityNormal
	}

	expiresAt := time.Now().Add(notificationTTL)
	dataJSON, _ := json.Marshal(req.Data)

	query := `
		INSERT INTO notifications (
			id, user_id, type, priority, status, title, body, data,
			scheduled_for, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10)
		RETURNING id, user_id, type, priority, status, title, body,
				  scheduled_for, retry_count, created_at, expires_at
	`

	notif := &notification.Notification{Data: req.Data}
	err = s.db.QueryRow(
		ctx, query,
		uuid.New(), req.UserID, req.Type, priority, notification.StatusPending,
		req.Title, req.Body, dataJSON, req.ScheduledFor, expiresAt,
	).Scan(
		&notif.ID, &notif.UserID, &notif.Type, &notif.Priority, &notif.Status,
		&notif.Title, &notif.Body, &notif.ScheduledFor, &notif.RetryCount,
		&notif.CreatedAt, &notif.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if req.ScheduledFor == nil {
		s.dispatcher.DispatchNotification(ctx, notif, prefs)
	}

	return notif, nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, clerkID string, page, pageSize int) (*notification.NotificationListResponse, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := `
		SELECT id, user_id, type, priority, status, title, body, data,
			   scheduled_for, sent_at, read_at, retry_count, created_at, expires_at
		FROM notifications
		WHERE user_id = $1
		  AND status IN ('sent', 'read')
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*notification.Notification
	for rows.Next() {
		notif := &notification.Notification{}
		var dataStr []byte

		err := rows.Scan(
			&notif.ID, &notif.UserID, &notif.Type, &notif.Priority, &notif.Status,
			&notif.Title, &notif.Body, &dataStr, &notif.ScheduledFor, &notif.SentAt,
			&notif.ReadAt, &notif.RetryCount, &notif.CreatedAt, &notif.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		json.Unmarshal(dataStr, &notif.Data)
		notifications = append(notifications, notif)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	var unread, total int
	countQuery := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*)
		FROM notifications
		WHERE user_id = $1 AND status IN ('sent', 'read')
	`
	if err = s.db.QueryRow(ctx, countQuery, userID).Scan(&unread, &total); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	if notifications == nil {
		notifications = []*notification.Notification{}
	}

	return &notification.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
		TotalCount:    total,
		Page:          page,
		PageSize:      pageSize,
	}, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, clerkID string, notificationID string) error {
	notifUUID, err := uuid.Parse(notificationID)
	if err != nil {
		return fmt.Errorf("invalid notification id")
	}

	query := `
		UPDATE notifications
		SET status = 'read', read_at = NOW()
		WHERE id = $1
		  AND user_id = (SELECT id FROM users WHERE clerk_id = $2)
	`

	result, err := s.db.Exec(ctx, query, notifUUID, clerkID)
	if err != nil {
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found")
	}

	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, clerkID string) error {
	query := `
		UPDATE notifications
		SET status = 'read', read_at = NOW()
		WHERE user_id = (SELECT id FROM users WHERE clerk_id = $1)
		  AND status = 'sent'
	`

	_, err := s.db.Exec(ctx, query, clerkID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications as read: %w", err)
	}

	return nil
}

func (s *NotificationService) GetUserPreferences(ctx context.Context, clerkID string) (*notification.NotificationPreferences, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return s.GetUserPreferencesByUUID(ctx, userID)
}

// GetUserPreferencesByUUID returns the stored preferences, creating the
// default row on first use, with the user's device tokens attached.
func (s *NotificationService) GetUserPreferencesByUUID(ctx context.Context, userID uuid.UUID) (*notification.NotificationPreferences, error) {
	prefs := &notification.NotificationPreferences{UserID: userID}
	var enabledJSON []byte

	query := `
		SELECT push_enabled, in_app_enabled, enabled_types
		FROM notification_preferences
		WHERE user_id = $1
	`
	err := s.db.QueryRow(ctx, query, userID).Scan(&prefs.PushEnabled, &prefs.InAppEnabled, &enabledJSON)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to get preferences: %w", err)
		}
		prefs, err = s.createDefaultPreferences(ctx, userID)
		if err != nil {
			return nil, err
		}
	} else {
		json.Unmarshal(enabledJSON, &prefs.EnabledTypes)
	}

	tokens, err := s.deviceTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs.DeviceTokens = tokens

	return prefs, nil
}

func (s *NotificationService) createDefaultPreferences(ctx context.Context, userID uuid.UUID) (*notification.NotificationPreferences, error) {
	query := `
		INSERT INTO notification_preferences (user_id, push_enabled, in_app_enabled, enabled_types)
		VALUES ($1, true, true, '{}')
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		return nil, fmt.Errorf("failed to create preferences: %w", err)
	}

	return &notification.NotificationPreferences{
		UserID:       userID,
		PushEnabled:  true,
		InAppEnabled: true,
		EnabledTypes: map[string]bool{},
	}, nil
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, clerkID string, req *notification.UpdatePreferencesRequest) (*notification.NotificationPreferences, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	// Make sure the row exists before the partial update.
	if _, err = s.createDefaultPreferences(ctx, userID); err != nil {
		return nil, err
	}

	var enabledJSON any
	if req.EnabledTypes != nil {
		enabledJSON, _ = json.Marshal(req.EnabledTypes)
	}

	query := `
		UPDATE notification_preferences
		SET push_enabled = COALESCE($2, push_enabled),
			in_app_enabled = COALESCE($3, in_app_enabled),
			enabled_types = COALESCE($4, enabled_types)
		WHERE user_id = $1
	`
	if _, err = s.db.Exec(ctx, query, userID, req.PushEnabled, req.InAppEnabled, enabledJSON); err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	return s.GetUserPreferencesByUUID(ctx, userID)
}

func (s *NotificationService) RegisterDevice(ctx context.Context, clerkID string, req *notification.RegisterDeviceRequest) error {
	if req.Token == "" {
		return fmt.Errorf("device token required")
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}

	query := `
		INSERT INTO device_tokens (id, user_id, token, platform, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (token) DO UPDATE SET user_id = $2, platform = $4
	`
	if _, err = s.db.Exec(ctx, query, uuid.New(), userID, req.Token, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	return nil
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, token, platform, created_at FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Platform, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}

// Domain event helpers. Failures are logged, never propagated: a push
// must not fail a committed completion.

func (s *NotificationService) NotifyLevelUp(ctx context.Context, userID uuid.UUID, newLevel int) {
	_, err := s.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.NotificationLevelUp,
		Priority: notification.PriorityNormal,
		Title:    "Level up!",
		Body:     fmt.Sprintf("You reached level %d. Keep growing!", newLevel),
		Data:     map[string]any{"level": newLevel},
	})
	if err != nil {
		log.Printf("Failed to create level_up notification for %s: %v", userID, err)
	}
}

func (s *NotificationService) NotifyBadgeUnlocked(ctx context.Context, userID uuid.UUID, badgeName string) {
	_, err := s.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.NotificationBadgeUnlocked,
		Priority: notification.PriorityNormal,
		Title:    "Badge unlocked",
		Body:     fmt.Sprintf("You earned the %q badge.", badgeName),
		Data:     map[string]any{"badge": badgeName},
	})
	if err != nil {
		log.Printf("Failed to create badge_unlocked notification for %s: %v", userID, err)
	}
}

func (s *NotificationService) NotifyFreezeUsed(ctx context.Context, userID uuid.UUID, streak, tokensLeft int) {
	_, err := s.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.NotificationFreezeUsed,
		Priority: notification.PriorityNormal,
		Title:    "Streak saved",
		Body:     fmt.Sprintf("A freeze token rescued your %d-day streak. %d left.", streak, tokensLeft),
		Data:     map[string]any{"streak": streak, "tokens_left": tokensLeft},
	})
	if err != nil {
		log.Printf("Failed to create freeze_used notification for %s: %v", userID, err)
	}
}

func (s *NotificationService) NotifyStreakAtRisk(ctx context.Context, userID uuid.UUID, streak, missedDays int) {
	body := fmt.Sprintf("Complete a challenge today to keep your %d-day streak alive.", streak)
	if missedDays > 0 {
		body = fmt.Sprintf("Your %d-day streak is on the line — complete a challenge now or use a freeze token.", streak)
	}

	_, err := s.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.NotificationStreakAtRisk,
		Priority: notification.PriorityHigh,
		Title:    "Your streak is at risk",
		Body:     body,
		Data:     map[string]any{"streak": streak, "missed_days": missedDays},
	})
	if err != nil {
		log.Printf("Failed to create streak_at_risk notification for %s: %v", userID, err)
	}
}
