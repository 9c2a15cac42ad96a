package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthAPI/internal/notification"
	"growthAPI/internal/user"
	"growthAPI/services"
	"growthAPI/tests/helpers"
)

func TestNotificationFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	svc := services.NewNotificationService(pool)
	defer svc.Dispatcher().Stop()

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	ctx := context.Background()

	created, err := userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:   clerkID,
		Email:     "testnotif@example.com",
		Username:  "testnotif",
		FirstName: "Test",
		LastName:  "Notif",
	})
	require.NoError(t, err)

	userID, err := uuid.Parse(created.ID)
	require.NoError(t, err)

	// Defaults are created lazily on first read
	prefs, err := svc.GetUserPreferences(ctx, clerkID)
	require.NoError(t, err)
	assert.True(t, prefs.PushEnabled)
	assert.True(t, prefs.InAppEnabled)

	// Register a device token
	err = svc.RegisterDevice(ctx, clerkID, &notification.RegisterDeviceRequest{
		Token:    "test-device-token-" + clerkID,
		Platform: "android",
	})
	require.NoError(t, err)

	prefs, err = svc.GetUserPreferences(ctx, clerkID)
	require.NoError(t, err)
	require.Len(t, prefs.DeviceTokens, 1)
	assert.Equal(t, "android", prefs.DeviceTokens[0].Platform)

	// Create a notification and let a worker dispatch it
	notif, err := svc.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.NotificationLevelUp,
		Priority: notification.PriorityNormal,
		Title:    "Level up!",
		Body:     "You reached level 2",
		Data:     map[string]any{"level": "2"},
	})
	require.NoError(t, err)
	require.NotNil(t, notif)

	time.Sleep(1 * time.Second)

	var status string
	err = pool.QueryRow(ctx, "SELECT status FROM notifications WHERE id = $1", notif.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, "sent", status)

	// Mark as read
	err = svc.MarkAsRead(ctx, clerkID, notif.ID.String())
	require.NoError(t, err)

	list, err := svc.GetNotifications(ctx, clerkID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, list.UnreadCount)
}

func TestUpdatePreferences_DisablesType(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	userService := services.NewUserService(pool)
	svc := services.NewNotificationService(pool)
	defer svc.Dispatcher().Stop()

	clerkID := "user_test_" + time.Now().Format("20060102150405")
	ctx := context.Background()

	created, err := userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:   clerkID,
		Email:     "testprefs@example.com",
		Username:  "testprefs",
		FirstName: "Test",
		LastName:  "Prefs",
	})
	require.NoError(t, err)

	userID, err := uuid.Parse(created.ID)
	require.NoError(t, err)

	disabled := false
	_, err = svc.UpdatePreferences(ctx, clerkID, &notification.UpdatePreferencesRequest{
		PushEnabled: &disabled,
		EnabledTypes: map[string]bool{
			string(notification.NotificationLevelUp): false,
		},
	})
	require.NoError(t, err)

	// Disabled types are skipped at creation time
	notif, err := svc.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID: userID,
		Type:   notification.NotificationLevelUp,
		Title:  "Level up!",
		Body:   "You reached level 3",
	})
	require.NoError(t, err)
	assert.Nil(t, notif, "Notification for a disabled type should be skipped")
}
