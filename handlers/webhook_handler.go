package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"growthAPI/internal/types/clerk"
	"growthAPI/internal/user"
	"growthAPI/services"
)

type WebhookHandler struct {
	userService *services.UserService
}

func NewWebhookHandler(userService *services.UserService) *WebhookHandler {
	return &WebhookHandler{
		userService: userService,
	}
}

// HandleClerkWebhook processes user lifecycle events from Clerk.
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Webhook: Failed to read body: %v", err)
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := verifyWebhookSignature(r, body); err != nil {
		log.Printf("Webhook: Signature verification failed: %v", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	var event clerk.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Webhook: Failed to parse event: %v", err)
		respondWithError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	log.Printf("Webhook: Received event type %s", event.Type)

	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	case "email.created":
		log.Printf("Webhook: email.created event received, nothing to do")
	default:
		log.Printf("Webhook: Unhandled event type %s", event.Type)
	}

	if err != nil {
		log.Printf("Webhook: Failed to process %s: %v", event.Type, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to parse user data: %w", err)
	}

	email, verified := primaryEmail(&userData)

	username := userData.Username
	if username == "" && email != "" {
		username = strings.Split(email, "@")[0]
	}

	imageURL := userData.ImageURL
	if imageURL == "" {
		imageURL = userData.ProfileImageURL
	}

	req := &user.CreateUserRequest{
		ClerkID:   userData.ID,
		Email:     email,
		Username:  username,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageURL,
	}

	created, err := h.userService.CreateUser(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if verified {
		if err := h.userService.UpdateEmailVerification(ctx, userData.ID, true); err != nil {
			log.Printf("Webhook: Failed to mark email verified for %s: %v", userData.ID, err)
		}
	}

	log.Printf("Webhook: Created user %s (clerk_id=%s)", created.ID, userData.ID)
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to parse user data: %w", err)
	}

	imageURL := userData.ImageURL
	if imageURL == "" {
		imageURL = userData.ProfileImageURL
	}

	req := &user.UpdateProfileRequest{
		Username:  userData.Username,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  imageURL,
	}

	if _, err := h.userService.UpdateProfileByClerkID(ctx, userData.ID, req); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if _, verified := primaryEmail(&userData); verified {
		if err := h.userService.UpdateEmailVerification(ctx, userData.ID, true); err != nil {
			log.Printf("Webhook: Failed to mark email verified for %s: %v", userData.ID, err)
		}
	}

	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData clerk.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to parse user data: %w", err)
	}

	if err := h.userService.DeleteUserByClerkID(ctx, userData.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	log.Printf("Webhook: Deleted user with clerk_id=%s", userData.ID)
	return nil
}

func primaryEmail(userData *clerk.ClerkUserData) (string, bool) {
	if len(userData.EmailAddresses) == 0 {
		return "", false
	}
	first := userData.EmailAddresses[0]
	return first.EmailAddress, first.Verification.Status == "verified"
}

// verifyWebhookSignature checks the svix signature headers Clerk sends.
// Skipped when CLERK_WEBHOOK_SECRET is not configured (local development).
func verifyWebhookSignature(r *http.Request, body []byte) error {
	webhookSecret := os.Getenv("CLERK_WEBHOOK_SECRET")
	if webhookSecret == "" {
		log.Println("Webhook: CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return nil
	}

	svixID := r.Header.Get("svix-id")
	svixTimestamp := r.Header.Get("svix-timestamp")
	svixSignature := r.Header.Get("svix-signature")

	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		return fmt.Errorf("missing svix headers")
	}

	secret := strings.TrimPrefix(webhookSecret, "whsec_")
	secretBytes, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return fmt.Errorf("invalid webhook secret: %w", err)
	}

	signedContent := fmt.Sprintf("%s.%s.%s", svixID, svixTimestamp, string(body))

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(signedContent))
	expected := mac.Sum(nil)

	// Header may carry several space-separated signatures, each "v1,<sig>".
	for _, sig := range strings.Split(svixSignature, " ") {
		parts := strings.SplitN(sig, ",", 2)
		if len(parts) != 2 {
			continue
		}

		var provided []byte
		if decoded, err := base64.StdEncoding.DecodeString(parts[1]); err == nil {
			provided = decoded
		} else if decoded, err := hex.DecodeString(parts[1]); err == nil {
			provided = decoded
		} else {
			continue
		}

		if hmac.Equal(expected, provided) {
			return nil
		}
	}

	return fmt.Errorf("no matching signature")
}
