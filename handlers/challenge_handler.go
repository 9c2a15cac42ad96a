package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"growthAPI/internal/challenge"
	"growthAPI/middleware"
	"growthAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
}

func NewChallengeHandler(challengeService *services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
	}
}

func (h *ChallengeHandler) GetCurrentChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	current, err := h.challengeService.GetCurrentChallenge(ctx, clerkID)
	if err != nil {
		log.Printf("GetCurrentChallenge Handler: Service error: %v", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// No assignment yet is a normal state, not an error.
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"challenge": current,
	})
}

func (h *ChallengeHandler) AssignChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req challenge.AssignChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	assigned, err := h.challengeService.AssignNextChallenge(ctx, clerkID, req.Category)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoChallengesAvailable):
			respondWithJSON(w, http.StatusOK, map[string]string{
				"status": "no_challenges_available",
			})
		case errors.Is(err, services.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("AssignChallenge Handler: Service error: %v", err)
			respondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, assigned)
}

func (h *ChallengeHandler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, false)
}

// CompleteExtraChallenge records a bonus completion: reduced XP, streak
// already counted for the day.
func (h *ChallengeHandler) CompleteExtraChallenge(w http.ResponseWriter, r *http.Request) {
	h.complete(w, r, true)
}

func (h *ChallengeHandler) complete(w http.ResponseWriter, r *http.Request, isExtra bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req challenge.CompleteChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ChallengeID == "" {
		respondWithError(w, http.StatusBadRequest, "challengeId is required")
		return
	}

	result, err := h.challengeService.CompleteChallenge(ctx, clerkID, &req, isExtra)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrAlreadyCompleted):
			respondWithError(w, http.StatusConflict, "Challenge already completed")
		case errors.Is(err, services.ErrConflict):
			respondWithError(w, http.StatusConflict, "Progress was updated concurrently, please retry")
		default:
			log.Printf("CompleteChallenge Handler: Service error: %v", err)
			respondWithError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ChallengeHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := middleware.GetClerkID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	catalog, err := h.challengeService.Catalog(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": catalog,
		"count":      len(catalog),
	})
}
