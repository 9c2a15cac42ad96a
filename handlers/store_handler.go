package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"growthAPI/internal/store"
	"growthAPI/middleware"
	"growthAPI/services"
)

type StoreHandler struct {
	storeService *services.StoreService
}

func NewStoreHandler(storeService *services.StoreService) *StoreHandler {
	return &StoreHandler{
		storeService: storeService,
	}
}

func (h *StoreHandler) GetStore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := middleware.GetClerkID(ctx); !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	storeItems, err := h.storeService.GetStore(ctx)
	if err != nil {
		log.Printf("GetStore Handler: Service error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load store")
		return
	}

	respondWithJSON(w, http.StatusOK, storeItems)
}

func (h *StoreHandler) PurchaseStoreItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req store.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ItemID == "" {
		respondWithError(w, http.StatusBadRequest, "itemId is required")
		return
	}

	purchase, err := h.storeService.PurchaseStoreItem(ctx, clerkID, req.ItemID)
	if err != nil {
		log.Printf("PurchaseStoreItem Handler: Service error: %v", err)
		errMsg := err.Error()
		switch {
		case strings.Contains(errMsg, "invalid item ID"):
			respondWithError(w, http.StatusBadRequest, errMsg)
		case errMsg == "store item not found" || errMsg == "user not found":
			respondWithError(w, http.StatusNotFound, errMsg)
		case errMsg == "store item is not available for purchase":
			respondWithError(w, http.StatusBadRequest, errMsg)
		case errMsg == "user does not have enough gems to purchase this item":
			respondWithError(w, http.StatusPaymentRequired, errMsg)
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to complete purchase")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, purchase)
}
