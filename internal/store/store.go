package store

import (
	"time"

	"github.com/google/uuid"
)

// ItemType "streak_freeze" is consumable: a purchase credits tokens on the
// buyer's progress row instead of landing in the inventory.
type Item struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CategoryID  uuid.UUID `json:"category_id" db:"category_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ItemType    string    `json:"item_type" db:"item_type"`
	ImageURL    *string   `json:"image_url" db:"image_url"`
	BasePrice   float64   `json:"base_price" db:"base_price"`
	TokenGrant  int       `json:"token_grant" db:"token_grant"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

type Purchase struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	ItemID        *uuid.UUID `json:"item_id" db:"item_id"`
	PurchaseType  string     `json:"purchase_type" db:"purchase_type"`
	AmountPaid    *float64   `json:"amount_paid" db:"amount_paid"`
	Currency      string     `json:"currency" db:"currency"`
	TransactionID *string    `json:"transaction_id" db:"transaction_id"`
	Status        string     `json:"status" db:"status"`
	PurchasedAt   time.Time  `json:"purchased_at" db:"purchased_at"`
}

type PurchaseRequest struct {
	ItemID string `json:"itemId" validate:"required"`
}

type InventoryItem struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	ItemID     uuid.UUID  `json:"item_id" db:"item_id"`
	ItemType   string     `json:"item_type" db:"item_type"`
	Quantity   int        `json:"quantity" db:"quantity"`
	IsEquipped bool       `json:"is_equipped" db:"is_equipped"`
	AcquiredAt time.Time  `json:"acquired_at" db:"acquired_at"`
	ExpiresAt  *time.Time `json:"expires_at" db:"expires_at"`
}
