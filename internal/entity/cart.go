package entity

import (
	"time"

	"github.com/google/uuid"
)

// MaxLineQuantity caps the quantity of a single product in a cart.
const MaxLineQuantity = 99

// CartItems maps a product id to its quantity.
type CartItems map[uuid.UUID]int

// Cart is the per-user cart document.
type Cart struct {
	UserID    uuid.UUID `json:"user_id"`
	Items     CartItems `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductIDs returns the ids referenced by the cart.
func (items CartItems) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	return ids
}

// Clone returns an independent copy.
func (items CartItems) Clone() CartItems {
	out := make(CartItems, len(items))
	for id, qty := range items {
		out[id] = qty
	}
	return out
}
