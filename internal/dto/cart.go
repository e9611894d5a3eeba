package dto

import "github.com/shopspring/decimal"

// ReplaceCartRequest replaces the whole cart with the given product id to quantity map.
type ReplaceCartRequest struct {
	Items map[string]int `json:"items"`
}

// CartItemRequest adds or sets a single cart line.
type CartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CartLine is a priced cart entry.
type CartLine struct {
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	ImageURL  *string         `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	InStock   int             `json:"in_stock"`
}

// CartResponse is the priced view of a cart. Items mirrors Lines as the plain map
// the client keeps in local storage. Adjusted is true when the server changed what the
// client sent (unknown products dropped, quantities clamped).
type CartResponse struct {
	Items     map[string]int  `json:"items"`
	Lines     []CartLine      `json:"lines"`
	Count     int             `json:"count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Adjusted  bool            `json:"adjusted"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}
