package dto

// PlaceOrderRequest starts checkout of the caller's cart.
type PlaceOrderRequest struct {
	AddressID string `json:"address_id"`
}

// UpdateOrderStatusRequest is the admin payload to move an order through its lifecycle.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderFilter contains query parameters for order listings.
type OrderFilter struct {
	Status  string
	Page    int
	PerPage int
}
