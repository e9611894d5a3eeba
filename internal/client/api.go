package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
)

// Page is one page of a listing.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// ProductQuery filters the public catalogue.
type ProductQuery struct {
	Q        string
	Category string
	Sort     string
	InStock  bool
	Page     int
	PerPage  int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.InStock {
		v.Set("in_stock", "true")
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	return v
}

// Products lists active products.
func (c *Client) Products(ctx context.Context, query ProductQuery) (*Page[entity.Product], error) {
	path := "/products"
	if encoded := query.values().Encode(); encoded != "" {
		path += "?" + encoded
	}
	var page Page[entity.Product]
	if err := c.Do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Addresses lists the user's addresses.
func (c *Client) Addresses(ctx context.Context) ([]entity.Address, error) {
	var addresses []entity.Address
	if err := c.Do(ctx, http.MethodGet, "/addresses", nil, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

// CreateAddress stores a new address.
func (c *Client) CreateAddress(ctx context.Context, req dto.AddressRequest) (*entity.Address, error) {
	var address entity.Address
	if err := c.Do(ctx, http.MethodPost, "/addresses", req, &address); err != nil {
		return nil, err
	}
	return &address, nil
}

// Checkout pushes pending cart changes, places the order and empties the local cart.
func (c *Client) Checkout(ctx context.Context, addressID string) (*entity.Order, error) {
	if err := c.cart.Flush(ctx); err != nil {
		return nil, err
	}
	generation := c.sessionGeneration()
	var order entity.Order
	if err := c.Do(ctx, http.MethodPost, "/orders", dto.PlaceOrderRequest{AddressID: addressID}, &order); err != nil {
		return nil, err
	}
	c.cart.adopt(generation, map[string]int{})
	return &order, nil
}

// Orders lists the user's orders, newest first.
func (c *Client) Orders(ctx context.Context, page, perPage int) (*Page[entity.Order], error) {
	v := url.Values{}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		v.Set("per_page", strconv.Itoa(perPage))
	}
	path := "/orders"
	if encoded := v.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out Page[entity.Order]
	if err := c.Do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder cancels a pending or paid order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	var order entity.Order
	if err := c.Do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/cancel", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
