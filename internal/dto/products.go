package dto

import "github.com/shopspring/decimal"

// ProductFilter contains query parameters for product listing endpoints.
type ProductFilter struct {
	Q               string
	Category        string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	InStock         bool
	IncludeInactive bool
	Sort            string
	Page            int
	PerPage         int
}

// CreateProductRequest is the admin payload for a new product.
type CreateProductRequest struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    *string         `json:"image_url,omitempty"`
	Active      *bool           `json:"active,omitempty"`
}

// UpdateProductRequest captures partial product updates.
type UpdateProductRequest struct {
	SKU         *string          `json:"sku,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty"`
	Active      *bool            `json:"active,omitempty"`
}
