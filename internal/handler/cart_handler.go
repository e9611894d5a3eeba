package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/service"
)

type cartService interface {
	Get(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error)
	Replace(ctx context.Context, userID uuid.UUID, items map[string]int) (*dto.CartResponse, error)
	Merge(ctx context.Context, userID uuid.UUID, local map[string]int) (*dto.CartResponse, error)
	AddItem(ctx context.Context, userID uuid.UUID, productID string, qty int) (*dto.CartResponse, error)
	SetItem(ctx context.Context, userID uuid.UUID, productID string, qty int) (*dto.CartResponse, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, productID string) (*dto.CartResponse, error)
	Clear(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error)
}

var _ cartService = (*service.CartService)(nil)

// CartHandler exposes the authenticated user's server-side cart.
type CartHandler struct {
	carts cartService
}

// NewCartHandler creates a new handler instance.
func NewCartHandler(carts cartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// Get handles GET /cart.
func (h *CartHandler) Get(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	cart, err := h.carts.Get(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err, "failed to load cart")
	}
	return Success(c, http.StatusOK, "cart retrieved", cart)
}

// Replace handles PUT /cart with the full product id to quantity map.
func (h *CartHandler) Replace(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	var req dto.ReplaceCartRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	cart, err := h.carts.Replace(c.Request().Context(), userID, req.Items)
	if err != nil {
		return respondError(c, err, "failed to save cart")
	}
	return Success(c, http.StatusOK, "cart saved", cart)
}

// Merge handles POST /cart/merge, combining a signed-out cart with the stored one.
func (h *CartHandler) Merge(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	var req dto.ReplaceCartRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	cart, err := h.carts.Merge(c.Request().Context(), userID, req.Items)
	if err != nil {
		return respondError(c, err, "failed to merge cart")
	}
	return Success(c, http.StatusOK, "cart merged", cart)
}

// AddItem handles POST /cart/items.
func (h *CartHandler) AddItem(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	var req dto.CartItemRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	cart, err := h.carts.AddItem(c.Request().Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, err, "failed to add item")
	}
	return Success(c, http.StatusOK, "item added", cart)
}

// SetItem handles PATCH /cart/items/:product_id. A quantity of zero removes the line.
func (h *CartHandler) SetItem(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	var req dto.CartItemRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	cart, err := h.carts.SetItem(c.Request().Context(), userID, c.Param("product_id"), req.Quantity)
	if err != nil {
		return respondError(c, err, "failed to update item")
	}
	return Success(c, http.StatusOK, "item updated", cart)
}

// RemoveItem handles DELETE /cart/items/:product_id.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	cart, err := h.carts.RemoveItem(c.Request().Context(), userID, c.Param("product_id"))
	if err != nil {
		return respondError(c, err, "failed to remove item")
	}
	return Success(c, http.StatusOK, "item removed", cart)
}

// Clear handles DELETE /cart.
func (h *CartHandler) Clear(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	cart, err := h.carts.Clear(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err, "failed to clear cart")
	}
	return Success(c, http.StatusOK, "cart cleared", cart)
}
