package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	middlewarepkg "github.com/deepak445566/cv/internal/middleware"
	"github.com/deepak445566/cv/internal/service"
)

type orderService interface {
	Place(ctx context.Context, userID uuid.UUID, req dto.PlaceOrderRequest) (*entity.Order, error)
	ListMine(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) (*service.OrderPage, error)
	List(ctx context.Context, filter dto.OrderFilter) (*service.OrderPage, error)
	Get(ctx context.Context, userID uuid.UUID, role, id string) (*entity.Order, error)
	Cancel(ctx context.Context, userID uuid.UUID, id string) (*entity.Order, error)
	UpdateStatus(ctx context.Context, id, status string) (*entity.Order, error)
}

var _ orderService = (*service.OrderService)(nil)

// OrdersHandler exposes checkout and order history.
type OrdersHandler struct {
	orders orderService
}

// NewOrdersHandler creates a new handler instance.
func NewOrdersHandler(orders orderService) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

// Place handles POST /orders.
func (h *OrdersHandler) Place(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	var req dto.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	order, err := h.orders.Place(c.Request().Context(), userID, req)
	if err != nil {
		return respondError(c, err, "failed to place order")
	}
	return Success(c, http.StatusCreated, "order placed", order)
}

// ListMine handles GET /orders.
func (h *OrdersHandler) ListMine(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	page, err := h.orders.ListMine(c.Request().Context(), userID, orderFilter(c))
	if err != nil {
		return respondError(c, err, "failed to list orders")
	}
	return Success(c, http.StatusOK, "orders retrieved", page)
}

// Get handles GET /orders/:id.
func (h *OrdersHandler) Get(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	order, err := h.orders.Get(c.Request().Context(), userID, middlewarepkg.UserRoleFromContext(c), c.Param("id"))
	if err != nil {
		return respondError(c, err, "failed to load order")
	}
	return Success(c, http.StatusOK, "order retrieved", order)
}

// Cancel handles POST /orders/:id/cancel.
func (h *OrdersHandler) Cancel(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	order, err := h.orders.Cancel(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return respondError(c, err, "failed to cancel order")
	}
	return Success(c, http.StatusOK, "order cancelled", order)
}

// ListAdmin handles GET /admin/orders.
func (h *OrdersHandler) ListAdmin(c echo.Context) error {
	page, err := h.orders.List(c.Request().Context(), orderFilter(c))
	if err != nil {
		return respondError(c, err, "failed to list orders")
	}
	return Success(c, http.StatusOK, "orders retrieved", page)
}

// UpdateStatus handles PATCH /admin/orders/:id/status.
func (h *OrdersHandler) UpdateStatus(c echo.Context) error {
	var req dto.UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	order, err := h.orders.UpdateStatus(c.Request().Context(), c.Param("id"), strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		return respondError(c, err, "failed to update order")
	}
	return Success(c, http.StatusOK, "order updated", order)
}

func orderFilter(c echo.Context) dto.OrderFilter {
	return dto.OrderFilter{
		Status:  strings.ToLower(strings.TrimSpace(c.QueryParam("status"))),
		Page:    parseIntDefault(c.QueryParam("page"), 1),
		PerPage: parseIntDefault(c.QueryParam("per_page"), 20),
	}
}
