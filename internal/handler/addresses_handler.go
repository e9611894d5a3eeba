package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/service"
)

type addressService interface {
	List(ctx context.Context, userID uuid.UUID) ([]entity.Address, error)
	Create(ctx context.Context, userID uuid.UUID, req dto.AddressRequest) (*entity.Address, error)
	Update(ctx context.Context, userID uuid.UUID, id string, req dto.UpdateAddressRequest) (*entity.Address, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
	SetDefault(ctx context.Context, userID uuid.UUID, id string) (*entity.Address, error)
}

var _ addressService = (*service.AddressService)(nil)

// AddressesHandler exposes the address book of the authenticated user.
type AddressesHandler struct {
	addresses addressService
}

func NewAddressesHandler(addresses addressService) *AddressesHandler {
	return &AddressesHandler{addresses: addresses}
}

func (h *AddressesHandler) List(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	items, err := h.addresses.List(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err, "failed to list addresses")
	}
	if items == nil {
		items = []entity.Address{}
	}
	return Success(c, http.StatusOK, "addresses retrieved", items)
}

func (h *AddressesHandler) Create(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	var req dto.AddressRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	address, err := h.addresses.Create(c.Request().Context(), userID, req)
	if err != nil {
		return respondError(c, err, "failed to create address")
	}
	return Success(c, http.StatusCreated, "address created", address)
}

func (h *AddressesHandler) Update(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	var req dto.UpdateAddressRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	address, err := h.addresses.Update(c.Request().Context(), userID, c.Param("id"), req)
	if err != nil {
		return respondError(c, err, "failed to update address")
	}
	return Success(c, http.StatusOK, "address updated", address)
}

func (h *AddressesHandler) Delete(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	if err := h.addresses.Delete(c.Request().Context(), userID, c.Param("id")); err != nil {
		return respondError(c, err, "failed to delete address")
	}
	return Success(c, http.StatusOK, "address deleted", nil)
}

// SetDefault handles POST /addresses/:id/default.
func (h *AddressesHandler) SetDefault(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	address, err := h.addresses.SetDefault(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return respondError(c, err, "failed to set default address")
	}
	return Success(c, http.StatusOK, "default address updated", address)
}
