package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/service"
)

type userService interface {
	ListUsers(ctx context.Context) ([]dto.UserResponse, error)
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error)
	UpdateUser(ctx context.Context, id string, req dto.UpdateUserRequest) (*dto.UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
}

var _ userService = (*service.UserService)(nil)

// UserAdminHandler exposes administrative user management endpoints.
type UserAdminHandler struct {
	users userService
}

// NewUserAdminHandler constructs a handler instance.
func NewUserAdminHandler(users userService) *UserAdminHandler {
	return &UserAdminHandler{users: users}
}

// List returns all users.
func (h *UserAdminHandler) List(c echo.Context) error {
	records, err := h.users.ListUsers(c.Request().Context())
	if err != nil {
		return respondError(c, err, "failed to list users")
	}
	return Success(c, http.StatusOK, "users retrieved", records)
}

// Create provisions a new user.
func (h *UserAdminHandler) Create(c echo.Context) error {
	var req dto.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.CreateUser(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err, "failed to create user")
	}
	return Success(c, http.StatusCreated, "user created", user)
}

// Update modifies an existing user.
func (h *UserAdminHandler) Update(c echo.Context) error {
	var req dto.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.UpdateUser(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return respondError(c, err, "failed to update user")
	}
	return Success(c, http.StatusOK, "user updated", user)
}

// Delete removes a user.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	if err := h.users.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err, "failed to delete user")
	}
	return Success(c, http.StatusOK, "user deleted", nil)
}
