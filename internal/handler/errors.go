package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deepak445566/cv/internal/media"
	"github.com/deepak445566/cv/internal/repository"
	"github.com/deepak445566/cv/internal/service"
)

// stockConflict is returned with 409 responses so the client can fix the offending line.
type stockConflict struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// respondError maps domain errors to HTTP statuses. Anything unknown becomes a 500 with fallback
// as the message.
func respondError(c echo.Context, err error, fallback string) error {
	var validationErr service.ValidationError
	var csvErr service.CSVValidationError
	var stockErr *repository.StockError

	switch {
	case errors.As(err, &validationErr):
		return Error(c, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &csvErr):
		return Error(c, http.StatusBadRequest, csvErr.Error())
	case errors.As(err, &stockErr):
		return ErrorWithData(c, http.StatusConflict, "insufficient stock", stockConflict{
			ProductID: stockErr.ProductID.String(),
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		return Error(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return Error(c, http.StatusUnauthorized, "invalid or expired refresh token")
	case errors.Is(err, service.ErrEmailAlreadyExists), errors.Is(err, repository.ErrEmailDuplicate):
		return Error(c, http.StatusConflict, "email already exists")
	case errors.Is(err, repository.ErrSKUDuplicate):
		return Error(c, http.StatusConflict, "sku already exists")
	case errors.Is(err, repository.ErrUserNotFound):
		return Error(c, http.StatusNotFound, "user not found")
	case errors.Is(err, repository.ErrProductNotFound):
		return Error(c, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrAddressNotFound):
		return Error(c, http.StatusNotFound, "address not found")
	case errors.Is(err, repository.ErrOrderNotFound):
		return Error(c, http.StatusNotFound, "order not found")
	case errors.Is(err, repository.ErrEmptyCart):
		return Error(c, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, repository.ErrInvalidTransition):
		return Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrMediaUnavailable):
		return Error(c, http.StatusServiceUnavailable, "image uploads are disabled")
	case errors.Is(err, media.ErrTooLarge):
		return Error(c, http.StatusRequestEntityTooLarge, "image is too large")
	default:
		c.Logger().Error(err)
		return Error(c, http.StatusInternalServerError, fallback)
	}
}
