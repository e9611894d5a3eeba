package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/service"
)

type productsService interface {
	ListProducts(ctx context.Context, filter dto.ProductFilter) (*service.ProductPage, error)
	GetProduct(ctx context.Context, id string, includeInactive bool) (*entity.Product, error)
	CreateProduct(ctx context.Context, req dto.CreateProductRequest) (*entity.Product, error)
	UpdateProduct(ctx context.Context, id string, req dto.UpdateProductRequest) (*entity.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	UploadImage(ctx context.Context, id, filename, contentType string, body io.Reader) (*entity.Product, error)
	ImportProductsCSV(ctx context.Context, r io.Reader) (service.UploadSummary, error)
}

var _ productsService = (*service.ProductsService)(nil)

// ProductsHandler exposes the catalogue to shoppers and administrators.
type ProductsHandler struct {
	service productsService
}

// NewProductsHandler creates a new handler instance.
func NewProductsHandler(service productsService) *ProductsHandler {
	return &ProductsHandler{service: service}
}

// List handles GET /products requests. Only active products are listed.
func (h *ProductsHandler) List(c echo.Context) error {
	return h.listInternal(c, false)
}

// ListAdmin handles GET /admin/products requests.
func (h *ProductsHandler) ListAdmin(c echo.Context) error {
	return h.listInternal(c, true)
}

func (h *ProductsHandler) listInternal(c echo.Context, includeInactive bool) error {
	filter := dto.ProductFilter{
		Q:               strings.TrimSpace(c.QueryParam("q")),
		Category:        strings.TrimSpace(c.QueryParam("category")),
		Sort:            strings.TrimSpace(c.QueryParam("sort")),
		IncludeInactive: includeInactive,
		Page:            parseIntDefault(c.QueryParam("page"), 1),
		PerPage:         parseIntDefault(c.QueryParam("per_page"), 20),
	}

	for param, target := range map[string]**decimal.Decimal{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		raw := strings.TrimSpace(c.QueryParam(param))
		if raw == "" {
			continue
		}
		value, err := decimal.NewFromString(raw)
		if err != nil || value.IsNegative() {
			return Error(c, http.StatusBadRequest, "invalid "+param)
		}
		*target = &value
	}

	if raw := strings.TrimSpace(c.QueryParam("in_stock")); raw != "" {
		inStock, err := strconv.ParseBool(raw)
		if err != nil {
			return Error(c, http.StatusBadRequest, "invalid in_stock")
		}
		filter.InStock = inStock
	}

	page, err := h.service.ListProducts(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err, "failed to list products")
	}
	return Success(c, http.StatusOK, "products retrieved", page)
}

// Get handles GET /products/:id.
func (h *ProductsHandler) Get(c echo.Context) error {
	product, err := h.service.GetProduct(c.Request().Context(), c.Param("id"), false)
	if err != nil {
		return respondError(c, err, "failed to load product")
	}
	return Success(c, http.StatusOK, "product retrieved", product)
}

// Create handles POST /admin/products.
func (h *ProductsHandler) Create(c echo.Context) error {
	var req dto.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	product, err := h.service.CreateProduct(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err, "failed to create product")
	}
	return Success(c, http.StatusCreated, "product created", product)
}

// Update handles PATCH /admin/products/:id.
func (h *ProductsHandler) Update(c echo.Context) error {
	var req dto.UpdateProductRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	product, err := h.service.UpdateProduct(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return respondError(c, err, "failed to update product")
	}
	return Success(c, http.StatusOK, "product updated", product)
}

// Delete handles DELETE /admin/products/:id.
func (h *ProductsHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteProduct(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, err, "failed to delete product")
	}
	return Success(c, http.StatusOK, "product deleted", nil)
}

// Import handles POST /admin/products/import with a multipart "file" field.
func (h *ProductsHandler) Import(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing csv file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	summary, err := h.service.ImportProductsCSV(c.Request().Context(), file)
	if err != nil {
		return respondError(c, err, "failed to process csv")
	}
	return Success(c, http.StatusOK, "products CSV processed", summary)
}

// UploadImage handles POST /admin/products/:id/image with a multipart "file" field.
func (h *ProductsHandler) UploadImage(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing image file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get(echo.HeaderContentType)
	product, err := h.service.UploadImage(c.Request().Context(), c.Param("id"), fileHeader.Filename, contentType, file)
	if err != nil {
		return respondError(c, err, "failed to upload image")
	}
	return Success(c, http.StatusOK, "image uploaded", product)
}
