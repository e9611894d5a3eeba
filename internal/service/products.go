package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/repository"
)

// CSVValidationError indicates that the provided CSV payload is invalid.
type CSVValidationError struct {
	Message string
}

// Error implements the error interface.
func (e CSVValidationError) Error() string {
	return e.Message
}

// csvReadError reports malformed input as a validation error. Anything else is an I/O
// failure of the underlying reader.
func csvReadError(op string, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return CSVValidationError{Message: fmt.Sprintf("malformed csv on line %d: %v", parseErr.Line, parseErr.Err)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// UploadSummary reports how many rows were inserted or updated during import.
type UploadSummary struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Items   []entity.Product `json:"items"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
}

// MediaUploader stores binary assets and returns their public URL.
type MediaUploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}

// ErrMediaUnavailable is returned when image uploads are requested without a media backend.
var ErrMediaUnavailable = errors.New("media service is not configured")

// ProductsService exposes read/write operations for the catalogue.
type ProductsService struct {
	repo  repository.ProductsRepository
	media MediaUploader
}

// NewProductsService creates a new instance of ProductsService. media may be nil.
func NewProductsService(repo repository.ProductsRepository, media MediaUploader) *ProductsService {
	return &ProductsService{repo: repo, media: media}
}

// ListProducts returns products respecting pagination defaults.
func (s *ProductsService) ListProducts(ctx context.Context, filter dto.ProductFilter) (*ProductPage, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, invalid("min_price must not exceed max_price")
	}
	switch filter.Sort {
	case "", "name", "newest", "price_asc", "price_desc":
	default:
		return nil, invalid("sort must be one of name, newest, price_asc, price_desc")
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []entity.Product{}
	}
	return &ProductPage{Items: items, Total: total, Page: filter.Page, PerPage: filter.PerPage}, nil
}

// GetProduct returns a single product. Inactive products are hidden unless includeInactive is set.
func (s *ProductsService) GetProduct(ctx context.Context, id string, includeInactive bool) (*entity.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid product id")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active && !includeInactive {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

// CreateProduct validates and stores a new product.
func (s *ProductsService) CreateProduct(ctx context.Context, req dto.CreateProductRequest) (*entity.Product, error) {
	product := &entity.Product{
		SKU:         strings.TrimSpace(req.SKU),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		ImageURL:    trimmedOrNil(req.ImageURL),
		Active:      true,
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	if product.SKU == "" || product.Name == "" {
		return nil, invalid("sku and name are required")
	}
	if product.Price.IsNegative() {
		return nil, invalid("price must not be negative")
	}
	if product.Stock < 0 {
		return nil, invalid("stock must not be negative")
	}

	return s.repo.Create(ctx, product)
}

// UpdateProduct applies a partial update.
func (s *ProductsService) UpdateProduct(ctx context.Context, id string, req dto.UpdateProductRequest) (*entity.Product, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid product id")
	}

	patch := repository.ProductPatch{
		Description: req.Description,
		Category:    req.Category,
		Active:      req.Active,
	}
	if req.SKU != nil {
		sku := strings.TrimSpace(*req.SKU)
		if sku == "" {
			return nil, invalid("sku cannot be empty")
		}
		patch.SKU = &sku
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("name cannot be empty")
		}
		patch.Name = &name
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, invalid("price must not be negative")
		}
		cents := entity.AmountToCents(*req.Price)
		patch.PriceCents = &cents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, invalid("stock must not be negative")
		}
		patch.Stock = req.Stock
	}
	if req.ImageURL != nil {
		url := strings.TrimSpace(*req.ImageURL)
		patch.ImageURL = &url
	}

	return s.repo.Update(ctx, productID, patch)
}

// DeleteProduct removes a product by id.
func (s *ProductsService) DeleteProduct(ctx context.Context, id string) error {
	productID, err := uuid.Parse(id)
	if err != nil {
		return invalid("invalid product id")
	}
	return s.repo.Delete(ctx, productID)
}

// UploadImage forwards the image to the media service and stores the returned URL.
func (s *ProductsService) UploadImage(ctx context.Context, id, filename, contentType string, body io.Reader) (*entity.Product, error) {
	if s.media == nil {
		return nil, ErrMediaUnavailable
	}
	productID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid product id")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, invalid("file must be an image")
	}
	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	url, err := s.media.Upload(ctx, productID.String()+"-"+filename, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return s.repo.SetImage(ctx, productID, url)
}

var requiredCSVHeaders = []string{"sku", "name", "price", "stock"}

// ImportProductsCSV upserts catalogue rows keyed by SKU. The whole file is validated before
// anything is written.
func (s *ProductsService) ImportProductsCSV(ctx context.Context, r io.Reader) (UploadSummary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return UploadSummary{}, CSVValidationError{Message: "csv file is empty"}
		}
		return UploadSummary{}, csvReadError("read csv header", err)
	}

	indexMap, valErr := buildHeaderIndex(header)
	if valErr != nil {
		return UploadSummary{}, valErr
	}
	column := func(row []string, name string) string {
		idx, ok := indexMap[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var (
		records []repository.BulkUpsertProductInput
		seen    = map[string]int{}
		rowNum  = 1
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return UploadSummary{}, csvReadError("read csv row", err)
		}

		rowNum++

		sku := column(row, "sku")
		name := column(row, "name")
		if sku == "" && name == "" {
			continue
		}
		if sku == "" || name == "" {
			return UploadSummary{}, CSVValidationError{Message: fmt.Sprintf("sku and name are required on row %d", rowNum)}
		}
		if first, dup := seen[sku]; dup {
			return UploadSummary{}, CSVValidationError{Message: fmt.Sprintf("duplicate sku %q on rows %d and %d", sku, first, rowNum)}
		}
		seen[sku] = rowNum

		price, parseErr := decimal.NewFromString(column(row, "price"))
		if parseErr != nil || price.IsNegative() {
			return UploadSummary{}, CSVValidationError{Message: fmt.Sprintf("invalid price value on row %d", rowNum)}
		}

		stock, parseStockErr := strconv.Atoi(column(row, "stock"))
		if parseStockErr != nil || stock < 0 {
			return UploadSummary{}, CSVValidationError{Message: fmt.Sprintf("invalid stock value on row %d", rowNum)}
		}

		active := true
		if raw := column(row, "active"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return UploadSummary{}, CSVValidationError{Message: fmt.Sprintf("invalid active value on row %d", rowNum)}
			}
			active = parsed
		}

		records = append(records, repository.BulkUpsertProductInput{
			SKU:         sku,
			Name:        name,
			Description: column(row, "description"),
			Category:    column(row, "category"),
			PriceCents:  entity.AmountToCents(price),
			Stock:       stock,
			ImageURL:    normalizeString(column(row, "image_url")),
			Active:      active,
		})
	}

	result, err := s.repo.BulkUpsert(ctx, records)
	if err != nil {
		return UploadSummary{}, err
	}

	return UploadSummary{
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Total:    result.Total,
	}, nil
}

func buildHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}

	missing := make([]string, 0)
	for _, required := range requiredCSVHeaders {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, CSVValidationError{Message: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return index, nil
}

func normalizeString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
