package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
	"github.com/deepak445566/cv/internal/repository"
)

// CartService keeps the server-side copy of each user's cart consistent with the catalogue.
type CartService struct {
	carts    repository.CartsRepository
	products repository.ProductsRepository
}

// NewCartService wires the cart service.
func NewCartService(carts repository.CartsRepository, products repository.ProductsRepository) *CartService {
	return &CartService{carts: carts, products: products}
}

// Get returns the priced cart. Lines whose product vanished or was deactivated are pruned.
func (s *CartService) Get(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	clean, products, adjusted, err := s.sanitize(ctx, cart.Items)
	if err != nil {
		return nil, err
	}
	if adjusted {
		if cart, err = s.carts.Save(ctx, userID, clean); err != nil {
			return nil, err
		}
	}
	return buildCartView(clean, products, adjusted, cart.UpdatedAt), nil
}

// Replace overwrites the cart with the client's copy after validating it against the catalogue.
func (s *CartService) Replace(ctx context.Context, userID uuid.UUID, items map[string]int) (*dto.CartResponse, error) {
	parsed, adjusted := parseItems(items)
	return s.store(ctx, userID, parsed, adjusted)
}

// Merge adds a local (pre-login) cart to the stored one. Quantities of the same product are summed.
func (s *CartService) Merge(ctx context.Context, userID uuid.UUID, local map[string]int) (*dto.CartResponse, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	incoming, adjusted := parseItems(local)
	merged := cart.Items.Clone()
	for id, qty := range incoming {
		sum, capped := addQuantity(merged[id], qty)
		merged[id] = sum
		adjusted = adjusted || capped
	}
	return s.store(ctx, userID, merged, adjusted)
}

// AddItem increases the quantity of a product in the cart.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, productID string, qty int) (*dto.CartResponse, error) {
	id, err := s.availableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, invalid("quantity must be positive")
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := cart.Items.Clone()
	sum, capped := addQuantity(items[id], qty)
	items[id] = sum
	return s.store(ctx, userID, items, capped)
}

// SetItem sets the quantity of a product. A quantity of zero or less removes the line.
func (s *CartService) SetItem(ctx context.Context, userID uuid.UUID, productID string, qty int) (*dto.CartResponse, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	id, err := s.availableProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := cart.Items.Clone()
	items[id] = qty
	return s.store(ctx, userID, items, false)
}

// RemoveItem drops a product from the cart. Removing an absent product is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID string) (*dto.CartResponse, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return nil, invalid("invalid product id")
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := cart.Items.Clone()
	delete(items, id)
	return s.store(ctx, userID, items, false)
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) (*dto.CartResponse, error) {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return nil, err
	}
	return buildCartView(entity.CartItems{}, nil, false, time.Now()), nil
}

func (s *CartService) store(ctx context.Context, userID uuid.UUID, items entity.CartItems, adjusted bool) (*dto.CartResponse, error) {
	clean, products, changed, err := s.sanitize(ctx, items)
	if err != nil {
		return nil, err
	}
	saved, err := s.carts.Save(ctx, userID, clean)
	if err != nil {
		return nil, err
	}
	return buildCartView(saved.Items, products, adjusted || changed, saved.UpdatedAt), nil
}

func (s *CartService) availableProduct(ctx context.Context, productID string) (uuid.UUID, error) {
	id, err := uuid.Parse(productID)
	if err != nil {
		return uuid.Nil, invalid("invalid product id")
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if !product.Active {
		return uuid.Nil, repository.ErrProductNotFound
	}
	if product.Stock <= 0 {
		return uuid.Nil, &repository.StockError{ProductID: id, Requested: 1}
	}
	return id, nil
}

// sanitize drops lines for unknown, inactive or sold out products and clamps quantities
// to what can actually be bought. Lines with a non-positive quantity are removed silently.
func (s *CartService) sanitize(ctx context.Context, items entity.CartItems) (entity.CartItems, map[uuid.UUID]entity.Product, bool, error) {
	clean := make(entity.CartItems, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for id, qty := range items {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return clean, map[uuid.UUID]entity.Product{}, false, nil
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, false, err
	}

	adjusted := false
	for _, id := range ids {
		product, ok := products[id]
		if !ok || !product.Available() {
			adjusted = true
			continue
		}
		qty := clampQuantity(items[id], product.Stock)
		if qty != items[id] {
			adjusted = true
		}
		clean[id] = qty
	}
	return clean, products, adjusted, nil
}

func clampQuantity(qty, stock int) int {
	limit := entity.MaxLineQuantity
	if stock < limit {
		limit = stock
	}
	if qty > limit {
		return limit
	}
	return qty
}

// parseItems converts a wire cart into typed ids. Malformed ids are dropped and reported
// through the adjusted flag.
func parseItems(raw map[string]int) (entity.CartItems, bool) {
	items := make(entity.CartItems, len(raw))
	adjusted := false
	for key, qty := range raw {
		id, err := uuid.Parse(key)
		if err != nil {
			adjusted = true
			continue
		}
		if qty > 0 {
			sum, capped := addQuantity(items[id], qty)
			items[id] = sum
			adjusted = adjusted || capped
		}
	}
	return items, adjusted
}

// addQuantity sums two line quantities, saturating at MaxLineQuantity so client
// supplied values can never wrap around.
func addQuantity(current, extra int) (int, bool) {
	capped := false
	if current > entity.MaxLineQuantity {
		current, capped = entity.MaxLineQuantity, true
	}
	if extra > entity.MaxLineQuantity {
		extra, capped = entity.MaxLineQuantity, true
	}
	if current < 0 {
		current = 0
	}
	if extra < 0 {
		extra = 0
	}
	sum := current + extra
	if sum > entity.MaxLineQuantity {
		return entity.MaxLineQuantity, true
	}
	return sum, capped
}

func buildCartView(items entity.CartItems, products map[uuid.UUID]entity.Product, adjusted bool, updatedAt time.Time) *dto.CartResponse {
	resp := &dto.CartResponse{
		Items:    make(map[string]int, len(items)),
		Lines:    make([]dto.CartLine, 0, len(items)),
		Subtotal: decimal.Zero,
		Adjusted: adjusted,
	}
	if !updatedAt.IsZero() {
		resp.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	}

	for id, qty := range items {
		product, ok := products[id]
		if !ok {
			continue
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(qty)))
		resp.Items[id.String()] = qty
		resp.Lines = append(resp.Lines, dto.CartLine{
			ProductID: id.String(),
			SKU:       product.SKU,
			Name:      product.Name,
			ImageURL:  product.ImageURL,
			UnitPrice: product.Price,
			Quantity:  qty,
			LineTotal: lineTotal,
			InStock:   product.Stock,
		})
		resp.Count += qty
		resp.Subtotal = resp.Subtotal.Add(lineTotal)
	}

	sort.Slice(resp.Lines, func(i, j int) bool {
		if resp.Lines[i].Name != resp.Lines[j].Name {
			return resp.Lines[i].Name < resp.Lines[j].Name
		}
		return resp.Lines[i].ProductID < resp.Lines[j].ProductID
	})
	return resp
}
