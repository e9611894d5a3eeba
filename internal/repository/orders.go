package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// StockError reports the cart line that could not be fulfilled. It matches ErrInsufficientStock.
type StockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// PlaceOrderInput carries everything checkout needs beyond the stored cart.
type PlaceOrderInput struct {
	UserID          uuid.UUID
	Number          string
	ShippingAddress entity.ShippingAddress
	// ShippingCents computes the shipping fee from the subtotal, both in minor units.
	ShippingCents func(subtotalCents int64) int64
}

// OrdersRepository declares persistence operations for orders.
type OrdersRepository interface {
	Place(ctx context.Context, input PlaceOrderInput) (*entity.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) ([]entity.Order, int, error)
	List(ctx context.Context, filter dto.OrderFilter) ([]entity.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*entity.Order, error)
}

// PGXOrdersRepository implements OrdersRepository with pgx.
type PGXOrdersRepository struct {
	pool pgxPool
}

// NewPGXOrdersRepository wires a pgx backed repository.
func NewPGXOrdersRepository(pool *pgxpool.Pool) *PGXOrdersRepository {
	return &PGXOrdersRepository{pool: pool}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const orderColumns = `id, number, user_id, status, shipping_address, subtotal_cents, shipping_cents, total_cents, created_at, updated_at`

func scanOrder(row pgx.Row) (*entity.Order, error) {
	var (
		order    entity.Order
		address  []byte
		subtotal int64
		shipping int64
		total    int64
	)
	if err := row.Scan(
		&order.ID,
		&order.Number,
		&order.UserID,
		&order.Status,
		&address,
		&subtotal,
		&shipping,
		&total,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	order.Subtotal = entity.CentsToAmount(subtotal)
	order.Shipping = entity.CentsToAmount(shipping)
	order.Total = entity.CentsToAmount(total)
	order.Items = []entity.OrderItem{}
	return &order, nil
}

type stockRow struct {
	sku        string
	name       string
	priceCents int64
	stock      int
	active     bool
}

// Place turns the user's stored cart into an order. Product rows are locked, stock is
// decremented and the cart is emptied in the same transaction.
func (r *PGXOrdersRepository) Place(ctx context.Context, input PlaceOrderInput) (*entity.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start checkout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var payload []byte
	if err := tx.QueryRow(ctx, `SELECT items FROM carts WHERE user_id = $1 FOR UPDATE`, input.UserID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}
	items, err := decodeCartItems(payload)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := items.ProductIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	rows, err := tx.Query(ctx, `
        SELECT id, sku, name, price_cents, stock, active
        FROM products
        WHERE id = ANY($1::uuid[])
        ORDER BY id
        FOR UPDATE`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	stock := make(map[uuid.UUID]stockRow, len(ids))
	for rows.Next() {
		var (
			id  uuid.UUID
			row stockRow
		)
		if err := rows.Scan(&id, &row.sku, &row.name, &row.priceCents, &row.stock, &row.active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan product stock: %w", err)
		}
		stock[id] = row
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product stock: %w", err)
	}

	order := &entity.Order{
		Number:          input.Number,
		UserID:          input.UserID,
		Status:          entity.OrderPending,
		ShippingAddress: input.ShippingAddress,
		Items:           make([]entity.OrderItem, 0, len(ids)),
	}
	var subtotalCents int64
	for _, id := range ids {
		qty := items[id]
		product, ok := stock[id]
		if !ok || !product.active {
			return nil, &StockError{ProductID: id, Requested: qty}
		}
		if product.stock < qty {
			return nil, &StockError{ProductID: id, Requested: qty, Available: product.stock}
		}
		lineCents := product.priceCents * int64(qty)
		subtotalCents += lineCents
		order.Items = append(order.Items, entity.OrderItem{
			ProductID: id,
			SKU:       product.sku,
			Name:      product.name,
			UnitPrice: entity.CentsToAmount(product.priceCents),
			Quantity:  qty,
			LineTotal: entity.CentsToAmount(lineCents),
		})
	}

	for _, item := range order.Items {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1`, item.ProductID, item.Quantity); err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	var shippingCents int64
	if input.ShippingCents != nil {
		shippingCents = input.ShippingCents(subtotalCents)
	}
	address, err := json.Marshal(input.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}

	err = tx.QueryRow(ctx, `
        INSERT INTO orders (number, user_id, status, shipping_address, subtotal_cents, shipping_cents, total_cents)
        VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)
        RETURNING id, created_at, updated_at`,
		order.Number,
		order.UserID,
		order.Status,
		string(address),
		subtotalCents,
		shippingCents,
		subtotalCents+shippingCents,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err := tx.Exec(ctx, `
            INSERT INTO order_items (order_id, product_id, sku, name, unit_price_cents, quantity)
            VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, item.ProductID, item.SKU, item.Name, entity.AmountToCents(item.UnitPrice), item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE carts SET items = '{}'::jsonb, updated_at = NOW() WHERE user_id = $1`, input.UserID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit checkout tx: %w", err)
	}

	order.Subtotal = entity.CentsToAmount(subtotalCents)
	order.Shipping = entity.CentsToAmount(shippingCents)
	order.Total = entity.CentsToAmount(subtotalCents + shippingCents)
	return order, nil
}

// FindByID loads an order with its items.
func (r *PGXOrdersRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("query order: %w", err)
	}
	if err := attachItems(ctx, r.pool, []*entity.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListByUser returns a page of the user's orders, newest first.
func (r *PGXOrdersRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter dto.OrderFilter) ([]entity.Order, int, error) {
	return r.list(ctx, &userID, filter)
}

// List returns a page of all orders, newest first.
func (r *PGXOrdersRepository) List(ctx context.Context, filter dto.OrderFilter) ([]entity.Order, int, error) {
	return r.list(ctx, nil, filter)
}

func (r *PGXOrdersRepository) list(ctx context.Context, userID *uuid.UUID, filter dto.OrderFilter) ([]entity.Order, int, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)
	if userID != nil {
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", idx))
		args = append(args, *userID)
		idx++
	}
	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PerPage)
	query := fmt.Sprintf("SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", orderColumns, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	var orders []*entity.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}

	if err := attachItems(ctx, r.pool, orders); err != nil {
		return nil, 0, err
	}

	out := make([]entity.Order, 0, len(orders))
	for _, order := range orders {
		out = append(out, *order)
	}
	return out, total, nil
}

// UpdateStatus moves an order along its lifecycle. Cancelling returns the reserved
// stock to the catalogue.
func (r *PGXOrdersRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*entity.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start order status tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if !entity.CanTransition(current, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, status)
	}

	if status == entity.OrderCancelled {
		_, err := tx.Exec(ctx, `
            UPDATE products p
            SET stock = p.stock + oi.quantity, updated_at = NOW()
            FROM order_items oi
            WHERE oi.order_id = $1 AND p.id = oi.product_id`, id)
		if err != nil {
			return nil, fmt.Errorf("restore stock: %w", err)
		}
	}

	order, err := scanOrder(tx.QueryRow(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+orderColumns, id, status))
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if err := attachItems(ctx, tx, []*entity.Order{order}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order status tx: %w", err)
	}
	return order, nil
}

func attachItems(ctx context.Context, q queryer, orders []*entity.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*entity.Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
		ids = append(ids, order.ID)
	}

	rows, err := q.Query(ctx, `
        SELECT order_id, product_id, sku, name, unit_price_cents, quantity
        FROM order_items
        WHERE order_id = ANY($1::uuid[])
        ORDER BY name`, uuidStrings(ids))
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID   uuid.UUID
			item      entity.OrderItem
			unitCents int64
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.SKU, &item.Name, &unitCents, &item.Quantity); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		item.UnitPrice = entity.CentsToAmount(unitCents)
		item.LineTotal = entity.CentsToAmount(unitCents * int64(item.Quantity))
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return rows.Err()
}
