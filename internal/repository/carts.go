package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepak445566/cv/internal/entity"
)

// CartsRepository stores one cart document per user.
type CartsRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (*entity.Cart, error)
	Save(ctx context.Context, userID uuid.UUID, items entity.CartItems) (*entity.Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// PGXCartsRepository keeps carts as JSONB maps of product id to quantity.
type PGXCartsRepository struct {
	pool pgxPool
}

// NewPGXCartsRepository wires a pgx backed repository.
func NewPGXCartsRepository(pool *pgxpool.Pool) *PGXCartsRepository {
	return &PGXCartsRepository{pool: pool}
}

func encodeCartItems(items entity.CartItems) (string, error) {
	raw := make(map[string]int, len(items))
	for id, qty := range items {
		if qty > 0 {
			raw[id.String()] = qty
		}
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("encode cart items: %w", err)
	}
	return string(payload), nil
}

func decodeCartItems(payload []byte) (entity.CartItems, error) {
	items := entity.CartItems{}
	if len(payload) == 0 {
		return items, nil
	}
	var raw map[string]int
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	for key, qty := range raw {
		id, err := uuid.Parse(key)
		if err != nil || qty <= 0 {
			continue
		}
		items[id] = qty
	}
	return items, nil
}

// Get returns the stored cart, or an empty one if the user never saved a cart.
func (r *PGXCartsRepository) Get(ctx context.Context, userID uuid.UUID) (*entity.Cart, error) {
	var (
		payload   []byte
		updatedAt time.Time
	)
	err := r.pool.QueryRow(ctx, `SELECT items, updated_at FROM carts WHERE user_id = $1`, userID).Scan(&payload, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.Cart{UserID: userID, Items: entity.CartItems{}}, nil
		}
		return nil, fmt.Errorf("query cart: %w", err)
	}

	items, err := decodeCartItems(payload)
	if err != nil {
		return nil, err
	}
	return &entity.Cart{UserID: userID, Items: items, UpdatedAt: updatedAt}, nil
}

// Save replaces the stored cart with items.
func (r *PGXCartsRepository) Save(ctx context.Context, userID uuid.UUID, items entity.CartItems) (*entity.Cart, error) {
	payload, err := encodeCartItems(items)
	if err != nil {
		return nil, err
	}

	var updatedAt time.Time
	err = r.pool.QueryRow(ctx, `
        INSERT INTO carts (user_id, items, updated_at)
        VALUES ($1, $2::jsonb, NOW())
        ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = NOW()
        RETURNING updated_at`, userID, payload).Scan(&updatedAt)
	if err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	saved, err := decodeCartItems([]byte(payload))
	if err != nil {
		return nil, err
	}
	return &entity.Cart{UserID: userID, Items: saved, UpdatedAt: updatedAt}, nil
}

// Clear empties the cart.
func (r *PGXCartsRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `UPDATE carts SET items = '{}'::jsonb, updated_at = NOW() WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
