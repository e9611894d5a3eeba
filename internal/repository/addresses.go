package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepak445566/cv/internal/entity"
)

// ErrAddressNotFound is returned when the address does not exist or belongs to another user.
var ErrAddressNotFound = errors.New("address not found")

// AddressesRepository declares persistence operations for shipping addresses.
type AddressesRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Address, error)
	FindByID(ctx context.Context, userID, id uuid.UUID) (*entity.Address, error)
	Create(ctx context.Context, address *entity.Address) (*entity.Address, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch AddressPatch) (*entity.Address, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*entity.Address, error)
}

// AddressPatch holds optional column updates. An empty string clears a nullable column.
type AddressPatch struct {
	FullName   *string
	Line1      *string
	Line2      *string
	City       *string
	State      *string
	PostalCode *string
	Country    *string
	Phone      *string
}

// PGXAddressesRepository implements AddressesRepository with pgx.
type PGXAddressesRepository struct {
	pool pgxPool
}

// NewPGXAddressesRepository wires a pgx backed repository.
func NewPGXAddressesRepository(pool *pgxpool.Pool) *PGXAddressesRepository {
	return &PGXAddressesRepository{pool: pool}
}

const addressColumns = `id, user_id, full_name, line1, line2, city, state, postal_code, country, phone, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (*entity.Address, error) {
	var (
		address entity.Address
		line2   sql.NullString
		state   sql.NullString
		phone   sql.NullString
	)
	if err := row.Scan(
		&address.ID,
		&address.UserID,
		&address.FullName,
		&address.Line1,
		&line2,
		&address.City,
		&state,
		&address.PostalCode,
		&address.Country,
		&phone,
		&address.IsDefault,
		&address.CreatedAt,
		&address.UpdatedAt,
	); err != nil {
		return nil, err
	}
	address.Line2 = nullStringToPtr(line2)
	address.State = nullStringToPtr(state)
	address.Phone = nullStringToPtr(phone)
	return &address, nil
}

// ListByUser returns the user's addresses, default first.
func (r *PGXAddressesRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Address, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []entity.Address{}
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, *address)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate addresses: %w", err)
	}
	return addresses, nil
}

// FindByID fetches an address owned by userID.
func (r *PGXAddressesRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*entity.Address, error) {
	address, err := scanAddress(r.pool.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("query address: %w", err)
	}
	return address, nil
}

// Create inserts an address. The first address of a user always becomes the default,
// and a new default demotes the previous one.
func (r *PGXAddressesRepository) Create(ctx context.Context, address *entity.Address) (*entity.Address, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start address tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Concurrent creates for the same user queue on the user row, so only one of them
	// can see an empty address book and claim the default.
	var owner uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, address.UserID).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM addresses WHERE user_id = $1`, address.UserID).Scan(&existing); err != nil {
		return nil, fmt.Errorf("count addresses: %w", err)
	}
	makeDefault := address.IsDefault || existing == 0
	if makeDefault && existing > 0 {
		if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default`, address.UserID); err != nil {
			return nil, fmt.Errorf("clear default address: %w", err)
		}
	}

	created, err := scanAddress(tx.QueryRow(ctx, `
        INSERT INTO addresses (user_id, full_name, line1, line2, city, state, postal_code, country, phone, is_default)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING `+addressColumns,
		address.UserID,
		address.FullName,
		address.Line1,
		stringOrNil(address.Line2),
		address.City,
		stringOrNil(address.State),
		address.PostalCode,
		address.Country,
		stringOrNil(address.Phone),
		makeDefault,
	))
	if err != nil {
		return nil, fmt.Errorf("insert address: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit address tx: %w", err)
	}
	return created, nil
}

// Update patches an address owned by userID.
func (r *PGXAddressesRepository) Update(ctx context.Context, userID, id uuid.UUID, patch AddressPatch) (*entity.Address, error) {
	setClauses := make([]string, 0, 9)
	args := make([]any, 0, 10)
	idx := 1

	required := func(column string, value *string) {
		if value == nil {
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, *value)
		idx++
	}
	optional := func(column string, value *string) {
		if value == nil {
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, stringOrNil(value))
		idx++
	}
	required("full_name", patch.FullName)
	required("line1", patch.Line1)
	optional("line2", patch.Line2)
	required("city", patch.City)
	optional("state", patch.State)
	required("postal_code", patch.PostalCode)
	required("country", patch.Country)
	optional("phone", patch.Phone)

	if len(setClauses) == 0 {
		return r.FindByID(ctx, userID, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE addresses SET %s WHERE id = $%d AND user_id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), idx, idx+1, addressColumns)

	address, err := scanAddress(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("update address: %w", err)
	}
	return address, nil
}

// Delete removes an address. When the default is removed the most recent remaining
// address is promoted.
func (r *PGXAddressesRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("start address tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var wasDefault bool
	err = tx.QueryRow(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2 RETURNING is_default`, id, userID).Scan(&wasDefault)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAddressNotFound
		}
		return fmt.Errorf("delete address: %w", err)
	}

	if wasDefault {
		_, err := tx.Exec(ctx, `
            UPDATE addresses SET is_default = TRUE, updated_at = NOW()
            WHERE id = (SELECT id FROM addresses WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1)`, userID)
		if err != nil {
			return fmt.Errorf("promote default address: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit address tx: %w", err)
	}
	return nil
}

// SetDefault marks the address as the user's default and demotes the previous one.
func (r *PGXAddressesRepository) SetDefault(ctx context.Context, userID, id uuid.UUID) (*entity.Address, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start address tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND is_default AND id <> $2`, userID, id); err != nil {
		return nil, fmt.Errorf("clear default address: %w", err)
	}

	address, err := scanAddress(tx.QueryRow(ctx, `
        UPDATE addresses SET is_default = TRUE, updated_at = NOW()
        WHERE id = $1 AND user_id = $2
        RETURNING `+addressColumns, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("set default address: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit address tx: %w", err)
	}
	return address, nil
}
