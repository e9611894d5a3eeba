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

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSKUDuplicate    = errors.New("sku already exists")
)

// ProductsRepository describes persistence operations for the catalogue.
type ProductsRepository interface {
	List(ctx context.Context, filter dto.ProductFilter) ([]entity.Product, int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.Product, error)
	Create(ctx context.Context, product *entity.Product) (*entity.Product, error)
	Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*entity.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetImage(ctx context.Context, id uuid.UUID, url string) (*entity.Product, error)
	BulkUpsert(ctx context.Context, records []BulkUpsertProductInput) (BulkUpsertResult, error)
}

// ProductPatch lists optional column updates. PriceCents is in minor units.
type ProductPatch struct {
	SKU         *string
	Name        *string
	Description *string
	Category    *string
	PriceCents  *int64
	Stock       *int
	ImageURL    *string
	Active      *bool
}

// BulkUpsertProductInput is a catalogue row coming from a CSV import.
type BulkUpsertProductInput struct {
	SKU         string
	Name        string
	Description string
	Category    string
	PriceCents  int64
	Stock       int
	ImageURL    *string
	Active      bool
}

// BulkUpsertResult summarises the number of rows inserted or updated.
type BulkUpsertResult struct {
	Inserted int
	Updated  int
	Total    int
}

// PGXProductsRepository implements ProductsRepository using pgx.
type PGXProductsRepository struct {
	pool pgxPool
}

// NewPGXProductsRepository wires a pgx backed repository.
func NewPGXProductsRepository(pool *pgxpool.Pool) *PGXProductsRepository {
	return &PGXProductsRepository{pool: pool}
}

const productColumns = `id, sku, name, description, category, price_cents, stock, image_url, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var (
		product    entity.Product
		priceCents int64
		imageURL   sql.NullString
	)
	if err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Category,
		&priceCents,
		&product.Stock,
		&imageURL,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		return nil, err
	}
	product.Price = entity.CentsToAmount(priceCents)
	product.ImageURL = nullStringToPtr(imageURL)
	return &product, nil
}

var productSorts = map[string]string{
	"":           "name ASC",
	"newest":     "created_at DESC",
	"price_asc":  "price_cents ASC, name ASC",
	"price_desc": "price_cents DESC, name ASC",
	"name":       "name ASC",
}

// List retrieves a page of products matching the filter together with the total match count.
func (r *PGXProductsRepository) List(ctx context.Context, filter dto.ProductFilter) ([]entity.Product, int, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if !filter.IncludeInactive {
		clauses = append(clauses, "active")
	}
	if filter.Q != "" {
		pattern := fmt.Sprintf("%%%s%%", filter.Q)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR sku ILIKE $%d)", idx, idx, idx))
		args = append(args, pattern)
		idx++
	}
	if filter.Category != "" {
		clauses = append(clauses, fmt.Sprintf("LOWER(category) = LOWER($%d)", idx))
		args = append(args, filter.Category)
		idx++
	}
	if filter.MinPrice != nil {
		clauses = append(clauses, fmt.Sprintf("price_cents >= $%d", idx))
		args = append(args, entity.AmountToCents(*filter.MinPrice))
		idx++
	}
	if filter.MaxPrice != nil {
		clauses = append(clauses, fmt.Sprintf("price_cents <= $%d", idx))
		args = append(args, entity.AmountToCents(*filter.MaxPrice))
		idx++
	}
	if filter.InStock {
		clauses = append(clauses, "stock > 0")
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	orderBy, ok := productSorts[filter.Sort]
	if !ok {
		orderBy = productSorts[""]
	}
	limit, offset := pageBounds(filter.Page, filter.PerPage)
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY %s LIMIT $%d OFFSET $%d", productColumns, where, orderBy, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]entity.Product, 0, limit)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return products, total, nil
}

// FindByID fetches a single product.
func (r *PGXProductsRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	product, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("query product: %w", err)
	}
	return product, nil
}

// FindByIDs loads the given products keyed by id. Unknown ids are absent from the map.
func (r *PGXProductsRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]entity.Product, error) {
	out := make(map[uuid.UUID]entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("query products by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		out[product.ID] = *product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// Create inserts a product.
func (r *PGXProductsRepository) Create(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO products (sku, name, description, category, price_cents, stock, image_url, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+productColumns,
		product.SKU,
		product.Name,
		product.Description,
		product.Category,
		entity.AmountToCents(product.Price),
		product.Stock,
		stringOrNil(product.ImageURL),
		product.Active,
	)

	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err, "products_sku_key") {
			return nil, fmt.Errorf("%w: %v", ErrSKUDuplicate, err)
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

// Update applies a partial update.
func (r *PGXProductsRepository) Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*entity.Product, error) {
	setClauses := make([]string, 0, 9)
	args := make([]any, 0, 9)
	idx := 1

	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if patch.SKU != nil {
		add("sku", *patch.SKU)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.PriceCents != nil {
		add("price_cents", *patch.PriceCents)
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}
	if patch.ImageURL != nil {
		add("image_url", stringOrNil(patch.ImageURL))
	}
	if patch.Active != nil {
		add("active", *patch.Active)
	}

	if len(setClauses) == 0 {
		return r.FindByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d RETURNING %s`, strings.Join(setClauses, ", "), idx, productColumns)

	product, err := scanProduct(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if isUniqueViolation(err, "products_sku_key") {
			return nil, fmt.Errorf("%w: %v", ErrSKUDuplicate, err)
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

// Delete removes a product. Past orders keep their own copy of the line data.
func (r *PGXProductsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SetImage stores the public image URL of a product.
func (r *PGXProductsRepository) SetImage(ctx context.Context, id uuid.UUID, url string) (*entity.Product, error) {
	return r.Update(ctx, id, ProductPatch{ImageURL: &url})
}

const bulkUpsertProductSQL = `
        INSERT INTO products (sku, name, description, category, price_cents, stock, image_url, active, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        ON CONFLICT ON CONSTRAINT products_sku_key DO UPDATE SET
            name = EXCLUDED.name,
            description = EXCLUDED.description,
            category = EXCLUDED.category,
            price_cents = EXCLUDED.price_cents,
            stock = EXCLUDED.stock,
            image_url = COALESCE(EXCLUDED.image_url, products.image_url),
            active = EXCLUDED.active,
            updated_at = NOW()
        RETURNING xmax = 0;
    `

// BulkUpsert inserts or updates products keyed by SKU in one transaction.
func (r *PGXProductsRepository) BulkUpsert(ctx context.Context, records []BulkUpsertProductInput) (BulkUpsertResult, error) {
	var result BulkUpsertResult
	if len(records) == 0 {
		return result, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, fmt.Errorf("start bulk upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, record := range records {
		var inserted bool
		err := tx.QueryRow(ctx, bulkUpsertProductSQL,
			record.SKU,
			record.Name,
			record.Description,
			record.Category,
			record.PriceCents,
			record.Stock,
			stringOrNil(record.ImageURL),
			record.Active,
		).Scan(&inserted)
		if err != nil {
			return result, fmt.Errorf("bulk upsert product %q: %w", record.SKU, err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
		result.Total++
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit bulk upsert tx: %w", err)
	}

	return result, nil
}
