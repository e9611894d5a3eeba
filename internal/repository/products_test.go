package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/deepak445566/cv/internal/dto"
	"github.com/deepak445566/cv/internal/entity"
)

func scanProductInto(id uuid.UUID, sku string, priceCents int64, stock int) func(dest ...any) error {
	return func(dest ...any) error {
		now := time.Now()
		*dest[0].(*uuid.UUID) = id
		*dest[1].(*string) = sku
		*dest[2].(*string) = "Product " + sku
		*dest[3].(*string) = ""
		*dest[4].(*string) = "books"
		*dest[5].(*int64) = priceCents
		*dest[6].(*int) = stock
		*dest[7].(*sql.NullString) = sql.NullString{}
		*dest[8].(*bool) = true
		*dest[9].(*time.Time) = now
		*dest[10].(*time.Time) = now
		return nil
	}
}

func TestPGXProductsRepository_List(t *testing.T) {
	var (
		countQuery string
		countArgs  []any
		listQuery  string
		listArgs   []any
	)
	minPrice := decimal.RequireFromString("10.50")
	repo := &PGXProductsRepository{pool: &stubPool{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			countQuery, countArgs = query, args
			return &stubRow{scan: func(dest ...any) error {
				*dest[0].(*int) = 42
				return nil
			}}
		},
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			listQuery, listArgs = query, args
			return &stubRows{scans: []func(dest ...any) error{
				scanProductInto(uuid.New(), "BK-1", 1999, 3),
			}}, nil
		},
	}}

	products, total, err := repo.List(context.Background(), dto.ProductFilter{
		Q:        "go",
		Category: "Books",
		MinPrice: &minPrice,
		InStock:  true,
		Sort:     "price_asc",
		Page:     2,
		PerPage:  10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 || len(products) != 1 {
		t.Fatalf("unexpected result: total=%d products=%+v", total, products)
	}
	if !products[0].Price.Equal(decimal.RequireFromString("19.99")) {
		t.Fatalf("unexpected price: %s", products[0].Price)
	}
	if !contains(countQuery, "WHERE active AND (name ILIKE $1") || !contains(countQuery, "price_cents >= $3 AND stock > 0") {
		t.Fatalf("unexpected count query %q", countQuery)
	}
	if len(countArgs) != 3 || countArgs[2].(int64) != 1050 {
		t.Fatalf("unexpected count args %v", countArgs)
	}
	if !contains(listQuery, "ORDER BY price_cents ASC, name ASC LIMIT $4 OFFSET $5") {
		t.Fatalf("unexpected list query %q", listQuery)
	}
	if listArgs[3].(int) != 10 || listArgs[4].(int) != 10 {
		t.Fatalf("unexpected paging args %v", listArgs)
	}
}

func TestPGXProductsRepository_FindByID(t *testing.T) {
	repo := &PGXProductsRepository{pool: &stubPool{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			return &stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}}
	if _, err := repo.FindByID(context.Background(), uuid.New()); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestPGXProductsRepository_FindByIDs(t *testing.T) {
	known := uuid.New()
	repo := &PGXProductsRepository{pool: &stubPool{
		queryFunc: func(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
			if ids := args[0].([]string); len(ids) != 2 {
				t.Fatalf("unexpected ids %v", ids)
			}
			return &stubRows{scans: []func(dest ...any) error{scanProductInto(known, "A", 100, 1)}}, nil
		},
	}}

	found, err := repo.FindByIDs(context.Background(), []uuid.UUID{known, uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(found) != 1 || found[known].SKU != "A" {
		t.Fatalf("unexpected products %+v", found)
	}

	empty, err := repo.FindByIDs(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty map, got %v %v", empty, err)
	}
}

func TestPGXProductsRepository_CreateDuplicateSKU(t *testing.T) {
	repo := &PGXProductsRepository{pool: &stubPool{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			return &stubRow{scan: func(dest ...any) error {
				return &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"}
			}}
		},
	}}
	_, err := repo.Create(context.Background(), &entity.Product{SKU: "A", Name: "A", Price: decimal.NewFromInt(1)})
	if !errors.Is(err, ErrSKUDuplicate) {
		t.Fatalf("expected ErrSKUDuplicate, got %v", err)
	}
}

func TestPGXProductsRepository_UpdateConvertsPrice(t *testing.T) {
	var gotArgs []any
	repo := &PGXProductsRepository{pool: &stubPool{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			gotArgs = args
			return &stubRow{scan: scanProductInto(uuid.New(), "A", 250, 5)}
		},
	}}
	cents := int64(250)
	if _, err := repo.Update(context.Background(), uuid.New(), ProductPatch{PriceCents: &cents}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotArgs) != 2 || gotArgs[0].(int64) != 250 {
		t.Fatalf("unexpected args %v", gotArgs)
	}
}

func TestPGXProductsRepository_BulkUpsert(t *testing.T) {
	call := 0
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			call++
			inserted := call == 1
			return &stubRow{scan: func(dest ...any) error {
				*dest[0].(*bool) = inserted
				return nil
			}}
		},
	}
	repo := &PGXProductsRepository{pool: poolWithTx(tx)}

	result, err := repo.BulkUpsert(context.Background(), []BulkUpsertProductInput{
		{SKU: "A", Name: "A", PriceCents: 100, Stock: 1, Active: true},
		{SKU: "B", Name: "B", PriceCents: 200, Stock: 2, Active: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inserted != 1 || result.Updated != 1 || result.Total != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !tx.committed {
		t.Fatalf("expected commit")
	}
}

func TestPGXProductsRepository_BulkUpsertRollsBack(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			return &stubRow{scan: func(dest ...any) error { return errors.New("boom") }}
		},
	}
	repo := &PGXProductsRepository{pool: poolWithTx(tx)}

	if _, err := repo.BulkUpsert(context.Background(), []BulkUpsertProductInput{{SKU: "A"}}); err == nil {
		t.Fatalf("expected error")
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback without commit")
	}
}
