package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prasiddha/kinmel/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, COALESCE(category_id::text, ''), created_at
		FROM products ORDER BY name`

	getProductByIDSQL = `SELECT id, name, price, COALESCE(category_id::text, ''), created_at
		FROM products WHERE id = $1`

	listCategoriesSQL = `SELECT id, name, created_at FROM categories ORDER BY name`

	insertCategorySQL = `INSERT INTO categories (id, name)
		VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`

	upsertProductSQL = `INSERT INTO products (id, name, price, category_id)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid)
		ON CONFLICT (name) DO UPDATE
		SET price = EXCLUDED.price, category_id = EXCLUDED.category_id`
)

var (
	_ product.Repository         = (*ProductRepository)(nil)
	_ product.CategoryRepository = (*CategoryRepository)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all catalog products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Upsert inserts a product or, when one with the same name exists, updates
// its price and category. Used by the seed tool.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.CategoryID); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.Name, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.CategoryID, &p.CreatedAt)
	return p, err
}

// CategoryRepository implements product.CategoryRepository backed by
// PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]product.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Category, error) {
		var c product.Category
		err := row.Scan(&c.ID, &c.Name, &c.CreatedAt)
		return c, err
	})
}

// SeedDefaults inserts the given category names, skipping ones that already
// exist. Safe to run on every startup.
func (r *CategoryRepository) SeedDefaults(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := r.pool.Exec(ctx, insertCategorySQL, uuid.New().String(), name); err != nil {
			return fmt.Errorf("seeding category %q: %w", name, err)
		}
	}
	return nil
}
