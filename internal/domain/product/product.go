package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// DefaultCategories are the category names seeded at bootstrap.
var DefaultCategories = []string{
	"electronics",
	"clothing",
	"footwear",
	"grocery",
	"furniture",
}

// Product represents a catalog item available for purchase. The catalog is
// maintained elsewhere; the order core only reads it.
type Product struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	CategoryID string
	CreatedAt  time.Time
}

// Category groups catalog products.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}

// CategoryRepository provides category reads plus the idempotent seeding
// run at bootstrap.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	// SeedDefaults inserts the given category names if they are not already
	// present. Safe to run on every startup.
	SeedDefaults(ctx context.Context, names []string) error
}
