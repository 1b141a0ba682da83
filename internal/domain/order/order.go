package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/prasiddha/kinmel/internal/domain/payment"
	"github.com/prasiddha/kinmel/internal/domain/product"
)

// Status enumerates order fulfilment states.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPreparation Status = "preparation"
	StatusOntheway    Status = "ontheway"
	StatusDelivery    Status = "delivery"
	StatusCancelled   Status = "cancelled"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparation, StatusOntheway, StatusDelivery, StatusCancelled:
		return true
	}
	return false
}

// ErrNotFound is returned when no order matches the given id (and owner,
// on user-scoped paths).
var ErrNotFound = errors.New("order not found")

// Order is a customer order. It owns its detail rows and references exactly
// one payment, created strictly before it.
type Order struct {
	ID              string
	PhoneNumber     string
	ShippingAddress string
	TotalAmount     decimal.Decimal
	UserID          string
	PaymentID       string
	Status          Status
	CreatedAt       time.Time
}

// Detail is a single product line within an order. Quantity is immutable
// after creation.
type Detail struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	CreatedAt time.Time
}

// OrderWithPayment is the read model for a user's order listing.
type OrderWithPayment struct {
	Order
	Payment payment.Payment
}

// DetailWithProduct is the read model for an order's line listing.
type DetailWithProduct struct {
	Detail
	Product product.Product
}

// Repository defines persistence operations for orders and their details.
type Repository interface {
	// CreateCheckout atomically inserts the payment, the order, and one
	// detail row per line item. Either everything is persisted or nothing is.
	CreateCheckout(ctx context.Context, o *Order, p *payment.Payment, details []Detail) error

	GetByID(ctx context.Context, id string) (*Order, error)
	// GetByIDForUser returns the order only when it belongs to userID.
	GetByIDForUser(ctx context.Context, id, userID string) (*Order, error)

	// ListByUser returns all orders of userID with their payments joined.
	ListByUser(ctx context.Context, userID string) ([]OrderWithPayment, error)
	// ListDetails returns all lines of orderID with their products joined.
	ListDetails(ctx context.Context, orderID string) ([]DetailWithProduct, error)

	UpdateStatus(ctx context.Context, id string, status Status) error

	// Delete removes the order's detail rows, its payment, and the order
	// itself, children first. Returns ErrNotFound when the order is absent.
	Delete(ctx context.Context, id string) error
}
