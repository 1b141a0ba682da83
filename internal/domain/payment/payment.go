package payment

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Method enumerates the supported payment methods.
type Method string

const (
	// MethodCOD is cash on delivery; no gateway call is involved.
	MethodCOD Method = "cod"
	// MethodKhalti routes the payment through the Khalti gateway.
	MethodKhalti Method = "khalti"
)

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	return m == MethodCOD || m == MethodKhalti
}

// ParseMethod normalizes a client-supplied method string. Clients send the
// method in whatever case they like ("COD", "Khalti"), so matching is
// case-insensitive; validity is still checked separately via Valid.
func ParseMethod(s string) Method {
	return Method(strings.ToLower(s))
}

// Status enumerates payment settlement states.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
)

// Valid reports whether s is a known payment status.
func (s Status) Valid() bool {
	return s == StatusUnpaid || s == StatusPaid
}

// ErrNotFound is returned when no payment matches the given id or pidx.
var ErrNotFound = errors.New("payment not found")

// Payment is the settlement record for exactly one order. It is created
// before the order so the order's payment reference is valid at insert time.
type Payment struct {
	ID        string
	Method    Method
	Pidx      string // gateway correlation id; empty until initiation succeeds
	Status    Status
	CreatedAt time.Time
}

// Repository defines persistence operations for payments. Creation happens
// inside the checkout transaction (see order.Repository.CreateCheckout).
type Repository interface {
	// SetPidx stores the gateway correlation id on a payment. The service
	// calls it exactly once, immediately after a successful initiation.
	SetPidx(ctx context.Context, id, pidx string) error
	// UpdateStatusByPidx flips the status of the payment matching pidx.
	// Repeating the call with the same status is a no-op by value.
	UpdateStatusByPidx(ctx context.Context, pidx string, status Status) error
	// UpdateStatus flips the status of the payment with the given id.
	UpdateStatus(ctx context.Context, id string, status Status) error
}
