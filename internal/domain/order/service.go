package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prasiddha/kinmel/internal/domain/payment"
	"github.com/prasiddha/kinmel/internal/khalti"
)

// Sentinel errors for business-rule rejections. They map to 4xx outcomes at
// the HTTP layer, never to 500s.
var (
	// ErrNotVerified means the gateway reported a transaction status other
	// than Completed. The payment stays unpaid.
	ErrNotVerified = errors.New("payment not verified")
	// ErrCannotCancel means the order is already in active fulfilment
	// (preparation or ontheway) and the owner may no longer cancel it.
	ErrCannotCancel = errors.New("order can't be cancelled")
)

// ValidationError indicates missing or invalid required input, correctable
// by the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// CheckoutItem is a single requested product line.
type CheckoutItem struct {
	ProductID string
	Quantity  int
}

// CheckoutRequest holds the input for placing an order. UserID comes from
// the authenticated identity, never from the request body.
type CheckoutRequest struct {
	UserID          string
	PhoneNumber     string
	ShippingAddress string
	TotalAmount     decimal.Decimal
	PaymentMethod   payment.Method
	Items           []CheckoutItem
}

// CheckoutResult is the outcome of a placed order. PaymentURL is set only
// for gateway-backed payment methods.
type CheckoutResult struct {
	OrderID    string
	Message    string
	PaymentURL string
}

// Service orchestrates order creation, payment verification, and status
// transitions. User-scoped operations take an owner id and filter by it;
// administrative operations deliberately take none.
type Service struct {
	orders   Repository
	payments payment.Repository
	gateway  khalti.Gateway
}

// NewService creates an order Service with the required dependencies.
func NewService(orders Repository, payments payment.Repository, gateway khalti.Gateway) *Service {
	return &Service{
		orders:   orders,
		payments: payments,
		gateway:  gateway,
	}
}

// Checkout validates the request, persists the payment, the order, and one
// detail row per item in a single transaction, and initiates the gateway
// payment when the method requires it.
//
// A gateway failure after the transaction has committed propagates to the
// caller with the rows left in place; verification can still settle the
// payment later through VerifyTransaction.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	p := &payment.Payment{
		ID:     uuid.New().String(),
		Method: req.PaymentMethod,
		Status: payment.StatusUnpaid,
	}
	o := &Order{
		ID:              uuid.New().String(),
		PhoneNumber:     req.PhoneNumber,
		ShippingAddress: req.ShippingAddress,
		TotalAmount:     req.TotalAmount,
		UserID:          req.UserID,
		PaymentID:       p.ID,
		Status:          StatusPending,
	}

	details := make([]Detail, len(req.Items))
	for i, item := range req.Items {
		details[i] = Detail{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	if err := s.orders.CreateCheckout(ctx, o, p, details); err != nil {
		return nil, errors.Wrap(err, "create checkout")
	}

	if req.PaymentMethod != payment.MethodKhalti {
		return &CheckoutResult{
			OrderID: o.ID,
			Message: "Order placed successfully",
		}, nil
	}

	// Gateway amounts are in minor units (paisa).
	initResp, err := s.gateway.Initiate(ctx, khalti.InitiateRequest{
		PurchaseOrderID:   o.ID,
		Amount:            req.TotalAmount.Mul(decimal.NewFromInt(100)).IntPart(),
		PurchaseOrderName: "orderName_" + o.ID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "initiate payment")
	}

	if err := s.payments.SetPidx(ctx, p.ID, initResp.Pidx); err != nil {
		return nil, errors.Wrap(err, "persist pidx")
	}

	return &CheckoutResult{
		OrderID:    o.ID,
		Message:    "order placed success",
		PaymentURL: initResp.PaymentURL,
	}, nil
}

func validateCheckout(req CheckoutRequest) error {
	switch {
	case req.PhoneNumber == "",
		req.ShippingAddress == "",
		!req.TotalAmount.IsPositive(),
		req.PaymentMethod == "",
		len(req.Items) == 0:
		return &ValidationError{Msg: "Please fill all the fields"}
	}
	if !req.PaymentMethod.Valid() {
		return &ValidationError{Msg: fmt.Sprintf("unknown payment method %q", req.PaymentMethod)}
	}
	return nil
}

// VerifyTransaction looks up the gateway transaction for pidx and marks the
// matching payment paid when the gateway reports Completed. Any other status
// yields ErrNotVerified and leaves the payment untouched. Repeating the call
// on a completed transaction is safe: the update is idempotent by value.
func (s *Service) VerifyTransaction(ctx context.Context, pidx string) error {
	if pidx == "" {
		return &ValidationError{Msg: "pidx is required"}
	}

	resp, err := s.gateway.Lookup(ctx, pidx)
	if err != nil {
		return errors.Wrap(err, "lookup transaction")
	}

	if resp.Status != khalti.StatusCompleted {
		return ErrNotVerified
	}

	if err := s.payments.UpdateStatusByPidx(ctx, pidx, payment.StatusPaid); err != nil {
		return errors.Wrap(err, "update payment status")
	}
	return nil
}

// CancelMyOrder cancels the owner's order unless it is already in active
// fulfilment.
func (s *Service) CancelMyOrder(ctx context.Context, orderID, userID string) error {
	o, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if err != nil {
		return err
	}

	if o.Status == StatusPreparation || o.Status == StatusOntheway {
		return ErrCannotCancel
	}

	return s.orders.UpdateStatus(ctx, orderID, StatusCancelled)
}

// ChangeOrderStatus sets an order's status unconditionally. Unlike the
// owner-facing cancel path there is no transition guard here: any status may
// follow any other when issued administratively.
func (s *Service) ChangeOrderStatus(ctx context.Context, orderID string, status Status) error {
	if status == "" {
		return &ValidationError{Msg: "order status is required"}
	}
	if !status.Valid() {
		return &ValidationError{Msg: fmt.Sprintf("unknown order status %q", status)}
	}
	return s.orders.UpdateStatus(ctx, orderID, status)
}

// ChangePaymentStatus resolves the order's payment and sets its status.
func (s *Service) ChangePaymentStatus(ctx context.Context, orderID string, status payment.Status) error {
	if status == "" {
		return &ValidationError{Msg: "payment status is required"}
	}
	if !status.Valid() {
		return &ValidationError{Msg: fmt.Sprintf("unknown payment status %q", status)}
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	return s.payments.UpdateStatus(ctx, o.PaymentID, status)
}

// DeleteOrder removes the order with its detail and payment rows, children
// first. Returns ErrNotFound when no such order exists.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	return s.orders.Delete(ctx, orderID)
}

// MyOrders lists the owner's orders with their payments joined. An empty
// result is not an error.
func (s *Service) MyOrders(ctx context.Context, userID string) ([]OrderWithPayment, error) {
	return s.orders.ListByUser(ctx, userID)
}

// OrderDetails lists the lines of an order with their products joined.
func (s *Service) OrderDetails(ctx context.Context, orderID string) ([]DetailWithProduct, error) {
	return s.orders.ListDetails(ctx, orderID)
}
