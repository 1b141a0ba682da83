package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasiddha/kinmel/internal/domain/payment"
	"github.com/prasiddha/kinmel/internal/khalti"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	lastOrder   *Order
	lastPayment *payment.Payment
	lastDetails []Detail
	checkoutErr error

	byID        map[string]*Order
	byIDForUser map[string]*Order // keyed by id + "/" + userID

	statusUpdates map[string]Status
	updateErr     error

	deleted   []string
	deleteErr error

	listByUser  []OrderWithPayment
	listDetails []DetailWithProduct
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		byID:          make(map[string]*Order),
		byIDForUser:   make(map[string]*Order),
		statusUpdates: make(map[string]Status),
	}
}

func (m *mockOrderRepo) CreateCheckout(_ context.Context, o *Order, p *payment.Payment, details []Detail) error {
	if m.checkoutErr != nil {
		return m.checkoutErr
	}
	m.lastOrder = o
	m.lastPayment = p
	m.lastDetails = details
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) GetByIDForUser(_ context.Context, id, userID string) (*Order, error) {
	o, ok := m.byIDForUser[id+"/"+userID]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, _ string) ([]OrderWithPayment, error) {
	return m.listByUser, nil
}

func (m *mockOrderRepo) ListDetails(_ context.Context, _ string) ([]DetailWithProduct, error) {
	return m.listDetails, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.statusUpdates[id] = status
	return nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockPaymentRepo struct {
	pidxByID     map[string]string
	statusByPidx map[string]payment.Status
	statusByID   map[string]payment.Status
	setPidxErr   error
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{
		pidxByID:     make(map[string]string),
		statusByPidx: make(map[string]payment.Status),
		statusByID:   make(map[string]payment.Status),
	}
}

func (m *mockPaymentRepo) SetPidx(_ context.Context, id, pidx string) error {
	if m.setPidxErr != nil {
		return m.setPidxErr
	}
	m.pidxByID[id] = pidx
	return nil
}

func (m *mockPaymentRepo) UpdateStatusByPidx(_ context.Context, pidx string, status payment.Status) error {
	m.statusByPidx[pidx] = status
	return nil
}

func (m *mockPaymentRepo) UpdateStatus(_ context.Context, id string, status payment.Status) error {
	m.statusByID[id] = status
	return nil
}

type mockGateway struct {
	initiateCalls int
	lastInitiate  khalti.InitiateRequest
	initiateResp  *khalti.InitiateResponse
	initiateErr   error

	lookupCalls int
	lookupResp  *khalti.LookupResponse
	lookupErr   error
}

func (m *mockGateway) Initiate(_ context.Context, req khalti.InitiateRequest) (*khalti.InitiateResponse, error) {
	m.initiateCalls++
	m.lastInitiate = req
	return m.initiateResp, m.initiateErr
}

func (m *mockGateway) Lookup(_ context.Context, _ string) (*khalti.LookupResponse, error) {
	m.lookupCalls++
	return m.lookupResp, m.lookupErr
}

// --- Helpers ---

func validCheckoutRequest() CheckoutRequest {
	return CheckoutRequest{
		UserID:          "u1",
		PhoneNumber:     "9800000000",
		ShippingAddress: "KTM",
		TotalAmount:     decimal.NewFromInt(500),
		PaymentMethod:   payment.MethodCOD,
		Items:           []CheckoutItem{{ProductID: "p1", Quantity: 2}},
	}
}

// --- Checkout ---

func TestCheckout_COD(t *testing.T) {
	repo := newMockOrderRepo()
	gw := &mockGateway{}
	svc := NewService(repo, newMockPaymentRepo(), gw)

	result, err := svc.Checkout(context.Background(), validCheckoutRequest())
	require.NoError(t, err)

	assert.Equal(t, "Order placed successfully", result.Message)
	assert.Empty(t, result.PaymentURL)
	assert.Equal(t, 0, gw.initiateCalls)

	require.NotNil(t, repo.lastOrder)
	require.NotNil(t, repo.lastPayment)
	assert.Equal(t, StatusPending, repo.lastOrder.Status)
	assert.Equal(t, payment.StatusUnpaid, repo.lastPayment.Status)
	assert.Equal(t, repo.lastPayment.ID, repo.lastOrder.PaymentID)
	require.Len(t, repo.lastDetails, 1)
	assert.Equal(t, "p1", repo.lastDetails[0].ProductID)
	assert.Equal(t, 2, repo.lastDetails[0].Quantity)
	assert.Equal(t, repo.lastOrder.ID, repo.lastDetails[0].OrderID)
}

func TestCheckout_DetailPerItem(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewService(repo, newMockPaymentRepo(), &mockGateway{})

	req := validCheckoutRequest()
	req.Items = []CheckoutItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p3", Quantity: 5},
	}

	_, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, repo.lastDetails, 3)
}

func TestCheckout_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CheckoutRequest)
	}{
		{"missing phone", func(r *CheckoutRequest) { r.PhoneNumber = "" }},
		{"missing address", func(r *CheckoutRequest) { r.ShippingAddress = "" }},
		{"zero amount", func(r *CheckoutRequest) { r.TotalAmount = decimal.Zero }},
		{"missing method", func(r *CheckoutRequest) { r.PaymentMethod = "" }},
		{"empty items", func(r *CheckoutRequest) { r.Items = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockOrderRepo()
			svc := NewService(repo, newMockPaymentRepo(), &mockGateway{})

			req := validCheckoutRequest()
			tt.mutate(&req)

			_, err := svc.Checkout(context.Background(), req)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Nil(t, repo.lastOrder, "no writes on validation failure")
		})
	}
}

func TestCheckout_UnknownMethod(t *testing.T) {
	svc := NewService(newMockOrderRepo(), newMockPaymentRepo(), &mockGateway{})

	req := validCheckoutRequest()
	req.PaymentMethod = "paypal"

	_, err := svc.Checkout(context.Background(), req)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestCheckout_Khalti(t *testing.T) {
	repo := newMockOrderRepo()
	payments := newMockPaymentRepo()
	gw := &mockGateway{
		initiateResp: &khalti.InitiateResponse{
			Pidx:       "px-1",
			PaymentURL: "https://pay.example.com/px-1",
		},
	}
	svc := NewService(repo, payments, gw)

	req := validCheckoutRequest()
	req.PaymentMethod = payment.MethodKhalti
	req.TotalAmount = decimal.RequireFromString("500")

	result, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, gw.initiateCalls)
	assert.Equal(t, int64(50000), gw.lastInitiate.Amount, "amount in paisa")
	assert.Equal(t, repo.lastOrder.ID, gw.lastInitiate.PurchaseOrderID)
	assert.Equal(t, "orderName_"+repo.lastOrder.ID, gw.lastInitiate.PurchaseOrderName)

	assert.Equal(t, "px-1", payments.pidxByID[repo.lastPayment.ID])
	assert.Equal(t, "https://pay.example.com/px-1", result.PaymentURL)
	assert.Equal(t, "order placed success", result.Message)
}

func TestCheckout_KhaltiGatewayFailure(t *testing.T) {
	repo := newMockOrderRepo()
	gw := &mockGateway{initiateErr: &khalti.GatewayError{Op: "initiate", StatusCode: 502}}
	svc := NewService(repo, newMockPaymentRepo(), gw)

	req := validCheckoutRequest()
	req.PaymentMethod = payment.MethodKhalti

	_, err := svc.Checkout(context.Background(), req)

	var gwErr *khalti.GatewayError
	require.ErrorAs(t, err, &gwErr)
	// The checkout transaction has already committed; rows stay behind.
	assert.NotNil(t, repo.lastOrder)
}

func TestCheckout_StoreFailure(t *testing.T) {
	repo := newMockOrderRepo()
	repo.checkoutErr = errors.New("connection refused")
	gw := &mockGateway{}
	svc := NewService(repo, newMockPaymentRepo(), gw)

	req := validCheckoutRequest()
	req.PaymentMethod = payment.MethodKhalti

	_, err := svc.Checkout(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 0, gw.initiateCalls, "no gateway call when persist fails")
}

// --- VerifyTransaction ---

func TestVerifyTransaction_Completed(t *testing.T) {
	payments := newMockPaymentRepo()
	gw := &mockGateway{lookupResp: &khalti.LookupResponse{Pidx: "px-1", Status: khalti.StatusCompleted}}
	svc := NewService(newMockOrderRepo(), payments, gw)

	require.NoError(t, svc.VerifyTransaction(context.Background(), "px-1"))
	assert.Equal(t, payment.StatusPaid, payments.statusByPidx["px-1"])
}

func TestVerifyTransaction_NotCompleted(t *testing.T) {
	for _, status := range []khalti.TransactionStatus{
		khalti.StatusPending, khalti.StatusRefunded, khalti.StatusExpired, khalti.StatusUserCanceled,
	} {
		t.Run(string(status), func(t *testing.T) {
			payments := newMockPaymentRepo()
			gw := &mockGateway{lookupResp: &khalti.LookupResponse{Pidx: "px-1", Status: status}}
			svc := NewService(newMockOrderRepo(), payments, gw)

			err := svc.VerifyTransaction(context.Background(), "px-1")
			require.ErrorIs(t, err, ErrNotVerified)
			assert.Empty(t, payments.statusByPidx, "payment untouched")
		})
	}
}

func TestVerifyTransaction_MissingPidx(t *testing.T) {
	gw := &mockGateway{}
	svc := NewService(newMockOrderRepo(), newMockPaymentRepo(), gw)

	err := svc.VerifyTransaction(context.Background(), "")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 0, gw.lookupCalls)
}

func TestVerifyTransaction_Repeatable(t *testing.T) {
	payments := newMockPaymentRepo()
	gw := &mockGateway{lookupResp: &khalti.LookupResponse{Pidx: "px-1", Status: khalti.StatusCompleted}}
	svc := NewService(newMockOrderRepo(), payments, gw)

	require.NoError(t, svc.VerifyTransaction(context.Background(), "px-1"))
	require.NoError(t, svc.VerifyTransaction(context.Background(), "px-1"))
	assert.Equal(t, payment.StatusPaid, payments.statusByPidx["px-1"])
}

// --- CancelMyOrder ---

func TestCancelMyOrder(t *testing.T) {
	allowed := []Status{StatusPending, StatusDelivery, StatusCancelled}
	rejected := []Status{StatusPreparation, StatusOntheway}

	for _, status := range allowed {
		t.Run("allows "+string(status), func(t *testing.T) {
			repo := newMockOrderRepo()
			repo.byIDForUser["o1/u1"] = &Order{ID: "o1", UserID: "u1", Status: status}
			svc := NewService(repo, newMockPaymentRepo(), &mockGateway{})

			require.NoError(t, svc.CancelMyOrder(context.Background(), "o1", "u1"))
			assert.Equal(t, StatusCancelled, repo.statusUpdates["o1"])
		})
	}

	for _, status := range rejected {
		t.Run("rejects "+string(status), func(t *testing.T) {
			repo := newMockOrderRepo()
			repo.byIDForUser["o1/u1"] = &Order{ID: "o1", UserID: "u1", Status: status}
			svc := NewService(repo, newMockPaymentRepo(), &mockGateway{})

			err := svc.CancelMyOrder(context.Background(), "o1", "u1")
			require.ErrorIs(t, err, ErrCannotCancel)
			assert.Empty(t, repo.statusUpdates, "no state change")
		})
	}
}

func TestCancelMyOrder_OtherUsersOrder(t *testing.T) {
	repo := newMockOrderRepo()
	repo.byIDForUser["o1/u1"] = &Order{ID: "o1", UserID: "u1", Status: StatusPending}
	svc := NewService(repo, newMockPaymentRepo(), &mockGateway{})

	err := svc.CancelMyOrder(context.Background(), "o1", "u2")
	require.ErrorIs(t, err, ErrNotFound)
}

// --- Administrative transitions ---

func TestChangeOrderStatus_NoGuard(t *testing.T) {
	// Any status may follow any other on the admin path, including ones the
	// user-facing cancel guard would block.
	repo := newMockOrderRepo()
	svc := NewService(repo, newMockPaymentRepo(), &mockGateway{})

	require.NoError(t, svc.ChangeOrderStatus(context.Background(), "o1", StatusDelivery))
	assert.Equal(t, StatusDelivery, repo.statusUpdates["o1"])

	require.NoError(t, svc.ChangeOrderStatus(context.Background(), "o1", StatusPending))
	assert.Equal(t, StatusPending, repo.statusUpdates["o1"])
}

func TestChangeOrderStatus_Validation(t *testing.T) {
	svc := NewService(newMockOrderRepo(), newMockPaymentRepo(), &mockGateway{})

	var vErr *ValidationError
	require.ErrorAs(t, svc.ChangeOrderStatus(context.Background(), "o1", ""), &vErr)
	require.ErrorAs(t, svc.ChangeOrderStatus(context.Background(), "o1", "shipped"), &vErr)
}

func TestChangePaymentStatus(t *testing.T) {
	repo := newMockOrderRepo()
	repo.byID["o1"] = &Order{ID: "o1", PaymentID: "pay1"}
	payments := newMockPaymentRepo()
	svc := NewService(repo, payments, &mockGateway{})

	require.NoError(t, svc.ChangePaymentStatus(context.Background(), "o1", payment.StatusPaid))
	assert.Equal(t, payment.StatusPaid, payments.statusByID["pay1"])
}

func TestChangePaymentStatus_OrderNotFound(t *testing.T) {
	svc := NewService(newMockOrderRepo(), newMockPaymentRepo(), &mockGateway{})

	err := svc.ChangePaymentStatus(context.Background(), "missing", payment.StatusPaid)
	require.ErrorIs(t, err, ErrNotFound)
}

// --- DeleteOrder ---

func TestDeleteOrder(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewService(repo, newMockPaymentRepo(), &mockGateway{})

	require.NoError(t, svc.DeleteOrder(context.Background(), "o1"))
	assert.Equal(t, []string{"o1"}, repo.deleted)
}

func TestDeleteOrder_NotFound(t *testing.T) {
	repo := newMockOrderRepo()
	repo.deleteErr = ErrNotFound
	svc := NewService(repo, newMockPaymentRepo(), &mockGateway{})

	require.ErrorIs(t, svc.DeleteOrder(context.Background(), "missing"), ErrNotFound)
}
