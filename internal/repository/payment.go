package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prasiddha/kinmel/internal/domain/payment"
)

const (
	setPidxSQL = `UPDATE payments SET pidx = $2 WHERE id = $1 AND pidx IS NULL`

	updatePaymentStatusByPidxSQL = `UPDATE payments SET payment_status = $2 WHERE pidx = $1`

	updatePaymentStatusSQL = `UPDATE payments SET payment_status = $2 WHERE id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// SetPidx stores the gateway correlation id. The WHERE clause enforces the
// set-at-most-once invariant: a payment that already carries a pidx is left
// untouched.
func (r *PaymentRepository) SetPidx(ctx context.Context, id, pidx string) error {
	tag, err := r.pool.Exec(ctx, setPidxSQL, id, pidx)
	if err != nil {
		return fmt.Errorf("setting pidx on payment %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("setting pidx on payment %q: %w", id, payment.ErrNotFound)
	}
	return nil
}

// UpdateStatusByPidx flips the status of the payment matching pidx. The
// update is idempotent by value; repeating it converges on the same state.
func (r *PaymentRepository) UpdateStatusByPidx(ctx context.Context, pidx string, status payment.Status) error {
	tag, err := r.pool.Exec(ctx, updatePaymentStatusByPidxSQL, pidx, status)
	if err != nil {
		return fmt.Errorf("updating payment status for pidx %q: %w", pidx, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating payment status for pidx %q: %w", pidx, payment.ErrNotFound)
	}
	return nil
}

// UpdateStatus flips the status of the payment with the given id.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status payment.Status) error {
	tag, err := r.pool.Exec(ctx, updatePaymentStatusSQL, id, status)
	if err != nil {
		return fmt.Errorf("updating status of payment %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating status of payment %q: %w", id, payment.ErrNotFound)
	}
	return nil
}
