package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prasiddha/kinmel/internal/domain/order"
	"github.com/prasiddha/kinmel/internal/domain/payment"
)

const (
	insertPaymentSQL = `INSERT INTO payments (id, payment_method, payment_status)
		VALUES ($1, $2, $3)`

	insertOrderSQL = `INSERT INTO orders (id, phone_number, shipping_address, total_amount, user_id, payment_id, order_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertOrderDetailSQL = `INSERT INTO order_details (id, order_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)`

	getOrderByIDSQL = `SELECT id, phone_number, shipping_address, total_amount, user_id, payment_id, order_status, created_at
		FROM orders WHERE id = $1`

	getOrderByIDForUserSQL = `SELECT id, phone_number, shipping_address, total_amount, user_id, payment_id, order_status, created_at
		FROM orders WHERE id = $1 AND user_id = $2`

	listOrdersByUserSQL = `SELECT o.id, o.phone_number, o.shipping_address, o.total_amount, o.user_id, o.payment_id, o.order_status, o.created_at,
			p.id, p.payment_method, COALESCE(p.pidx, ''), p.payment_status, p.created_at
		FROM orders o
		JOIN payments p ON p.id = o.payment_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC`

	listOrderDetailsSQL = `SELECT d.id, d.order_id, d.product_id, d.quantity, d.created_at,
			pr.id, pr.name, pr.price, COALESCE(pr.category_id::text, ''), pr.created_at
		FROM order_details d
		JOIN products pr ON pr.id = d.product_id
		WHERE d.order_id = $1
		ORDER BY d.created_at`

	updateOrderStatusSQL = `UPDATE orders SET order_status = $2 WHERE id = $1`

	getOrderPaymentIDSQL  = `SELECT payment_id FROM orders WHERE id = $1`
	deleteOrderDetailsSQL = `DELETE FROM order_details WHERE order_id = $1`
	deleteOrderSQL        = `DELETE FROM orders WHERE id = $1`
	deleteOrderPaymentSQL = `DELETE FROM payments WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateCheckout inserts the payment, the order, and its detail rows in a
// single transaction. The payment goes first so the order's foreign key is
// valid at insert time; a failure anywhere rolls everything back.
func (r *OrderRepository) CreateCheckout(ctx context.Context, o *order.Order, p *payment.Payment, details []order.Detail) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertPaymentSQL, p.ID, p.Method, p.Status); err != nil {
			return fmt.Errorf("inserting payment %q: %w", p.ID, err)
		}

		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.PhoneNumber, o.ShippingAddress, o.TotalAmount, o.UserID, o.PaymentID, o.Status,
		); err != nil {
			return fmt.Errorf("inserting order %q: %w", o.ID, err)
		}

		for _, d := range details {
			if _, err := tx.Exec(ctx, insertOrderDetailSQL, d.ID, d.OrderID, d.ProductID, d.Quantity); err != nil {
				return fmt.Errorf("inserting order detail for product %q: %w", d.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("checkout transaction: %w", err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return collectOrder(rows, id)
}

// GetByIDForUser returns the order only when it belongs to userID.
func (r *OrderRepository) GetByIDForUser(ctx context.Context, id, userID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDForUserSQL, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q for user: %w", id, err)
	}
	return collectOrder(rows, id)
}

func collectOrder(rows pgx.Rows, id string) (*order.Order, error) {
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.PhoneNumber, &o.ShippingAddress, &o.TotalAmount,
		&o.UserID, &o.PaymentID, &o.Status, &o.CreatedAt,
	)
	return o, err
}

// ListByUser returns all orders of userID with their payments joined,
// newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.OrderWithPayment, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.OrderWithPayment, error) {
		var ow order.OrderWithPayment
		err := row.Scan(
			&ow.ID, &ow.PhoneNumber, &ow.ShippingAddress, &ow.TotalAmount,
			&ow.UserID, &ow.PaymentID, &ow.Order.Status, &ow.Order.CreatedAt,
			&ow.Payment.ID, &ow.Payment.Method, &ow.Payment.Pidx,
			&ow.Payment.Status, &ow.Payment.CreatedAt,
		)
		return ow, err
	})
}

// ListDetails returns all lines of orderID with their products joined.
func (r *OrderRepository) ListDetails(ctx context.Context, orderID string) ([]order.DetailWithProduct, error) {
	rows, err := r.pool.Query(ctx, listOrderDetailsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing details for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.DetailWithProduct, error) {
		var dw order.DetailWithProduct
		err := row.Scan(
			&dw.ID, &dw.OrderID, &dw.Detail.ProductID, &dw.Quantity, &dw.Detail.CreatedAt,
			&dw.Product.ID, &dw.Product.Name, &dw.Product.Price,
			&dw.Product.CategoryID, &dw.Product.CreatedAt,
		)
		return dw, err
	})
}

// UpdateStatus sets the order's status. Updating a nonexistent order is a
// no-op, matching the unguarded administrative path.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	if _, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, status); err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return nil
}

// Delete removes the order's detail rows, its payment, and the order itself,
// children before parent, in one transaction.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var paymentID string
		if err := tx.QueryRow(ctx, getOrderPaymentIDSQL, id).Scan(&paymentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("resolving payment of order %q: %w", id, err)
		}

		if _, err := tx.Exec(ctx, deleteOrderDetailsSQL, id); err != nil {
			return fmt.Errorf("deleting details of order %q: %w", id, err)
		}
		if _, err := tx.Exec(ctx, deleteOrderSQL, id); err != nil {
			return fmt.Errorf("deleting order %q: %w", id, err)
		}
		if _, err := tx.Exec(ctx, deleteOrderPaymentSQL, paymentID); err != nil {
			return fmt.Errorf("deleting payment %q: %w", paymentID, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return order.ErrNotFound
		}
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}
