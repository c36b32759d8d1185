package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"wanderlust/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `
	o.id, o.stripe_session_id, o.status, o.cart_items,
	o.subtotal, o.shipping, o.vat, o.total,
	o.discount_code, o.discount_percentage,
	o.customer_email, COALESCE(u.name, '') AS customer_name, o.user_id,
	o.created_at, o.completed_at, o.cancelled_at, o.cart_cleared_at`

// Create inserts a PENDING order with its frozen snapshot and totals.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
	  INSERT INTO orders
	    (id, stripe_session_id, status, cart_items, subtotal, shipping, vat, total,
	     discount_code, discount_percentage, customer_email, user_id, created_at)
	  VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, o.ID, o.StripeSessionID, o.Status, o.CartItems,
		o.Subtotal.StringFixed(2), o.Shipping.StringFixed(2), o.VAT.StringFixed(2), o.Total.StringFixed(2),
		o.DiscountCode, o.DiscountPercentage.String(), o.CustomerEmail, o.UserID, o.CreatedAt)
	return err
}

func (r *OrderRepo) BySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOne(ctx, `WHERE o.stripe_session_id = ?`, sessionID)
}

func (r *OrderRepo) getOne(ctx context.Context, where string, arg any) (*domain.Order, error) {
	var o domain.Order
	err := r.db.GetContext(ctx, &o, `SELECT `+orderColumns+`
		FROM orders o LEFT JOIN users u ON u.id = o.user_id `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns a user's PENDING and COMPLETED orders, newest first.
// Cancelled checkouts are left out.
func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	out := []domain.Order{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+orderColumns+`
		FROM orders o LEFT JOIN users u ON u.id = o.user_id
		WHERE o.user_id = ? AND o.status IN (?, ?)
		ORDER BY o.created_at DESC, o.id DESC`, userID, domain.OrderPending, domain.OrderCompleted)
	return out, err
}

// MarkCompleted moves a PENDING order to COMPLETED. It reports false when the
// order was not PENDING, so only one caller ever wins the transition.
func (r *OrderRepo) MarkCompleted(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	return r.transition(ctx, `UPDATE orders SET status = ?, completed_at = ?
		WHERE stripe_session_id = ? AND status = ?`,
		domain.OrderCompleted, at.UTC(), sessionID, domain.OrderPending)
}

// MarkCancelled moves a PENDING order to CANCELLED.
func (r *OrderRepo) MarkCancelled(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	return r.transition(ctx, `UPDATE orders SET status = ?, cancelled_at = ?
		WHERE stripe_session_id = ? AND status = ?`,
		domain.OrderCancelled, at.UTC(), sessionID, domain.OrderPending)
}

// ClaimCartClear succeeds once per completed order.
func (r *OrderRepo) ClaimCartClear(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	return r.transition(ctx, `UPDATE orders SET cart_cleared_at = ?
		WHERE stripe_session_id = ? AND status = ? AND cart_cleared_at IS NULL`,
		at.UTC(), sessionID, domain.OrderCompleted)
}

func (r *OrderRepo) transition(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
