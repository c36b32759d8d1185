package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderCompleted, OrderCancelled},
	OrderCompleted: {},
	OrderCancelled: {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Order is written once at session creation. Monetary fields and CartItems
// never change afterwards; only status and the timestamps move.
type Order struct {
	ID                 string          `db:"id" json:"id"`
	StripeSessionID    string          `db:"stripe_session_id" json:"stripeSessionId"`
	Status             OrderStatus     `db:"status" json:"status"`
	CartItems          Snapshot        `db:"cart_items" json:"cartItems"`
	Subtotal           decimal.Decimal `db:"subtotal" json:"subtotal"`
	Shipping           decimal.Decimal `db:"shipping" json:"shipping"`
	VAT                decimal.Decimal `db:"vat" json:"vat"`
	Total              decimal.Decimal `db:"total" json:"total"`
	DiscountCode       string          `db:"discount_code" json:"discountCode,omitempty"`
	DiscountPercentage decimal.Decimal `db:"discount_percentage" json:"discountPercentage"`
	CustomerEmail      string          `db:"customer_email" json:"customerEmail"`
	CustomerName       string          `db:"customer_name" json:"customerName"`
	UserID             *string         `db:"user_id" json:"userId"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
	CompletedAt        *time.Time      `db:"completed_at" json:"completedAt"`
	CancelledAt        *time.Time      `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CartClearedAt      *time.Time      `db:"cart_cleared_at" json:"-"`
}

// OrderLine is a snapshot line plus live product data attached at read time.
type OrderLine struct {
	CartItem
	Images       []string `json:"images,omitempty"`
	DigitalFiles []string `json:"digitalFiles,omitempty"`
}

// OrderView is what the API returns: the frozen order with enriched lines.
type OrderView struct {
	Order
	CartItems []OrderLine `json:"cartItems"`
}
