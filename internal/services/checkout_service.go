package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wanderlust/internal/domain"
	"wanderlust/internal/payment"
	"wanderlust/internal/pricing"
	"wanderlust/internal/repos"
	"wanderlust/internal/validate"
)

var ErrEmptyCart = errors.New("empty cart")

// OrderStore is the order persistence the checkout pipeline needs.
type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	BySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	MarkCompleted(ctx context.Context, sessionID string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, sessionID string, at time.Time) (bool, error)
	ClaimCartClear(ctx context.Context, sessionID string, at time.Time) (bool, error)
}

var _ OrderStore = (*repos.OrderRepo)(nil)

type CreateSessionRequest struct {
	CartItems          []domain.CartItem `json:"cartItems" validate:"required,min=1,dive"`
	DiscountCode       string            `json:"discountCode" validate:"max=64"`
	DiscountPercentage float64           `json:"discountPercentage" validate:"gte=0,lte=100"`
}

type CheckoutService struct {
	Orders  OrderStore
	Gateway payment.Gateway
	Rules   pricing.Rules
	BaseURL string
	Now     func() time.Time
}

func NewCheckoutService(orders OrderStore, gw payment.Gateway, rules pricing.Rules, baseURL string) *CheckoutService {
	return &CheckoutService{
		Orders:  orders,
		Gateway: gw,
		Rules:   rules,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Now:     time.Now,
	}
}

// CreateSession prices the cart, opens a hosted checkout session and records
// the PENDING order. The session is only handed back once the order row exists.
// customer may be nil for guest checkout.
func (s *CheckoutService) CreateSession(ctx context.Context, req CreateSessionRequest, customer *domain.User) (payment.Session, *domain.Order, error) {
	if len(req.CartItems) == 0 {
		return payment.Session{}, nil, ErrEmptyCart
	}
	if err := validate.Struct(req); err != nil {
		return payment.Session{}, nil, err
	}

	discount := decimal.NewFromFloat(req.DiscountPercentage)
	totals, err := pricing.Compute(req.CartItems, discount, s.Rules)
	if err != nil {
		return payment.Session{}, nil, err
	}

	order := &domain.Order{
		ID:                 uuid.NewString(),
		Status:             domain.OrderPending,
		CartItems:          snapshot(req.CartItems),
		Subtotal:           totals.Subtotal,
		Shipping:           totals.Shipping,
		VAT:                totals.VAT,
		Total:              totals.Total,
		DiscountCode:       strings.TrimSpace(req.DiscountCode),
		DiscountPercentage: discount,
		CreatedAt:          s.Now().UTC(),
	}
	if customer != nil {
		order.CustomerEmail = customer.Email
		order.CustomerName = customer.Name
		uid := customer.ID
		order.UserID = &uid
	}

	sess, err := s.Gateway.CreateSession(ctx, s.sessionRequest(order, totals))
	if err != nil {
		return payment.Session{}, nil, fmt.Errorf("create checkout session: %w", err)
	}
	order.StripeSessionID = sess.ID

	if err := s.Orders.Create(ctx, order); err != nil {
		return payment.Session{}, nil, fmt.Errorf("persist order for %s: %w", sess.ID, err)
	}
	return sess, order, nil
}

func (s *CheckoutService) sessionRequest(o *domain.Order, t pricing.Totals) payment.SessionRequest {
	req := payment.SessionRequest{
		Currency:           s.Rules.Currency,
		CustomerEmail:      o.CustomerEmail,
		DiscountCode:       o.DiscountCode,
		DiscountPercentage: o.DiscountPercentage,
		NoPaymentRequired:  t.IsFree(),
		SuccessURL:         s.BaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:          s.BaseURL + "/checkout/cancel?session_id={CHECKOUT_SESSION_ID}",
		Metadata:           map[string]string{"order_id": o.ID},
	}
	for _, it := range o.CartItems {
		price, _ := it.UnitPrice()
		name := it.Title
		if name == "" {
			name = it.ID
		}
		req.LineItems = append(req.LineItems, payment.LineItem{
			Name:        name,
			Description: describeVariants(it.SelectedVariants),
			Image:       s.absolute(it.Logo),
			Link:        s.BaseURL + "/products/" + it.ID,
			UnitAmount:  pricing.DiscountedUnitPrice(price, o.DiscountPercentage),
			Quantity:    int64(it.Quantity),
		})
	}
	if t.Shipping.IsPositive() {
		req.LineItems = append(req.LineItems, payment.LineItem{Name: "Shipping", UnitAmount: t.Shipping, Quantity: 1})
	}
	if t.VAT.IsPositive() {
		req.LineItems = append(req.LineItems, payment.LineItem{Name: "VAT", UnitAmount: t.VAT, Quantity: 1})
	}
	return req
}

func (s *CheckoutService) absolute(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	}
	return s.BaseURL + "/media/" + strings.TrimLeft(ref, "/")
}

func describeVariants(v map[string]string) string {
	if len(v) == 0 {
		return ""
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return strings.Join(parts, ", ")
}

func snapshot(items []domain.CartItem) domain.Snapshot {
	out := make(domain.Snapshot, len(items))
	for i, it := range items {
		if it.SelectedVariants != nil {
			m := make(map[string]string, len(it.SelectedVariants))
			for k, v := range it.SelectedVariants {
				m[k] = v
			}
			it.SelectedVariants = m
		}
		out[i] = it
	}
	return out
}
