// Package payment talks to the hosted checkout provider.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnavailable wraps every provider failure. Callers map it to a generic
// upstream error and retry later.
var ErrUnavailable = errors.New("payment gateway unavailable")

type PaymentStatus string

const (
	StatusPaid   PaymentStatus = "paid"
	StatusUnpaid PaymentStatus = "unpaid"
)

type LineItem struct {
	Name        string
	Description string
	Image       string
	Link        string
	UnitAmount  decimal.Decimal
	Quantity    int64
}

type SessionRequest struct {
	LineItems          []LineItem
	Currency           string
	CustomerEmail      string
	DiscountCode       string
	DiscountPercentage decimal.Decimal
	// NoPaymentRequired is set for fully comped orders.
	NoPaymentRequired bool
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

type Session struct {
	ID  string
	URL string
}

type SessionState struct {
	ID            string
	PaymentStatus PaymentStatus
	Expired       bool
}

func (s SessionState) Paid() bool { return s.PaymentStatus == StatusPaid }

type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	RetrieveSession(ctx context.Context, id string) (SessionState, error)
	// ExpireSession closes an open session so it can no longer be paid.
	ExpireSession(ctx context.Context, id string) error
}
