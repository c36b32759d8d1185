// Package pricing computes checkout totals from a cart snapshot.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"wanderlust/internal/domain"
)

var ErrInvalidDiscount = errors.New("discountPercentage must be between 0 and 100")

var (
	hundred = decimal.NewFromInt(100)
)

type Rules struct {
	FlatShipping          decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	VATRate               decimal.Decimal
	Currency              string
}

var DefaultRules = Rules{
	FlatShipping:          decimal.NewFromInt(10),
	FreeShippingThreshold: decimal.NewFromInt(100),
	VATRate:               decimal.RequireFromString("0.10"),
	Currency:              "usd",
}

// Totals are rounded to cents. Subtotal is after discount.
type Totals struct {
	GrossSubtotal      decimal.Decimal
	DiscountPercentage decimal.Decimal
	Subtotal           decimal.Decimal
	Shipping           decimal.Decimal
	VAT                decimal.Decimal
	Total              decimal.Decimal
	HasPhysical        bool
}

func (t Totals) IsFree() bool { return t.Total.IsZero() }

// Compute applies the discount, shipping and VAT rules to items.
// Free shipping applies only when the discounted subtotal is strictly above the threshold.
func Compute(items []domain.CartItem, discountPct decimal.Decimal, r Rules) (Totals, error) {
	if discountPct.IsNegative() || discountPct.GreaterThan(hundred) {
		return Totals{}, ErrInvalidDiscount
	}
	gross := decimal.Zero
	physical := false
	for _, it := range items {
		p, err := it.UnitPrice()
		if err != nil {
			return Totals{}, err
		}
		if p.IsNegative() {
			return Totals{}, fmt.Errorf("item %s: negative price", it.ID)
		}
		gross = gross.Add(p.Mul(decimal.NewFromInt(int64(it.Quantity))))
		if it.IsPhysical() {
			physical = true
		}
	}

	sub := applyDiscount(gross, discountPct)

	shipping := decimal.Zero
	if physical && !sub.GreaterThan(r.FreeShippingThreshold) {
		shipping = r.FlatShipping
	}
	vat := sub.Mul(r.VATRate).Round(2)

	total := sub.Add(shipping).Add(vat)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{
		GrossSubtotal:      gross.Round(2),
		DiscountPercentage: discountPct,
		Subtotal:           sub,
		Shipping:           shipping.Round(2),
		VAT:                vat,
		Total:              total.Round(2),
		HasPhysical:        physical,
	}, nil
}

// DiscountedUnitPrice mirrors the order-level percentage onto a single unit price.
func DiscountedUnitPrice(price, discountPct decimal.Decimal) decimal.Decimal {
	return applyDiscount(price, discountPct)
}

func applyDiscount(amount, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return amount.Round(2)
	}
	out := amount.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// ToMinorUnits converts an amount to cents.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}
