package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductPhysical ProductType = "PHYSICAL"
	ProductDigital  ProductType = "DIGITAL"
)

// CartItem is one cart line as the storefront submits it. Total is the unit
// price, kept as the decimal string the client sent.
type CartItem struct {
	ID               string            `json:"id" validate:"required,resourceid"`
	SKU              string            `json:"sku,omitempty" validate:"max=64"`
	Title            string            `json:"title" validate:"max=200"`
	Logo             string            `json:"logo,omitempty" validate:"max=500"`
	Total            string            `json:"total" validate:"required,numeric,nonnegprice"`
	Quantity         int               `json:"quantity" validate:"gte=1,lte=1000"`
	ProductType      ProductType       `json:"productType,omitempty" validate:"omitempty,oneof=PHYSICAL DIGITAL"`
	SelectedVariants map[string]string `json:"selectedVariants,omitempty"`
	Label            string            `json:"label,omitempty" validate:"max=32"`
	Badge            bool              `json:"badge,omitempty"`
}

// UnitPrice parses Total.
func (i CartItem) UnitPrice() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(i.Total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("item %s: bad price %q: %w", i.ID, i.Total, err)
	}
	return d, nil
}

// IsFree reports whether the unit price is exactly zero.
func (i CartItem) IsFree() bool {
	p, err := i.UnitPrice()
	return err == nil && p.IsZero()
}

// IsPhysical treats an unset product type as physical.
func (i CartItem) IsPhysical() bool {
	return i.ProductType == "" || i.ProductType == ProductPhysical
}

// VariantKey is the canonical serialization of SelectedVariants. encoding/json
// sorts map keys, so selection order does not matter.
func (i CartItem) VariantKey() string {
	if len(i.SelectedVariants) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(i.SelectedVariants)
	return string(b)
}

// SameLine reports whether two entries are the same cart line.
func (i CartItem) SameLine(o CartItem) bool {
	return i.ID == o.ID && i.VariantKey() == o.VariantKey()
}

// Snapshot is the frozen copy of cart lines stored on an order.
type Snapshot []CartItem

func (s Snapshot) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Snapshot) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = Snapshot{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.New("snapshot: unsupported column type")
	}
	return json.Unmarshal(raw, s)
}
