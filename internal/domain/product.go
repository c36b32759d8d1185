package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `db:"id" json:"id"`
	SKU          string          `db:"sku" json:"sku"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description"`
	Price        decimal.Decimal `db:"price" json:"price"`
	ProductType  ProductType     `db:"product_type" json:"productType"`
	Logo         string          `db:"logo" json:"logo"`
	Images       StringList      `db:"images_json" json:"images"`
	DigitalFiles StringList      `db:"digital_files_json" json:"digitalFiles,omitempty"`
	Active       bool            `db:"active" json:"active"`
}

// StringList is a JSON array stored in a TEXT column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		if v == "" {
			*l = nil
			return nil
		}
		return json.Unmarshal([]byte(v), l)
	case []byte:
		if len(v) == 0 {
			*l = nil
			return nil
		}
		return json.Unmarshal(v, l)
	}
	return errors.New("string list: unsupported column type")
}
