package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"wanderlust/internal/domain"
	"wanderlust/internal/validate"
)

type request struct {
	CartItems          []domain.CartItem `json:"cartItems" validate:"required,min=1,dive"`
	DiscountPercentage float64           `json:"discountPercentage" validate:"gte=0,lte=100"`
}

func TestStruct_FieldNamesUseJSONPaths(t *testing.T) {
	cases := []struct {
		name string
		req  request
		msg  string
	}{
		{"empty cart", request{}, "cartItems is required"},
		{"zero-length cart", request{CartItems: []domain.CartItem{}}, "cartItems must not be empty"},
		{"missing id", request{CartItems: []domain.CartItem{{Total: "1", Quantity: 1}}}, "cartItems[0].id is required"},
		{"bad price", request{CartItems: []domain.CartItem{{ID: "a", Total: "1,00", Quantity: 1}}}, "cartItems[0].total is invalid"},
		{"negative price", request{CartItems: []domain.CartItem{{ID: "a", Total: "-1", Quantity: 1}}}, "cartItems[0].total is invalid"},
		{"zero qty", request{CartItems: []domain.CartItem{{ID: "a", Total: "1", Quantity: 0}}}, "cartItems[0].quantity is invalid"},
		{"id with space", request{CartItems: []domain.CartItem{{ID: "print fuji", Total: "1", Quantity: 1}}}, "cartItems[0].id is invalid"},
		{"bad type", request{CartItems: []domain.CartItem{{ID: "a", Total: "1", Quantity: 1, ProductType: "SERVICE"}}}, "cartItems[0].productType is invalid"},
		{"discount", request{CartItems: []domain.CartItem{{ID: "a", Total: "1", Quantity: 1}}, DiscountPercentage: 120}, "discountPercentage is invalid"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validate.Struct(c.req)
			var fe *validate.FieldError
			if assert.ErrorAs(t, err, &fe) {
				assert.Equal(t, c.msg, fe.Error())
			}
		})
	}
}

func TestStruct_Valid(t *testing.T) {
	req := request{
		CartItems: []domain.CartItem{
			{ID: "print-fuji", Total: "50.00", Quantity: 1, ProductType: domain.ProductPhysical},
			{ID: "sticker-map", Total: "0", Quantity: 1},
		},
		DiscountPercentage: 100,
	}
	assert.NoError(t, validate.Struct(req))
}

func TestSessionID(t *testing.T) {
	_, ok := validate.SessionID("cs_test_a1B2c3")
	assert.True(t, ok)
	for _, bad := range []string{"", "pi_123", "cs_", "cs_../../etc", "cs_a b"} {
		_, ok := validate.SessionID(bad)
		assert.False(t, ok, bad)
	}
}

func TestEmailAndPassword(t *testing.T) {
	_, ok := validate.Email(" alice@wanderlust.test ")
	assert.True(t, ok)
	_, ok = validate.Email("not-an-email")
	assert.False(t, ok)

	assert.True(t, validate.Password("Passw0rd!"))
	assert.False(t, validate.Password("password"))
	assert.False(t, validate.Password("Sh0rt!"))
}

func TestID(t *testing.T) {
	good := []string{"tee-wander", "print.fuji", "a", "SKU_9.v-2", strings.Repeat("x", 64)}
	for _, id := range good {
		_, ok := validate.ID(id)
		assert.True(t, ok, id)
	}
	bad := []string{"", "../etc", ".hidden", "print fuji", " tee", "a/b", "%2e", strings.Repeat("x", 65)}
	for _, id := range bad {
		_, ok := validate.ID(id)
		assert.False(t, ok, id)
	}
}

func TestStruct_IDRuleMatchesID(t *testing.T) {
	for _, id := range []string{"print.fuji", "print fuji", ".x", strings.Repeat("y", 65)} {
		_, want := validate.ID(id)
		err := validate.Struct(domain.CartItem{ID: id, Total: "1", Quantity: 1})
		assert.Equal(t, want, err == nil, id)
	}
}
