package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanderlust/internal/domain"
	"wanderlust/internal/payment"
	"wanderlust/internal/pricing"
	"wanderlust/internal/repos"
	"wanderlust/internal/services"
	"wanderlust/internal/validate"
)

func newCheckout(t *testing.T) (*services.CheckoutService, *fakeGateway, *repos.OrderRepo) {
	t.Helper()
	orders := repos.NewOrderRepo(memdb(t))
	gw := newFakeGateway()
	return services.NewCheckoutService(orders, gw, pricing.DefaultRules, "https://shop.test/"), gw, orders
}

func fuji(qty int) domain.CartItem {
	return domain.CartItem{
		ID: "print-fuji", Title: "Mount Fuji at Dawn", Logo: "products/print-fuji/logo.jpg",
		Total: "50.00", Quantity: qty, ProductType: domain.ProductPhysical,
		SelectedVariants: map[string]string{"size": "A3", "frame": "oak"},
	}
}

func TestCreateSession_PersistsPendingOrderWithTotals(t *testing.T) {
	svc, gw, orders := newCheckout(t)
	ctx := context.Background()
	alice := &domain.User{ID: "u-alice", Email: "alice@wanderlust.test", Name: "Alice"}

	sess, order, err := svc.CreateSession(ctx, services.CreateSessionRequest{CartItems: []domain.CartItem{fuji(1)}}, alice)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/"+sess.ID, sess.URL)

	stored, err := orders.BySessionID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	assert.Equal(t, domain.OrderPending, stored.Status)
	assert.Equal(t, "alice@wanderlust.test", stored.CustomerEmail)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, "u-alice", *stored.UserID)
	assert.True(t, stored.Subtotal.Equal(decimal.NewFromInt(50)))
	assert.True(t, stored.Shipping.Equal(decimal.NewFromInt(10)))
	assert.True(t, stored.VAT.Equal(decimal.NewFromInt(5)))
	assert.True(t, stored.Total.Equal(decimal.NewFromInt(65)))
	require.Len(t, stored.CartItems, 1)
	assert.Equal(t, "oak", stored.CartItems[0].SelectedVariants["frame"])

	require.Len(t, gw.created, 1)
	req := gw.created[0]
	assert.Equal(t, "alice@wanderlust.test", req.CustomerEmail)
	assert.False(t, req.NoPaymentRequired)
	assert.Equal(t, "https://shop.test/checkout/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, order.ID, req.Metadata["order_id"])
	require.Len(t, req.LineItems, 3)
	line := req.LineItems[0]
	assert.Equal(t, "Mount Fuji at Dawn", line.Name)
	assert.Equal(t, "frame: oak, size: A3", line.Description)
	assert.Equal(t, "https://shop.test/media/products/print-fuji/logo.jpg", line.Image)
	assert.Equal(t, "https://shop.test/products/print-fuji", line.Link)
	assert.True(t, line.UnitAmount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "Shipping", req.LineItems[1].Name)
	assert.Equal(t, "VAT", req.LineItems[2].Name)
}

func TestCreateSession_GuestCheckout(t *testing.T) {
	svc, _, orders := newCheckout(t)
	sess, _, err := svc.CreateSession(context.Background(), services.CreateSessionRequest{CartItems: []domain.CartItem{fuji(3)}}, nil)
	require.NoError(t, err)

	stored, err := orders.BySessionID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.UserID)
	assert.Empty(t, stored.CustomerEmail)
	assert.True(t, stored.Shipping.IsZero())
	assert.True(t, stored.Total.Equal(decimal.NewFromInt(165)))
}

func TestCreateSession_DiscountMirroredOnLines(t *testing.T) {
	svc, gw, _ := newCheckout(t)
	req := services.CreateSessionRequest{
		CartItems:          []domain.CartItem{fuji(1)},
		DiscountCode:       "SPRING",
		DiscountPercentage: 20,
	}
	_, order, err := svc.CreateSession(context.Background(), req, nil)
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(40)))
	assert.True(t, order.VAT.Equal(decimal.NewFromInt(4)))
	assert.True(t, order.Total.Equal(decimal.NewFromInt(54)))
	assert.Equal(t, "SPRING", order.DiscountCode)

	sent := gw.created[0]
	assert.True(t, sent.LineItems[0].UnitAmount.Equal(decimal.NewFromInt(40)))
	assert.True(t, sent.DiscountPercentage.Equal(decimal.NewFromInt(20)))
}

func TestCreateSession_FullyDiscountedNeedsNoPayment(t *testing.T) {
	svc, gw, _ := newCheckout(t)
	items := []domain.CartItem{{ID: "guide-kyoto", Title: "Kyoto", Total: "12.00", Quantity: 1, ProductType: domain.ProductDigital}}

	_, order, err := svc.CreateSession(context.Background(), services.CreateSessionRequest{CartItems: items, DiscountPercentage: 100}, nil)
	require.NoError(t, err)

	assert.True(t, order.Total.IsZero())
	require.Len(t, gw.created, 1)
	assert.True(t, gw.created[0].NoPaymentRequired)
	require.Len(t, gw.created[0].LineItems, 1, "no shipping or VAT lines on a free digital order")
}

func TestCreateSession_EmptyCart(t *testing.T) {
	svc, gw, _ := newCheckout(t)
	_, _, err := svc.CreateSession(context.Background(), services.CreateSessionRequest{}, nil)
	assert.ErrorIs(t, err, services.ErrEmptyCart)
	assert.Empty(t, gw.created)
}

func TestCreateSession_MalformedItem(t *testing.T) {
	svc, gw, _ := newCheckout(t)
	bad := fuji(1)
	bad.Total = "fifty"
	_, _, err := svc.CreateSession(context.Background(), services.CreateSessionRequest{CartItems: []domain.CartItem{bad}}, nil)

	var fe *validate.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "cartItems[0].total", fe.Field)
	assert.Empty(t, gw.created)
}

func TestCreateSession_GatewayDownWritesNothing(t *testing.T) {
	svc, gw, orders := newCheckout(t)
	gw.createErr = errGatewayDown

	_, _, err := svc.CreateSession(context.Background(), services.CreateSessionRequest{CartItems: []domain.CartItem{fuji(1)}}, nil)
	assert.ErrorIs(t, err, payment.ErrUnavailable)

	list, err := orders.ListByUser(context.Background(), "u-alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}

type failingOrders struct{ services.OrderStore }

func (failingOrders) Create(context.Context, *domain.Order) error { return errors.New("disk I/O error") }

func TestCreateSession_NoURLWithoutOrderRow(t *testing.T) {
	gw := newFakeGateway()
	svc := services.NewCheckoutService(failingOrders{}, gw, pricing.DefaultRules, "https://shop.test")

	sess, order, err := svc.CreateSession(context.Background(), services.CreateSessionRequest{CartItems: []domain.CartItem{fuji(1)}}, nil)
	assert.Error(t, err)
	assert.Empty(t, sess.URL)
	assert.Nil(t, order)
}
