package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"wanderlust/internal/pricing"
)

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	params := buildSessionParams(req)
	params.Context = ctx
	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("%w: create session: %v", ErrUnavailable, err)
	}
	return Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, id string) (SessionState, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return SessionState{}, fmt.Errorf("%w: retrieve session %s: %v", ErrUnavailable, id, err)
	}
	return sessionState(s), nil
}

func (g *StripeGateway) ExpireSession(ctx context.Context, id string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.api.CheckoutSessions.Expire(id, params); err != nil {
		return fmt.Errorf("%w: expire session %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

func sessionState(s *stripe.CheckoutSession) SessionState {
	st := SessionState{ID: s.ID, PaymentStatus: StatusUnpaid}
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		st.PaymentStatus = StatusPaid
	}
	st.Expired = s.Status == stripe.CheckoutSessionStatusExpired
	return st
}

func buildSessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	currency := req.Currency
	if currency == "" {
		currency = pricing.DefaultRules.Currency
	}

	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Description != "" {
			product.Description = stripe.String(li.Description)
		}
		if li.Image != "" {
			product.Images = []*string{stripe.String(li.Image)}
		}
		if li.Link != "" {
			product.Metadata = map[string]string{"url": li.Link}
		}
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(pricing.ToMinorUnits(li.UnitAmount)),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lines,
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.NoPaymentRequired {
		params.PaymentMethodCollection = stripe.String(string(stripe.CheckoutSessionPaymentMethodCollectionIfRequired))
	}

	md := map[string]string{}
	for k, v := range req.Metadata {
		md[k] = v
	}
	if req.DiscountCode != "" {
		md["discount_code"] = req.DiscountCode
	}
	if req.DiscountPercentage.IsPositive() {
		md["discount_percentage"] = req.DiscountPercentage.String()
	}
	if len(md) > 0 {
		params.Metadata = md
	}
	return params
}
