package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"wanderlust/internal/domain"
	applog "wanderlust/internal/log"
	"wanderlust/internal/notify"
	"wanderlust/internal/payment"
	"wanderlust/internal/repos"
)

var ErrOrderNotFound = repos.ErrOrderNotFound

type ProductLookup interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type OrderService struct {
	Orders        OrderStore
	Products      ProductLookup
	Gateway       payment.Gateway
	Notifier      notify.Notifier
	NotifyTimeout time.Duration
	VerifyTimeout time.Duration
	Now           func() time.Time

	verifying singleflight.Group
}

func NewOrderService(orders OrderStore, products ProductLookup, gw payment.Gateway, n notify.Notifier) *OrderService {
	return &OrderService{
		Orders:        orders,
		Products:      products,
		Gateway:       gw,
		Notifier:      n,
		NotifyTimeout: 5 * time.Second,
		VerifyTimeout: 15 * time.Second,
		Now:           time.Now,
	}
}

// Verify reconciles the order behind a checkout session with the gateway and
// returns its enriched view. Terminal orders are read without touching the
// gateway. Concurrent calls for one session share a single reconciliation,
// which runs detached from any one caller's cancellation.
func (s *OrderService) Verify(ctx context.Context, sessionID string) (domain.OrderView, error) {
	v, err, _ := s.verifying.Do(sessionID, func() (any, error) {
		timeout := s.VerifyTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return s.verify(vctx, sessionID)
	})
	if err != nil {
		return domain.OrderView{}, err
	}
	return v.(domain.OrderView), nil
}

func (s *OrderService) verify(ctx context.Context, sessionID string) (domain.OrderView, error) {
	o, err := s.Orders.BySessionID(ctx, sessionID)
	if err != nil {
		return domain.OrderView{}, err
	}
	if o.Status.IsTerminal() {
		return s.enrich(ctx, o), nil
	}

	st, err := s.Gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("verify %s: %w", sessionID, err)
	}

	switch {
	case st.Paid() && o.Status.CanTransitionTo(domain.OrderCompleted):
		at := s.Now()
		won, err := s.Orders.MarkCompleted(ctx, sessionID, at)
		if err != nil {
			return domain.OrderView{}, fmt.Errorf("complete %s: %w", sessionID, err)
		}
		fresh, rerr := s.Orders.BySessionID(ctx, sessionID)
		if rerr != nil && !won {
			return domain.OrderView{}, rerr
		}
		if rerr != nil {
			// the row is COMPLETED; confirm from what we already hold
			done := *o
			done.Status = domain.OrderCompleted
			done.CompletedAt = &at
			fresh = &done
		}
		view := s.enrich(ctx, fresh)
		if won {
			applog.Event("audit", "order.completed", nil, map[string]any{"order_id": fresh.ID, "session": sessionID})
			s.confirm(ctx, view)
		}
		if rerr != nil {
			return domain.OrderView{}, fmt.Errorf("reload %s: %w", sessionID, rerr)
		}
		return view, nil
	case st.Expired && o.Status.CanTransitionTo(domain.OrderCancelled):
		if _, err := s.Orders.MarkCancelled(ctx, sessionID, s.Now()); err != nil {
			return domain.OrderView{}, fmt.Errorf("cancel %s: %w", sessionID, err)
		}
		if o, err = s.Orders.BySessionID(ctx, sessionID); err != nil {
			return domain.OrderView{}, err
		}
	}
	return s.enrich(ctx, o), nil
}

// Cancel closes the hosted session and moves a PENDING order to CANCELLED.
func (s *OrderService) Cancel(ctx context.Context, sessionID string) (domain.OrderView, error) {
	o, err := s.Orders.BySessionID(ctx, sessionID)
	if err != nil {
		return domain.OrderView{}, err
	}
	if !o.Status.CanTransitionTo(domain.OrderCancelled) {
		return s.enrich(ctx, o), nil
	}
	if err := s.Gateway.ExpireSession(ctx, sessionID); err != nil {
		return domain.OrderView{}, fmt.Errorf("cancel %s: %w", sessionID, err)
	}
	if _, err := s.Orders.MarkCancelled(ctx, sessionID, s.Now()); err != nil {
		return domain.OrderView{}, err
	}
	if o, err = s.Orders.BySessionID(ctx, sessionID); err != nil {
		return domain.OrderView{}, err
	}
	return s.enrich(ctx, o), nil
}

// ClaimCartClear reports true exactly once per completed order.
func (s *OrderService) ClaimCartClear(ctx context.Context, sessionID string) (bool, error) {
	return s.Orders.ClaimCartClear(ctx, sessionID, s.Now())
}

// ListForUser returns the user's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID string) ([]domain.OrderView, error) {
	orders, err := s.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderView, 0, len(orders))
	for i := range orders {
		out = append(out, s.enrich(ctx, &orders[i]))
	}
	return out, nil
}

// enrich attaches live product data to each snapshot line. A line whose
// product cannot be read keeps its snapshot fields. Download links are only
// attached once the order is paid.
func (s *OrderService) enrich(ctx context.Context, o *domain.Order) domain.OrderView {
	view := domain.OrderView{Order: *o, CartItems: make([]domain.OrderLine, 0, len(o.CartItems))}
	for _, it := range o.CartItems {
		line := domain.OrderLine{CartItem: it}
		p, err := s.Products.Get(ctx, it.ID)
		if err != nil {
			if !errors.Is(err, repos.ErrProductNotFound) {
				applog.Event("warn", "order.enrich.fail", err, map[string]any{"order_id": o.ID, "product": it.ID})
			}
			view.CartItems = append(view.CartItems, line)
			continue
		}
		if p.ProductType != "" {
			line.ProductType = p.ProductType
		}
		line.Images = p.Images
		if o.Status == domain.OrderCompleted {
			line.DigitalFiles = p.DigitalFiles
		}
		view.CartItems = append(view.CartItems, line)
	}
	return view
}

func (s *OrderService) confirm(ctx context.Context, view domain.OrderView) {
	if s.Notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.NotifyTimeout)
	defer cancel()
	if err := s.Notifier.OrderConfirmed(nctx, notify.FromView(view)); err != nil {
		applog.Event("error", "order.notify.fail", err, map[string]any{"order_id": view.ID})
	}
}
