package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	applog "wanderlust/internal/log"
)

type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerGateway trips after MaxFailures consecutive gateway errors and fails
// fast with ErrUnavailable until OpenTimeout elapses.
type BreakerGateway struct {
	next     Gateway
	create   *gobreaker.CircuitBreaker[Session]
	retrieve *gobreaker.CircuitBreaker[SessionState]
	expire   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerGateway(next Gateway, s BreakerSettings) *BreakerGateway {
	if s.Name == "" {
		s.Name = "stripe"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	settings := func(op string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    s.Name + "." + op,
			Timeout: s.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= s.MaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				applog.Event("warn", "payment.breaker.state", nil, map[string]any{
					"breaker": name, "from": from.String(), "to": to.String(),
				})
			},
		}
	}
	return &BreakerGateway{
		next:     next,
		create:   gobreaker.NewCircuitBreaker[Session](settings("create")),
		retrieve: gobreaker.NewCircuitBreaker[SessionState](settings("retrieve")),
		expire:   gobreaker.NewCircuitBreaker[struct{}](settings("expire")),
	}
}

func (b *BreakerGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	s, err := b.create.Execute(func() (Session, error) { return b.next.CreateSession(ctx, req) })
	return s, breakerErr(err)
}

func (b *BreakerGateway) RetrieveSession(ctx context.Context, id string) (SessionState, error) {
	s, err := b.retrieve.Execute(func() (SessionState, error) { return b.next.RetrieveSession(ctx, id) })
	return s, breakerErr(err)
}

func (b *BreakerGateway) ExpireSession(ctx context.Context, id string) error {
	_, err := b.expire.Execute(func() (struct{}, error) { return struct{}{}, b.next.ExpireSession(ctx, id) })
	return breakerErr(err)
}

func breakerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !errors.Is(err, ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
