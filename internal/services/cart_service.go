package services

import (
	"context"
	"sync"

	"wanderlust/internal/cart"
	applog "wanderlust/internal/log"
)

// CartService opens the per-owner cart store over the configured storage.
// Mutations for one owner are serialized within the process.
type CartService struct {
	Storage cart.Storage
	opts    []cart.Option

	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func NewCartService(storage cart.Storage, opts ...cart.Option) *CartService {
	return &CartService{Storage: storage, opts: opts}
}

// Open loads the cart for owner and subscribes the change logger. Use Update
// to change it.
func (s *CartService) Open(ctx context.Context, owner string) *cart.Store {
	st := cart.Open(ctx, s.Storage, owner, s.opts...)
	st.Subscribe(func(e cart.Event) {
		applog.Event("info", "cart.changed", nil, map[string]any{
			"kind":       string(e.Kind),
			"item":       e.ItemID,
			"item_count": e.ItemCount,
			"total":      e.Total.StringFixed(2),
		})
	})
	return st
}

// Update holds the owner's lock from load through fn, so concurrent
// requests on one cart apply in sequence instead of overwriting each other.
func (s *CartService) Update(ctx context.Context, owner string, fn func(*cart.Store)) *cart.Store {
	unlock := s.lock(owner)
	defer unlock()
	st := s.Open(ctx, owner)
	fn(st)
	return st
}

func (s *CartService) lock(owner string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = map[string]*ownerLock{}
	}
	l, found := s.locks[owner]
	if !found {
		l = &ownerLock{}
		s.locks[owner] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, owner)
		}
		s.mu.Unlock()
	}
}
