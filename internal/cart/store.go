// Package cart holds the cart reducer and the storage it persists to.
package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"wanderlust/internal/domain"
	applog "wanderlust/internal/log"
)

// Storage is where a cart's lines live between requests. Load on a missing
// key returns an empty slice and no error.
type Storage interface {
	Load(ctx context.Context, key string) ([]domain.CartItem, error)
	Save(ctx context.Context, key string, items []domain.CartItem) error
	Clear(ctx context.Context, key string) error
}

type EventKind string

const (
	EventAdded   EventKind = "added"
	EventRemoved EventKind = "removed"
	EventUpdated EventKind = "updated"
	EventCleared EventKind = "cleared"
)

// Event is the change signal fired after every mutation.
type Event struct {
	Kind      EventKind
	Key       string
	ItemID    string
	ItemCount int
	Total     decimal.Decimal
}

type Option func(*Store)

// WithErrorHook replaces the default persistence-failure logger.
func WithErrorHook(fn func(op string, err error)) Option {
	return func(s *Store) { s.onErr = fn }
}

// Store is the reducer over one cart. Mutations are serialized; every one
// persists the full line list and then notifies subscribers. Persistence
// errors are reported to the error hook and never undo the in-memory state.
type Store struct {
	mu      sync.Mutex
	ctx     context.Context
	key     string
	storage Storage
	items   []domain.CartItem

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int

	onErr func(op string, err error)
}

// Open loads the cart stored under key. A failed load starts from an empty cart.
func Open(ctx context.Context, storage Storage, key string, opts ...Option) *Store {
	s := &Store{ctx: ctx, key: key, storage: storage, subs: map[int]func(Event){}}
	s.onErr = func(op string, err error) {
		applog.Event("error", "cart.persist.fail", err, map[string]any{"op": op, "key": key})
	}
	for _, o := range opts {
		o(s)
	}
	items, err := storage.Load(ctx, key)
	if err != nil {
		s.onErr("load", err)
		items = nil
	}
	s.items = items
	return s
}

// Subscribe registers fn for change events and returns its cancel func.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// AddItem merges item into its line or appends a new line with quantity 1.
// Free lines never go above 1.
func (s *Store) AddItem(item domain.CartItem) {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if !s.items[i].SameLine(item) {
			continue
		}
		if s.items[i].IsFree() {
			s.items[i].Quantity = 1
		} else {
			s.items[i].Quantity++
		}
		found = true
		break
	}
	if !found {
		item.Quantity = 1
		item.SelectedVariants = copyVariants(item.SelectedVariants)
		s.items = append(s.items, item)
	}
	s.commit(Event{Kind: EventAdded, ItemID: item.ID})
}

// RemoveItem drops every line with the given product id, whatever its variants.
func (s *Store) RemoveItem(id string) {
	s.mu.Lock()
	s.removeLocked(id)
	s.commit(Event{Kind: EventRemoved, ItemID: id})
}

// UpdateQuantity sets the quantity of the lines for id. q <= 0 removes them.
func (s *Store) UpdateQuantity(id string, q int) {
	s.mu.Lock()
	if q <= 0 {
		s.removeLocked(id)
		s.commit(Event{Kind: EventRemoved, ItemID: id})
		return
	}
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if s.items[i].IsFree() {
			s.items[i].Quantity = 1
		} else {
			s.items[i].Quantity = q
		}
	}
	s.commit(Event{Kind: EventUpdated, ItemID: id})
}

func (s *Store) ClearCart() {
	s.mu.Lock()
	s.items = nil
	s.commit(Event{Kind: EventCleared})
}

// Items returns a copy of the current lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.items)
}

func (s *Store) CartTotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartTotal(s.items)
}

func (s *Store) removeLocked(id string) {
	kept := s.items[:0]
	for _, it := range s.items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	s.items = kept
}

// commit persists and notifies. It is entered with s.mu held and releases it
// before subscribers run.
func (s *Store) commit(ev Event) {
	snapshot := cloneItems(s.items)
	var err error
	if len(snapshot) == 0 {
		err = s.storage.Clear(s.ctx, s.key)
	} else {
		err = s.storage.Save(s.ctx, s.key, snapshot)
	}
	ev.Key = s.key
	ev.ItemCount = itemCount(snapshot)
	ev.Total = cartTotal(snapshot)
	s.mu.Unlock()

	if err != nil {
		s.onErr(string(ev.Kind), err)
	}

	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func itemCount(items []domain.CartItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func cartTotal(items []domain.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		p, err := it.UnitPrice()
		if err != nil {
			continue
		}
		sum = sum.Add(p.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	for i, it := range items {
		it.SelectedVariants = copyVariants(it.SelectedVariants)
		out[i] = it
	}
	return out
}

func copyVariants(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
