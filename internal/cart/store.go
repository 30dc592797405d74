package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/storage"
	"github.com/rs/zerolog/log"
)

// Store owns one cart. Every mutation is written to durable storage before it
// becomes visible in memory, so a failed write leaves the previous state intact.
type Store struct {
	mu      sync.Mutex
	key     string
	storage storage.Store
	items   []domain.CartLineItem

	subMu   sync.Mutex
	subs    map[int]func(domain.Cart)
	nextSub int
}

// Open rehydrates the cart persisted under key. A corrupt record is purged and
// the store starts empty.
func Open(ctx context.Context, st storage.Store, key string) (*Store, error) {
	s := &Store{
		key:     key,
		storage: st,
		subs:    make(map[int]func(domain.Cart)),
	}

	data, err := st.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}

	var persisted domain.Cart
	if errDecode := json.Unmarshal(data, &persisted); errDecode != nil {
		log.Warn().Err(errDecode).Str("key", key).Msg("corrupt cart record, starting empty")
		if errDel := st.Delete(ctx, key); errDel != nil {
			log.Error().Err(errDel).Str("key", key).Msg("failed to purge corrupt cart record")
		}
		return s, nil
	}

	s.items = normalize(persisted.Items)
	return s, nil
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Cart{Items: cloneItems(s.items)}
}

// Subscribe registers fn to receive the cart after every committed mutation.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(domain.Cart)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// AddItem appends item with quantity 1, or adds one to the existing line.
func (s *Store) AddItem(ctx context.Context, item domain.CartLineItem) error {
	if item.ItemID == "" {
		return fmt.Errorf("%w: item id is required", ErrInvalidItem)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}

	return s.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, error) {
		if i := indexOf(items, item.ItemID); i >= 0 {
			items[i].Quantity++
			return items, nil
		}
		item.Quantity = 1
		return append(items, item), nil
	})
}

func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	return s.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, error) {
		i := indexOf(items, itemID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		return append(items[:i], items[i+1:]...), nil
	})
}

// SetQuantity sets the line quantity; zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, itemID string, qty int) error {
	return s.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, error) {
		i := indexOf(items, itemID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		if qty <= 0 {
			return append(items[:i], items[i+1:]...), nil
		}
		items[i].Quantity = qty
		return items, nil
	})
}

func (s *Store) Increment(ctx context.Context, itemID string) error {
	return s.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, error) {
		i := indexOf(items, itemID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		items[i].Quantity++
		return items, nil
	})
}

// Decrement removes the line when its quantity would reach zero.
func (s *Store) Decrement(ctx context.Context, itemID string) error {
	return s.mutate(ctx, func(items []domain.CartLineItem) ([]domain.CartLineItem, error) {
		i := indexOf(items, itemID)
		if i < 0 {
			return nil, ErrItemNotFound
		}
		if items[i].Quantity <= 1 {
			return append(items[:i], items[i+1:]...), nil
		}
		items[i].Quantity--
		return items, nil
	})
}

// ReplaceAll swaps the whole cart, e.g. with the saved cart of a user who just
// logged in. Duplicate ids are merged and lines without quantity are dropped.
func (s *Store) ReplaceAll(ctx context.Context, items []domain.CartLineItem) error {
	for _, item := range items {
		if item.ItemID == "" {
			return fmt.Errorf("%w: item id is required", ErrInvalidItem)
		}
	}
	return s.mutate(ctx, func([]domain.CartLineItem) ([]domain.CartLineItem, error) {
		return normalize(items), nil
	})
}

// Clear empties the cart and deletes its durable record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	if err := s.storage.Delete(ctx, s.key); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete cart %s: %w", s.key, err)
	}
	s.items = nil
	snapshot := domain.Cart{Items: []domain.CartLineItem{}}
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// mutate applies fn to a copy of the items, persists the result and only then
// commits it.
func (s *Store) mutate(ctx context.Context, fn func([]domain.CartLineItem) ([]domain.CartLineItem, error)) error {
	s.mu.Lock()

	next, err := fn(cloneItems(s.items))
	if err != nil {
		s.mu.Unlock()
		return err
	}

	data, err := json.Marshal(domain.Cart{Items: next})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.storage.Put(ctx, s.key, data); err != nil {
		s.mu.Unlock()
		log.Error().Err(err).Str("key", s.key).Msg("cart durability write failed")
		return fmt.Errorf("persist cart %s: %w", s.key, err)
	}

	s.items = next
	snapshot := domain.Cart{Items: cloneItems(next)}
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

func (s *Store) notify(c domain.Cart) {
	s.subMu.Lock()
	fns := make([]func(domain.Cart), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c.Clone())
	}
}

func indexOf(items []domain.CartLineItem, itemID string) int {
	for i := range items {
		if items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// normalize merges duplicate ids, keeps first-seen order and drops lines
// whose quantity is not positive.
func normalize(items []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 || item.ItemID == "" {
			continue
		}
		if i := indexOf(out, item.ItemID); i >= 0 {
			out[i].Quantity += item.Quantity
			continue
		}
		out = append(out, item)
	}
	return out
}

func cloneItems(items []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(items))
	copy(out, items)
	return out
}
