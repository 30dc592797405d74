package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/storage"
)

func pendingKey(orderID string) string {
	return fmt.Sprintf("payment:%s", orderID)
}

// SessionStore keeps pending payment records so a checkout can be resumed by
// order id from a later application load.
type SessionStore struct {
	storage storage.Store
}

func NewSessionStore(st storage.Store) *SessionStore {
	return &SessionStore{storage: st}
}

func (s *SessionStore) Save(ctx context.Context, p domain.PendingPayment) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode pending payment: %w", err)
	}
	if err := s.storage.Put(ctx, pendingKey(p.Session.OrderID), data); err != nil {
		return fmt.Errorf("save pending payment %s: %w", p.Session.OrderID, err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, orderID string) (*domain.PendingPayment, error) {
	data, err := s.storage.Get(ctx, pendingKey(orderID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoPendingPayment
	}
	if err != nil {
		return nil, fmt.Errorf("load pending payment %s: %w", orderID, err)
	}
	var p domain.PendingPayment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pending payment %s: %w", orderID, err)
	}
	return &p, nil
}

func (s *SessionStore) Delete(ctx context.Context, orderID string) error {
	if err := s.storage.Delete(ctx, pendingKey(orderID)); err != nil {
		return fmt.Errorf("delete pending payment %s: %w", orderID, err)
	}
	return nil
}
