package storefront

import (
	"context"
	"sync"

	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/events"
)

// MockOrders implements order.OrderCreator and OrderHistory for testing
type MockOrders struct {
	Created   *domain.Order
	CreateErr error
	History   []domain.Order
	CancelErr error
	Cancelled []string
	// OnCreate runs before CreateOrder answers.
	OnCreate func()
}

func (m *MockOrders) CreateOrder(_ context.Context, req backend.OrderRequest) (*domain.Order, error) {
	if m.OnCreate != nil {
		m.OnCreate()
	}
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return m.Created, nil
}

func (m *MockOrders) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	for i := range m.History {
		if m.History[i].ID == orderID {
			o := m.History[i]
			return &o, nil
		}
	}
	return nil, &backend.APIError{Status: 404, Message: "order not found"}
}

func (m *MockOrders) ListMyOrders(context.Context) ([]domain.Order, error) {
	return m.History, nil
}

func (m *MockOrders) CancelOrder(_ context.Context, orderID string) (*domain.Order, error) {
	if m.CancelErr != nil {
		return nil, m.CancelErr
	}
	m.Cancelled = append(m.Cancelled, orderID)
	return &domain.Order{ID: orderID, Status: domain.OrderStatusCancelled}, nil
}

// MockPublisher records published events
type MockPublisher struct {
	mu     sync.Mutex
	Events []events.Event
}

func (m *MockPublisher) Publish(_ context.Context, e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func (m *MockPublisher) Types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.EventType, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}
