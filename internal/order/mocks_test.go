package order

import (
	"context"
	"sync"

	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/events"
	"github.com/fjod/foodcart/internal/payment"
)

// MockOrderCreator implements OrderCreator for testing
type MockOrderCreator struct {
	Order    *domain.Order
	Err      error
	Calls    int
	LastReq  backend.OrderRequest
	LastKey  string
	OnCreate func()
}

func (m *MockOrderCreator) CreateOrder(ctx context.Context, req backend.OrderRequest) (*domain.Order, error) {
	m.Calls++
	m.LastReq = req
	m.LastKey = backend.IdempotencyKeyFromContext(ctx)
	if m.OnCreate != nil {
		m.OnCreate()
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

// MockGateway implements payment.Gateway for testing
type MockGateway struct {
	PaymentMethod domain.PaymentMethod
	Session       *domain.PaymentSession
	Err           error
	Calls         int
	LastReq       payment.SessionRequest
}

func (m *MockGateway) Method() domain.PaymentMethod {
	return m.PaymentMethod
}

func (m *MockGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*domain.PaymentSession, error) {
	m.Calls++
	m.LastReq = req
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Session, nil
}

func (m *MockGateway) Verify(context.Context, domain.PaymentReference) (*payment.Verification, error) {
	return nil, payment.ErrUnsupported
}

// MockPending implements PendingPayments for testing
type MockPending struct {
	Saved []domain.PendingPayment
	Err   error
}

func (m *MockPending) Save(_ context.Context, p domain.PendingPayment) error {
	if m.Err != nil {
		return m.Err
	}
	m.Saved = append(m.Saved, p)
	return nil
}

// MockCart implements CartClearer for testing
type MockCart struct {
	Cleared int
	Err     error
}

func (m *MockCart) Clear(ctx context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Cleared++
	return nil
}

// MockPublisher records published events. With Stall set it behaves like an
// unreachable broker and returns only when ctx ends.
type MockPublisher struct {
	mu     sync.Mutex
	Events []events.Event
	Err    error
	Stall  bool
}

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) error {
	if m.Stall {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, e)
	return m.Err
}

func (m *MockPublisher) Close() error {
	return nil
}

func (m *MockPublisher) Types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.EventType, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}
