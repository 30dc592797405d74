package checkout

import (
	"context"
	"sync"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/order"
)

type MockCart struct {
	Cart domain.Cart
}

func (m *MockCart) Snapshot() domain.Cart {
	return m.Cart.Clone()
}

// MockSubmitter records requests. When Block is set, Submit waits until it
// is closed.
type MockSubmitter struct {
	mu       sync.Mutex
	Requests []order.Request
	Result   *order.Result
	Err      error
	Started  chan struct{}
	Block    chan struct{}
}

func (m *MockSubmitter) Submit(_ context.Context, req order.Request) (*order.Result, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- struct{}{}
	}
	if m.Block != nil {
		<-m.Block
	}
	return m.Result, m.Err
}

func (m *MockSubmitter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
