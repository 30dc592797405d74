package http

import (
	"context"

	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/payment"
)

// MockOrders implements the backend order calls for testing
type MockOrders struct {
	Created   *domain.Order
	CreateErr error
	Calls     int
	History   []domain.Order
	OnCreate  func()
}

func (m *MockOrders) CreateOrder(context.Context, backend.OrderRequest) (*domain.Order, error) {
	m.Calls++
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
	return &domain.Order{ID: orderID, Status: domain.OrderStatusCancelled}, nil
}

// MockGateway implements payment.Gateway for testing
type MockGateway struct {
	PaymentMethod domain.PaymentMethod
	Session       *domain.PaymentSession
	SessionErr    error
	Verification  *payment.Verification
	VerifyErr     error
	Calls         int
	LastReq       payment.SessionRequest
}

func (m *MockGateway) Method() domain.PaymentMethod {
	return m.PaymentMethod
}

func (m *MockGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*domain.PaymentSession, error) {
	m.Calls++
	m.LastReq = req
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	return m.Session, nil
}

func (m *MockGateway) Verify(context.Context, domain.PaymentReference) (*payment.Verification, error) {
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	return m.Verification, nil
}
