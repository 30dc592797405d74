package reconcile

import (
	"context"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/events"
	"github.com/fjod/foodcart/internal/payment"
)

type MockGateway struct {
	PaymentMethod domain.PaymentMethod
	Result        *payment.Verification
	Err           error
	Calls         int
	LastRef       domain.PaymentReference
}

func (m *MockGateway) Method() domain.PaymentMethod {
	return m.PaymentMethod
}

func (m *MockGateway) CreateSession(context.Context, payment.SessionRequest) (*domain.PaymentSession, error) {
	return nil, payment.ErrUnsupported
}

func (m *MockGateway) Verify(_ context.Context, ref domain.PaymentReference) (*payment.Verification, error) {
	m.Calls++
	m.LastRef = ref
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

type MockCart struct {
	Cleared int
}

func (m *MockCart) Clear(context.Context) error {
	m.Cleared++
	return nil
}

type MockPublisher struct {
	Events []events.Event
}

func (m *MockPublisher) Publish(_ context.Context, e events.Event) error {
	m.Events = append(m.Events, e)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}
