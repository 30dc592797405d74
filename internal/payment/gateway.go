package payment

import (
	"context"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/shopspring/decimal"
)

type SessionRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Customer domain.DeliveryInfo
}

// Verification is a definite answer from the gateway. Unknown outcomes are
// returned as errors instead.
type Verification struct {
	Success bool
	Order   *domain.Order
	Message string
}

// Gateway is the uniform wrapper around one payment backend.
type Gateway interface {
	Method() domain.PaymentMethod
	CreateSession(ctx context.Context, req SessionRequest) (*domain.PaymentSession, error)
	Verify(ctx context.Context, ref domain.PaymentReference) (*Verification, error)
}

// Cash completes with order creation and never opens a session.
type Cash struct{}

func (Cash) Method() domain.PaymentMethod {
	return domain.PaymentMethodCash
}

func (Cash) CreateSession(context.Context, SessionRequest) (*domain.PaymentSession, error) {
	return nil, ErrUnsupported
}

func (Cash) Verify(context.Context, domain.PaymentReference) (*Verification, error) {
	return nil, ErrUnsupported
}
