package payment

import (
	"context"
	"fmt"

	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/domain"
)

type RedirectBackend interface {
	InitiateRedirect(ctx context.Context, req backend.PaymentRequest) (string, error)
	VerifyRedirect(ctx context.Context, orderID string) (*backend.Verification, error)
}

// RedirectGateway opens the gateway page in a separate browsing context while
// the app stays resident. It is verified by order id alone.
type RedirectGateway struct {
	backend RedirectBackend
}

func NewRedirectGateway(b RedirectBackend) *RedirectGateway {
	return &RedirectGateway{backend: b}
}

func (g *RedirectGateway) Method() domain.PaymentMethod {
	return domain.PaymentMethodRedirectGateway
}

func (g *RedirectGateway) CreateSession(ctx context.Context, req SessionRequest) (*domain.PaymentSession, error) {
	redirectURL, err := g.backend.InitiateRedirect(ctx, backend.PaymentRequest{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Customer: req.Customer,
	})
	if err != nil {
		return nil, fmt.Errorf("initiate redirect payment: %w", err)
	}
	if redirectURL == "" {
		return nil, ErrEmptyRedirectURL
	}
	return &domain.PaymentSession{
		OrderID:     req.OrderID,
		RedirectURL: redirectURL,
		Transport:   domain.TransportNewWindow,
	}, nil
}

func (g *RedirectGateway) Verify(ctx context.Context, ref domain.PaymentReference) (*Verification, error) {
	if ref.OrderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrMissingReference)
	}
	bv, err := g.backend.VerifyRedirect(ctx, ref.OrderID)
	if err != nil {
		if backend.IsRejection(err) {
			return &Verification{Success: false, Message: err.Error()}, nil
		}
		return nil, fmt.Errorf("verify redirect payment for order %s: %w", ref.OrderID, err)
	}
	return &Verification{Success: bv.Success, Order: bv.Order, Message: bv.Message}, nil
}
