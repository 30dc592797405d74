package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/domain"
	"golang.org/x/sync/singleflight"
)

const verifiedTTL = time.Hour

type HostedCardBackend interface {
	CreateHostedCardSession(ctx context.Context, req backend.PaymentRequest) (*backend.HostedCardSession, error)
	VerifyHostedCard(ctx context.Context, sessionID, orderID string) (*backend.Verification, error)
}

type verifiedEntry struct {
	result *Verification
	at     time.Time
}

// HostedCard sends the user to an externally hosted checkout page with a full
// page navigation. Verify is idempotent per session: concurrent calls share
// one backend request and definite answers are remembered.
type HostedCard struct {
	backend HostedCardBackend
	sfg     singleflight.Group

	mu       sync.Mutex
	verified map[string]verifiedEntry
}

func NewHostedCard(b HostedCardBackend) *HostedCard {
	return &HostedCard{backend: b, verified: make(map[string]verifiedEntry)}
}

func (h *HostedCard) Method() domain.PaymentMethod {
	return domain.PaymentMethodHostedCard
}

func (h *HostedCard) CreateSession(ctx context.Context, req SessionRequest) (*domain.PaymentSession, error) {
	sess, err := h.backend.CreateHostedCardSession(ctx, backend.PaymentRequest{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Customer: req.Customer,
	})
	if err != nil {
		return nil, fmt.Errorf("create hosted card session: %w", err)
	}
	return &domain.PaymentSession{
		OrderID:     req.OrderID,
		RedirectURL: sess.URL,
		SessionID:   sess.SessionID,
		Transport:   domain.TransportFullPage,
	}, nil
}

func (h *HostedCard) Verify(ctx context.Context, ref domain.PaymentReference) (*Verification, error) {
	if ref.SessionID == "" || ref.OrderID == "" {
		return nil, fmt.Errorf("%w: hosted card needs session id and order id", ErrMissingReference)
	}
	if v, ok := h.cached(ref.SessionID); ok {
		return v, nil
	}

	res, err, _ := h.sfg.Do(ref.SessionID, func() (interface{}, error) {
		if v, ok := h.cached(ref.SessionID); ok {
			return v, nil
		}
		bv, errVerify := h.backend.VerifyHostedCard(ctx, ref.SessionID, ref.OrderID)
		if errVerify != nil {
			if backend.IsRejection(errVerify) {
				v := &Verification{Success: false, Message: errVerify.Error()}
				h.remember(ref.SessionID, v)
				return v, nil
			}
			return nil, errVerify
		}
		v := &Verification{Success: bv.Success, Order: bv.Order, Message: bv.Message}
		h.remember(ref.SessionID, v)
		return v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify hosted card session %s: %w", ref.SessionID, err)
	}
	return res.(*Verification), nil
}

func (h *HostedCard) cached(sessionID string) (*Verification, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.verified[sessionID]
	if !ok || time.Since(e.at) > verifiedTTL {
		return nil, false
	}
	return e.result, true
}

func (h *HostedCard) remember(sessionID string, v *Verification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for id, e := range h.verified {
		if now.Sub(e.at) > verifiedTTL {
			delete(h.verified, id)
		}
	}
	h.verified[sessionID] = verifiedEntry{result: v, at: now}
}
