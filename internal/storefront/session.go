package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fjod/foodcart/internal/cart"
	"github.com/fjod/foodcart/internal/checkout"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/payment"
	"github.com/fjod/foodcart/internal/pricing"
	"github.com/fjod/foodcart/internal/reconcile"
	"github.com/rs/zerolog/log"
)

// Session is one browsing session: its cart, its checkout flow and the
// components that act on them.
type Session struct {
	ID   string
	Cart *cart.Store
	Flow *checkout.Flow

	reconciler *reconcile.Reconciler
	pending    PendingPayments
	policy     pricing.Policy
	lastSeen   atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) lastUsed() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// CartView is the cart together with its derived totals.
type CartView struct {
	Items     []domain.CartLineItem `json:"items"`
	ItemCount int                   `json:"itemCount"`
	Breakdown pricing.Breakdown     `json:"breakdown"`
}

func (s *Session) CartView() CartView {
	c := s.Cart.Snapshot()
	return CartView{
		Items:     c.Items,
		ItemCount: c.TotalQuantity(),
		Breakdown: s.policy.ComputeBreakdown(c),
	}
}

// Login hydrates the cart with the user's saved cart and pre-populates
// delivery info from the profile. A nil savedCart keeps the current cart.
func (s *Session) Login(ctx context.Context, profile *domain.Profile, savedCart []domain.CartLineItem) error {
	if savedCart != nil {
		if err := s.Cart.ReplaceAll(ctx, savedCart); err != nil {
			return fmt.Errorf("hydrate cart on login: %w", err)
		}
	}
	s.Flow.SetProfile(profile)
	log.Info().Str("session_id", s.ID).Int("items", len(savedCart)).Msg("session logged in")
	return nil
}

// Logout abandons any checkout that has not started submitting and clears
// the cart.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.Flow.Abandon(); err != nil {
		if errors.Is(err, checkout.ErrIllegalTransition) && s.Flow.Step() == domain.StepSubmitting {
			return checkout.ErrSubmissionInProgress
		}
		return err
	}
	s.Flow.SetProfile(nil)
	if err := s.Cart.Clear(ctx); err != nil {
		return fmt.Errorf("clear cart on logout: %w", err)
	}
	log.Info().Str("session_id", s.ID).Msg("session logged out")
	return nil
}

// Reconcile handles the return from an external payment page.
func (s *Session) Reconcile(ctx context.Context, cb reconcile.Callback) (*reconcile.Result, error) {
	return s.reconciler.Reconcile(ctx, cb)
}

// RetryPayment resumes checkout at payment selection for an order whose
// payment was rejected or abandoned. Only the session that started the
// payment can resume it.
func (s *Session) RetryPayment(ctx context.Context, orderID string) error {
	p, err := s.pending.Load(ctx, orderID)
	if err != nil {
		return err
	}
	if p.Owner != s.ID {
		log.Warn().Str("session_id", s.ID).Str("order_id", orderID).Msg("retry refused for another session's order")
		return payment.ErrNoPendingPayment
	}
	return s.Flow.Resume(*p)
}
