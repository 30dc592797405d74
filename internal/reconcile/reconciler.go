package reconcile

import (
	"context"
	"errors"

	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/events"
	"github.com/fjod/foodcart/internal/order"
	"github.com/fjod/foodcart/internal/payment"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusVerified Status = "Verified"
	StatusRejected Status = "Rejected"
	StatusUnknown  Status = "Unknown"
)

type GatewayResolver interface {
	For(method domain.PaymentMethod) (payment.Gateway, error)
}

type PendingPayments interface {
	Load(ctx context.Context, orderID string) (*domain.PendingPayment, error)
	Delete(ctx context.Context, orderID string) error
}

type CartClearer interface {
	Clear(ctx context.Context) error
}

// Callback is what the user brings back from the external payment page.
type Callback struct {
	OrderID   string
	SessionID string
	// Failed is set on the failure route; no verification is attempted.
	Failed bool
}

type Result struct {
	Status  Status                 `json:"status"`
	Order   *domain.Order          `json:"order,omitempty"`
	Pending *domain.PendingPayment `json:"-"`
	Action  domain.Action          `json:"action,omitempty"`
	Message string                 `json:"message,omitempty"`
}

type Reconciler struct {
	owner       string
	gateways    GatewayResolver
	pending     PendingPayments
	cart        CartClearer
	publisher   events.Publisher
	clearPolicy order.ClearPolicy
}

type Deps struct {
	// Owner is the session id stamped on the pending records this
	// reconciler may act on.
	Owner       string
	Gateways    GatewayResolver
	Pending     PendingPayments
	Cart        CartClearer
	Publisher   events.Publisher
	ClearPolicy order.ClearPolicy
}

func NewReconciler(d Deps) *Reconciler {
	pub := d.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Reconciler{
		owner:       d.Owner,
		gateways:    d.Gateways,
		pending:     d.Pending,
		cart:        d.Cart,
		publisher:   pub,
		clearPolicy: d.ClearPolicy,
	}
}

// Reconcile asks the gateway whether the payment for cb.OrderID went through.
// Local state changes only on a definite answer: Verified drops the pending
// record, Rejected keeps it for a retry and Unknown touches nothing.
func (r *Reconciler) Reconcile(ctx context.Context, cb Callback) (*Result, error) {
	if cb.OrderID == "" {
		return nil, domain.NewValidationError("order id not found",
			map[string]string{"orderId": "orderId is required"})
	}
	logger := log.With().Str("order_id", cb.OrderID).Logger()

	pending, err := r.pending.Load(ctx, cb.OrderID)
	if err != nil {
		if !errors.Is(err, payment.ErrNoPendingPayment) {
			logger.Error().Err(err).Msg("failed to load pending payment record")
		}
		pending = nil
	}
	if pending != nil && pending.Owner != r.owner {
		logger.Warn().Str("owner", pending.Owner).Msg("pending payment belongs to another session")
		return nil, payment.ErrNoPendingPayment
	}

	if cb.Failed {
		r.publish(ctx, events.PaymentRejected, cb.OrderID, pending)
		return &Result{
			Status:  StatusRejected,
			Pending: pending,
			Action:  domain.ActionRetryPayment,
			Message: "payment was cancelled or failed",
		}, nil
	}

	method := selectMethod(cb, pending)
	ref := domain.PaymentReference{OrderID: cb.OrderID, SessionID: cb.SessionID}
	if ref.SessionID == "" && pending != nil {
		ref.SessionID = pending.Session.SessionID
	}

	gw, err := r.gateways.For(method)
	if err != nil {
		logger.Error().Err(err).Msg("no gateway to verify payment")
		return unknown(err), nil
	}

	v, err := gw.Verify(ctx, ref)
	if err != nil {
		if errors.Is(err, payment.ErrMissingReference) {
			return nil, domain.NewValidationError("payment reference incomplete",
				map[string]string{"session_id": err.Error()})
		}
		if backend.IsAuthError(err) {
			return nil, domain.NewCheckoutError(domain.KindAuthenticationRequired,
				"log in again to confirm your payment", err)
		}
		logger.Warn().Err(err).Msg("payment verification outcome unknown")
		return unknown(err), nil
	}

	if !v.Success {
		logger.Info().Str("reason", v.Message).Msg("payment rejected")
		r.publish(ctx, events.PaymentRejected, cb.OrderID, pending)
		return &Result{
			Status:  StatusRejected,
			Order:   v.Order,
			Pending: pending,
			Action:  domain.ActionRetryPayment,
			Message: "there was an issue verifying your payment",
		}, nil
	}

	if errDel := r.pending.Delete(ctx, cb.OrderID); errDel != nil {
		logger.Error().Err(errDel).Msg("failed to delete pending payment record")
	}
	if r.clearPolicy == order.ClearOnPaymentVerified {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), order.ClearTimeout)
		errClear := r.cart.Clear(cctx)
		cancel()
		if errClear != nil {
			logger.Error().Err(errClear).Msg("failed to clear cart after verified payment")
		}
	}
	r.publish(ctx, events.PaymentVerified, cb.OrderID, pending)
	logger.Info().Msg("payment verified")

	return &Result{Status: StatusVerified, Order: v.Order}, nil
}

// selectMethod picks the adapter: a session id means hosted card, otherwise
// the method stored when the session was created, otherwise the redirect gateway.
func selectMethod(cb Callback, pending *domain.PendingPayment) domain.PaymentMethod {
	if cb.SessionID != "" {
		return domain.PaymentMethodHostedCard
	}
	if pending != nil && pending.Method.RequiresGateway() {
		return pending.Method
	}
	return domain.PaymentMethodRedirectGateway
}

func unknown(err error) *Result {
	ce := domain.NewCheckoutError(domain.KindVerificationUnknown,
		"we could not confirm your payment yet", err)
	return &Result{
		Status:  StatusUnknown,
		Action:  ce.Action(),
		Message: ce.Message,
	}
}

func (r *Reconciler) publish(ctx context.Context, t events.EventType, orderID string, pending *domain.PendingPayment) {
	e := events.NewEvent(t, orderID)
	if pending != nil {
		e.AttemptID = pending.AttemptID
		e.Method = pending.Method
		e.Total = pending.Total
	}
	if err := r.publisher.Publish(ctx, e); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msgf("failed to publish %s", t)
	}
}
