package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/order"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type CartSource interface {
	Snapshot() domain.Cart
}

type Submitter interface {
	Submit(ctx context.Context, req order.Request) (*order.Result, error)
}

// Flow is the checkout state machine for one browsing session. It owns the
// delivery info, the payment method and the step position; the cart is only
// ever read as a snapshot when the user confirms.
type Flow struct {
	mu          sync.Mutex
	step        domain.CheckoutStep
	profile     *domain.Profile
	delivery    domain.DeliveryInfo
	method      domain.PaymentMethod
	attemptID   string
	fieldErrors map[string]string
	lastErr     error
	result      *order.Result
	pending     *order.PendingOrder

	cart      CartSource
	submitter Submitter
}

func NewFlow(cart CartSource, submitter Submitter, profile *domain.Profile) *Flow {
	f := &Flow{cart: cart, submitter: submitter, profile: profile}
	f.reset()
	return f
}

func (f *Flow) reset() {
	f.step = domain.StepDeliveryInfo
	f.delivery = domain.DeliveryInfoFromProfile(f.profile)
	f.method = domain.PaymentMethodCash
	f.attemptID = ""
	f.fieldErrors = nil
	f.lastErr = nil
	f.result = nil
	f.pending = nil
}

// SetProfile records the logged-in user's profile. Delivery info the user
// has not edited since it was pre-populated follows the new profile.
func (f *Flow) SetProfile(p *domain.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()

	untouched := f.delivery == domain.DeliveryInfoFromProfile(f.profile)
	f.profile = p
	if f.step == domain.StepDeliveryInfo && untouched {
		f.delivery = domain.DeliveryInfoFromProfile(p)
	}
}

func (f *Flow) SetDeliveryInfo(d domain.DeliveryInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != domain.StepDeliveryInfo {
		return fmt.Errorf("%w: delivery info can only be edited in %s, current step %s",
			ErrIllegalTransition, domain.StepDeliveryInfo, f.step)
	}
	f.delivery = d
	return nil
}

// ContinueToPayment moves on only when every required delivery field is set.
// On failure the flow stays put and the field errors are kept for the view.
func (f *Flow) ContinueToPayment() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.StepPaymentSelection); err != nil {
		return err
	}
	if fields := f.delivery.Validate(); len(fields) > 0 {
		f.fieldErrors = fields
		return domain.NewValidationError("delivery information is incomplete", fields)
	}
	f.fieldErrors = nil
	f.step = domain.StepPaymentSelection
	return nil
}

// SelectPaymentMethod may be called until submission begins.
func (f *Flow) SelectPaymentMethod(m domain.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != domain.StepPaymentSelection && f.step != domain.StepReview {
		return fmt.Errorf("%w: payment method cannot change in step %s", ErrIllegalTransition, f.step)
	}
	if _, err := domain.ParsePaymentMethod(string(m)); err != nil {
		return domain.NewValidationError("unknown payment method",
			map[string]string{"paymentMethod": err.Error()})
	}
	f.method = m
	return nil
}

func (f *Flow) ContinueToReview() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard(domain.StepReview); err != nil {
		return err
	}
	if f.method == "" {
		f.method = domain.PaymentMethodCash
	}
	f.step = domain.StepReview
	return nil
}

// Back goes one step backwards without losing entered data.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var prev domain.CheckoutStep
	switch f.step {
	case domain.StepReview:
		prev = domain.StepPaymentSelection
	case domain.StepPaymentSelection:
		prev = domain.StepDeliveryInfo
	default:
		return fmt.Errorf("%w: cannot go back from %s", ErrIllegalTransition, f.step)
	}
	f.step = prev
	f.lastErr = nil
	return nil
}

// Confirm snapshots the cart and submits the order. Only one submission can
// be in flight; a second Confirm while submitting returns
// ErrSubmissionInProgress without calling the submitter.
func (f *Flow) Confirm(ctx context.Context) (*order.Result, error) {
	f.mu.Lock()
	if f.step == domain.StepSubmitting {
		f.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if err := f.guard(domain.StepSubmitting); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.step = domain.StepSubmitting
	f.attemptID = uuid.NewString()
	f.lastErr = nil
	f.fieldErrors = nil
	req := order.Request{
		Cart:      f.cart.Snapshot(),
		Delivery:  f.delivery,
		Method:    f.method,
		AttemptID: f.attemptID,
	}
	if f.pending != nil {
		p := *f.pending
		req.Pending = &p
	}
	f.mu.Unlock()

	res, err := f.submitter.Submit(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.step = domain.StepFailed
		f.lastErr = err
		var ce *domain.CheckoutError
		if errors.As(err, &ce) && ce.Fields != nil {
			f.fieldErrors = ce.Fields
		}
		if res != nil && res.Order != nil && res.Order.ID != "" {
			items := req.Cart.Items
			if req.Pending != nil && req.Pending.ID == res.Order.ID && len(req.Pending.Items) > 0 {
				items = req.Pending.Items
			}
			f.pending = &order.PendingOrder{ID: res.Order.ID, Total: res.Breakdown.GrandTotal, Items: items}
		}
		log.Warn().Err(err).Str("attempt_id", req.AttemptID).Msg("checkout submission failed, back to review")
		// failure is shown on the review step
		f.step = domain.StepReview
		return res, err
	}

	f.step = domain.StepSucceeded
	f.result = res
	f.pending = nil
	return res, nil
}

// Abandon resets the flow. It is refused once submission has started and
// never touches the cart.
func (f *Flow) Abandon() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.step.CanAbandon() && f.step != domain.StepSucceeded {
		return fmt.Errorf("%w: cannot abandon checkout in step %s", ErrIllegalTransition, f.step)
	}
	f.reset()
	return nil
}

// Resume re-enters the flow at payment selection for an order whose payment
// was rejected, keeping the delivery info captured at submission.
func (f *Flow) Resume(p domain.PendingPayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step == domain.StepSubmitting {
		return ErrSubmissionInProgress
	}
	f.step = domain.StepPaymentSelection
	f.delivery = p.Delivery
	f.method = p.Method
	f.fieldErrors = nil
	f.lastErr = nil
	f.result = nil
	f.pending = &order.PendingOrder{ID: p.Session.OrderID, Total: p.Total, Items: p.Items}
	return nil
}

func (f *Flow) Step() domain.CheckoutStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) guard(next domain.CheckoutStep) error {
	if !f.step.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f.step, next)
	}
	return nil
}
