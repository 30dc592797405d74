package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/foodcart/internal/checkout"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/pricing"
	"github.com/go-chi/chi/v5"
)

type CheckoutHandler struct {
	timeout time.Duration
}

func NewCheckoutHandler(timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{timeout: timeout}
}

type SelectPaymentRequestDTO struct {
	PaymentMethod string `json:"paymentMethod"`
}

type ConfirmResponseDTO struct {
	Step           domain.CheckoutStep    `json:"step"`
	Order          *domain.Order          `json:"order"`
	PaymentSession *domain.PaymentSession `json:"paymentSession,omitempty"`
	Breakdown      pricing.Breakdown      `json:"breakdown"`
}

// GET /api/checkout
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFromContext(r.Context()).Flow.View())
}

// POST /api/checkout/delivery
func (h *CheckoutHandler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	var req domain.DeliveryInfo
	if !decodeJSON(w, r, &req) {
		return
	}
	h.step(w, r, func(f *checkout.Flow) error {
		if err := f.SetDeliveryInfo(req); err != nil {
			return err
		}
		return f.ContinueToPayment()
	})
}

// POST /api/checkout/payment
func (h *CheckoutHandler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	var req SelectPaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.step(w, r, func(f *checkout.Flow) error {
		if err := f.SelectPaymentMethod(domain.PaymentMethod(req.PaymentMethod)); err != nil {
			return err
		}
		if f.Step() == domain.StepPaymentSelection {
			return f.ContinueToReview()
		}
		return nil
	})
}

// POST /api/checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*checkout.Flow).Back)
}

// POST /api/checkout/abandon
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*checkout.Flow).Abandon)
}

// POST /api/checkout/confirm
//
// Submission is not tied to the client connection: once it starts it runs
// to completion within the handler timeout.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	flow := sessionFromContext(ctx).Flow
	res, err := flow.Confirm(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ConfirmResponseDTO{
		Step:           flow.Step(),
		Order:          res.Order,
		PaymentSession: res.Session,
		Breakdown:      res.Breakdown,
	})
}

// POST /api/checkout/retry/{order_id}
func (h *CheckoutHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(ctx)
	if err := s.RetryPayment(ctx, chi.URLParam(r, "order_id")); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Flow.View())
}

func (h *CheckoutHandler) step(w http.ResponseWriter, r *http.Request, fn func(f *checkout.Flow) error) {
	flow := sessionFromContext(r.Context()).Flow
	if err := fn(flow); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, flow.View())
}
