package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/foodcart/internal/reconcile"
)

// PaymentHandler serves the success and failure URLs the gateways send the
// customer back to.
type PaymentHandler struct {
	timeout time.Duration
}

func NewPaymentHandler(timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{timeout: timeout}
}

// GET /payment/success?orderId=&session_id=
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.reconcile(w, r, reconcile.Callback{OrderID: q.Get("orderId"), SessionID: q.Get("session_id")})
}

// GET /payment/failed?orderId=
func (h *PaymentHandler) Failed(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r, reconcile.Callback{OrderID: r.URL.Query().Get("orderId"), Failed: true})
}

func (h *PaymentHandler) reconcile(w http.ResponseWriter, r *http.Request, cb reconcile.Callback) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := sessionFromContext(ctx).Reconcile(ctx, cb)
	if err != nil {
		handleError(w, err)
		return
	}
	status := http.StatusOK
	if res.Status == reconcile.StatusUnknown {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, res)
}
