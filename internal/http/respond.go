package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/cart"
	"github.com/fjod/foodcart/internal/checkout"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/payment"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Action  domain.Action     `json:"action,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:              http.StatusUnprocessableEntity,
	domain.KindAuthenticationRequired:  http.StatusUnauthorized,
	domain.KindOrderCreationFailed:     http.StatusBadGateway,
	domain.KindPaymentInitiationFailed: http.StatusBadGateway,
	domain.KindVerificationUnknown:     http.StatusServiceUnavailable,
}

// handleError converts a domain or backend error into a status code and
// an ErrorResponse.
func handleError(w http.ResponseWriter, err error) {
	var ce *domain.CheckoutError
	if errors.As(err, &ce) {
		resp := ErrorResponse{
			Error:  ce.Message,
			Code:   string(ce.Kind),
			Action: ce.Action(),
			Fields: ce.Fields,
		}
		if ce.Err != nil {
			resp.Details = ce.Err.Error()
		}
		respondJSON(w, kindStatus[ce.Kind], resp)
		return
	}

	var apiErr *backend.APIError
	switch {
	case errors.Is(err, checkout.ErrIllegalTransition), errors.Is(err, checkout.ErrSubmissionInProgress):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, cart.ErrInvalidItem):
		respondError(w, http.StatusUnprocessableEntity, "invalid_item", err.Error())
	case errors.Is(err, payment.ErrNoPendingPayment):
		respondError(w, http.StatusNotFound, "no_pending_payment", err.Error())
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		respondError(w, status, "backend_rejected", apiErr.Message)
	case errors.Is(err, backend.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "backend_unavailable", "order service is unavailable")
	case errors.Is(err, backend.ErrInvalidResponse):
		respondError(w, http.StatusBadGateway, "invalid_backend_response", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled error")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}
