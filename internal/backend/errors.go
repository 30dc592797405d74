package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable covers transport failures, 5xx answers and an open breaker.
	// The outcome of the call is unknown.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrInvalidResponse is a 2xx answer that is not JSON or misses required fields.
	ErrInvalidResponse = errors.New("invalid backend response")
)

// APIError is a 4xx answer, or a 2xx answer carrying an error body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// IsRejection reports whether err is an explicit verdict from the backend:
// an error body on a 2xx answer, or a declined request (400, 402, 409).
// Auth failures, missing resources and throttling are not verdicts.
func IsRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch {
	case apiErr.Status >= 200 && apiErr.Status < 300:
		return true
	case apiErr.Status == http.StatusBadRequest,
		apiErr.Status == http.StatusPaymentRequired,
		apiErr.Status == http.StatusConflict:
		return true
	}
	return false
}

// IsAuthError reports whether the backend refused the caller's credentials.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}
