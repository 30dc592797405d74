package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation              ErrorKind = "ValidationError"
	KindAuthenticationRequired  ErrorKind = "AuthenticationRequired"
	KindOrderCreationFailed     ErrorKind = "OrderCreationFailed"
	KindPaymentInitiationFailed ErrorKind = "PaymentInitiationFailed"
	KindVerificationUnknown     ErrorKind = "VerificationUnknown"
)

// Action is the one next step offered to the user for an error.
type Action string

const (
	ActionFixFields     Action = "fix_fields"
	ActionLogin         Action = "login"
	ActionRetryCheckout Action = "retry_checkout"
	ActionRetryPayment  Action = "retry_payment"
	ActionCheckAgain    Action = "check_again"
)

var kindActions = map[ErrorKind]Action{
	KindValidation:              ActionFixFields,
	KindAuthenticationRequired:  ActionLogin,
	KindOrderCreationFailed:     ActionRetryCheckout,
	KindPaymentInitiationFailed: ActionRetryPayment,
	KindVerificationUnknown:     ActionCheckAgain,
}

// CheckoutError is the only error type surfaced to the user by checkout.
type CheckoutError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

func (e *CheckoutError) Action() Action {
	return kindActions[e.Kind]
}

func NewCheckoutError(kind ErrorKind, message string, cause error) *CheckoutError {
	return &CheckoutError{Kind: kind, Message: message, Err: cause}
}

func NewValidationError(message string, fields map[string]string) *CheckoutError {
	return &CheckoutError{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the checkout error kind of err, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
