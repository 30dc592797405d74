package payment

import "errors"

var (
	ErrUnsupported      = errors.New("operation not supported by payment method")
	ErrNoGateway        = errors.New("no gateway for payment method")
	ErrMissingReference = errors.New("payment reference incomplete")
	ErrNoPendingPayment = errors.New("no pending payment for order")
	ErrEmptyRedirectURL = errors.New("gateway returned no redirect url")
)
