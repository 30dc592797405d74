package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash            PaymentMethod = "cash"
	PaymentMethodHostedCard      PaymentMethod = "hostedCard"
	PaymentMethodRedirectGateway PaymentMethod = "redirectGateway"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodCash, PaymentMethodHostedCard, PaymentMethodRedirectGateway:
		return PaymentMethod(s), nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// RequiresGateway reports whether the method completes payment outside the app.
func (m PaymentMethod) RequiresGateway() bool {
	return m == PaymentMethodHostedCard || m == PaymentMethodRedirectGateway
}

func (m PaymentMethod) String() string {
	return string(m)
}

// Transport tells the caller how to hand control to the gateway.
type Transport string

const (
	// TransportFullPage replaces the current page with the gateway page.
	TransportFullPage Transport = "full_page"
	// TransportNewWindow opens the gateway page while the app stays resident.
	TransportNewWindow Transport = "new_window"
)

// PaymentSession exists between order creation and payment verification.
type PaymentSession struct {
	OrderID     string    `json:"orderId"`
	RedirectURL string    `json:"redirectUrl"`
	SessionID   string    `json:"sessionId,omitempty"`
	Transport   Transport `json:"transport"`
}

// PaymentReference is the gateway specific correlation value used by verify.
type PaymentReference struct {
	OrderID   string `json:"orderId"`
	SessionID string `json:"sessionId,omitempty"`
}

// PendingPayment is the durable record that lets a later application load
// resume a checkout whose payment happens outside the app. Owner is the
// session that created it; Items are the order's line items.
type PendingPayment struct {
	Session   PaymentSession  `json:"session"`
	Owner     string          `json:"owner"`
	Method    PaymentMethod   `json:"method"`
	Delivery  DeliveryInfo    `json:"delivery"`
	Items     []CartLineItem  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	AttemptID string          `json:"attemptId"`
	CreatedAt time.Time       `json:"createdAt"`
}
