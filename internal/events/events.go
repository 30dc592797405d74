package events

import (
	"context"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	OrderCreated          EventType = "order.created"
	PaymentSessionCreated EventType = "payment.session_created"
	PaymentVerified       EventType = "payment.verified"
	PaymentRejected       EventType = "payment.rejected"
	OrderCancelled        EventType = "order.cancelled"
)

// Event is a checkout lifecycle fact, keyed by order id.
type Event struct {
	Type       EventType            `json:"type"`
	OrderID    string               `json:"orderId"`
	AttemptID  string               `json:"attemptId,omitempty"`
	Method     domain.PaymentMethod `json:"method,omitempty"`
	Total      decimal.Decimal      `json:"total"`
	OccurredAt time.Time            `json:"occurredAt"`
}

func NewEvent(t EventType, orderID string) Event {
	return Event{Type: t, OrderID: orderID, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events after the fact. Callers log failures and move on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
