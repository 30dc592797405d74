package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ParseOrderStatus is lenient about case; anything unknown is reported as pending.
func ParseOrderStatus(s string) OrderStatus {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(s))) {
	case OrderStatusProcessing:
		return OrderStatusProcessing
	case OrderStatusCompleted:
		return OrderStatusCompleted
	case OrderStatusCancelled:
		return OrderStatusCancelled
	default:
		return OrderStatusPending
	}
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

// Order is the client view of a server-owned order.
type Order struct {
	ID                  string          `json:"id"`
	Items               []CartLineItem  `json:"items"`
	Total               decimal.Decimal `json:"total"`
	PaymentMethod       PaymentMethod   `json:"paymentMethod"`
	DeliveryAddress     Address         `json:"deliveryAddress"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
	Status              OrderStatus     `json:"status"`
	CreatedAt           time.Time       `json:"createdAt"`
}
