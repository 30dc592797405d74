package pricing

import (
	"github.com/fjod/foodcart/internal/domain"
	"github.com/shopspring/decimal"
)

// Policy holds the pricing constants applied to every cart.
type Policy struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
	Currency    string
}

// DefaultPolicy is a 2.99 flat delivery fee and 5% tax.
func DefaultPolicy() Policy {
	return Policy{
		DeliveryFee: decimal.RequireFromString("2.99"),
		TaxRate:     decimal.RequireFromString("0.05"),
		Currency:    "USD",
	}
}

// Breakdown is derived from a cart on every read and never stored.
type Breakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Tax         decimal.Decimal `json:"tax"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	Currency    string          `json:"currency,omitempty"`
}

// ComputeBreakdown is pure: the same cart and policy always give the same result.
func (p Policy) ComputeBreakdown(c domain.Cart) Breakdown {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.Subtotal())
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)

	return Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: p.DeliveryFee,
		Tax:         tax,
		GrandTotal:  subtotal.Add(p.DeliveryFee).Add(tax),
		Currency:    p.Currency,
	}
}
