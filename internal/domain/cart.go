package domain

import "github.com/shopspring/decimal"

// CartLineItem is one menu item in the cart. Quantity is always >= 1 once stored.
type CartLineItem struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"image,omitempty"`
}

// Subtotal is UnitPrice x Quantity.
func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered, itemId-unique collection of line items.
type Cart struct {
	Items []CartLineItem `json:"items"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the line for itemID and its index, or -1.
func (c Cart) Find(itemID string) (CartLineItem, int) {
	for i, item := range c.Items {
		if item.ItemID == itemID {
			return item, i
		}
	}
	return CartLineItem{}, -1
}

// Clone returns a deep copy so callers never share the backing array.
func (c Cart) Clone() Cart {
	items := make([]CartLineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

// TotalQuantity is the number of units across all lines.
func (c Cart) TotalQuantity() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}
