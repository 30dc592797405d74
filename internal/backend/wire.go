package backend

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/shopspring/decimal"
)

var methodWireNames = map[domain.PaymentMethod]string{
	domain.PaymentMethodCash:            "cash",
	domain.PaymentMethodHostedCard:      "stripe",
	domain.PaymentMethodRedirectGateway: "card",
}

// WireMethod is the payment method name the backend understands.
func WireMethod(m domain.PaymentMethod) string {
	if name, ok := methodWireNames[m]; ok {
		return name
	}
	return string(m)
}

func methodFromWire(name string) domain.PaymentMethod {
	switch name {
	case "cash":
		return domain.PaymentMethodCash
	case "stripe":
		return domain.PaymentMethodHostedCard
	case "card", "sslcommerz":
		return domain.PaymentMethodRedirectGateway
	}
	return domain.PaymentMethod(name)
}

type addressDTO struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
}

// menuItemRef accepts either a bare id or a populated menu document.
type menuItemRef string

func (r *menuItemRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var doc struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		*r = menuItemRef(doc.ID)
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*r = menuItemRef(id)
	return nil
}

type orderItemDTO struct {
	MenuItem menuItemRef `json:"menuItem"`
	Name     string      `json:"name"`
	Price    float64     `json:"price"`
	Quantity int         `json:"quantity"`
	Image    string      `json:"image,omitempty"`
}

type createOrderRequest struct {
	Items               []orderItemDTO `json:"items"`
	Total               float64        `json:"total"`
	PaymentMethod       string         `json:"paymentMethod"`
	DeliveryAddress     addressDTO     `json:"deliveryAddress"`
	SpecialInstructions string         `json:"specialInstructions,omitempty"`
}

type orderDTO struct {
	ID                  string         `json:"_id"`
	AltID               string         `json:"id"`
	Items               []orderItemDTO `json:"items"`
	Total               float64        `json:"total"`
	PaymentMethod       string         `json:"paymentMethod"`
	DeliveryAddress     addressDTO     `json:"deliveryAddress"`
	SpecialInstructions string         `json:"specialInstructions"`
	Status              string         `json:"status"`
	CreatedAt           time.Time      `json:"createdAt"`
	Error               string         `json:"error"`
}

func (o *orderDTO) toDomain() *domain.Order {
	id := o.ID
	if id == "" {
		id = o.AltID
	}
	items := make([]domain.CartLineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, domain.CartLineItem{
			ItemID:    string(it.MenuItem),
			Name:      it.Name,
			UnitPrice: decimal.NewFromFloat(it.Price),
			Quantity:  it.Quantity,
			ImageRef:  it.Image,
		})
	}
	return &domain.Order{
		ID:            id,
		Items:         items,
		Total:         decimal.NewFromFloat(o.Total),
		PaymentMethod: methodFromWire(o.PaymentMethod),
		DeliveryAddress: domain.Address{
			Street:  o.DeliveryAddress.Street,
			City:    o.DeliveryAddress.City,
			State:   o.DeliveryAddress.State,
			ZipCode: o.DeliveryAddress.ZipCode,
		},
		SpecialInstructions: o.SpecialInstructions,
		Status:              domain.ParseOrderStatus(o.Status),
		CreatedAt:           o.CreatedAt,
	}
}

type customerInfoDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Phone   string `json:"phone"`
}

func customerFromDelivery(d domain.DeliveryInfo) customerInfoDTO {
	return customerInfoDTO{
		Name:    d.Name,
		Email:   d.Email,
		Address: d.Street,
		City:    d.City,
		State:   d.State,
		ZipCode: d.ZipCode,
		Phone:   d.Phone,
	}
}

type paymentInitRequest struct {
	OrderID      string          `json:"orderId"`
	Amount       float64         `json:"amount"`
	CustomerInfo customerInfoDTO `json:"customerInfo"`
	SuccessURL   string          `json:"successUrl,omitempty"`
	CancelURL    string          `json:"cancelUrl,omitempty"`
}

type hostedCardSessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

type redirectSessionResponse struct {
	RedirectURL string `json:"redirectUrl"`
	Error       string `json:"error"`
}

type verifyRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	OrderID   string `json:"orderId"`
}

type verifyResponse struct {
	Success bool      `json:"success"`
	Order   *orderDTO `json:"order"`
	Message string    `json:"message"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
