package payment

import (
	"fmt"

	"github.com/fjod/foodcart/internal/domain"
)

// Registry dispatches a payment method to its gateway.
type Registry struct {
	gateways map[domain.PaymentMethod]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[domain.PaymentMethod]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Method()] = g
	}
	return r
}

func (r *Registry) For(method domain.PaymentMethod) (Gateway, error) {
	g, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGateway, method)
	}
	return g, nil
}
