package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/foodcart/internal/auth"
	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/events"
	"github.com/fjod/foodcart/internal/payment"
	"github.com/fjod/foodcart/internal/pricing"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ClearPolicy decides when a gateway checkout empties the cart.
type ClearPolicy string

const (
	ClearOnSessionCreated  ClearPolicy = "on_session_created"
	ClearOnPaymentVerified ClearPolicy = "on_payment_verified"
)

// ClearTimeout bounds the local writes that follow a created order or a
// verified payment. They ignore cancellation of the caller's context.
const ClearTimeout = 5 * time.Second

type OrderCreator interface {
	CreateOrder(ctx context.Context, req backend.OrderRequest) (*domain.Order, error)
}

type GatewayResolver interface {
	For(method domain.PaymentMethod) (payment.Gateway, error)
}

type PendingPayments interface {
	Save(ctx context.Context, p domain.PendingPayment) error
}

type CartClearer interface {
	Clear(ctx context.Context) error
}

// PendingOrder is an order created by an earlier attempt whose payment
// session could not be opened or whose payment was rejected.
type PendingOrder struct {
	ID    string
	Total decimal.Decimal
	Items []domain.CartLineItem
}

type Request struct {
	Cart      domain.Cart
	Delivery  domain.DeliveryInfo
	Method    domain.PaymentMethod
	AttemptID string
	Pending   *PendingOrder
}

type Result struct {
	Order     *domain.Order
	Session   *domain.PaymentSession
	Breakdown pricing.Breakdown
}

type Coordinator struct {
	owner       string
	orders      OrderCreator
	gateways    GatewayResolver
	pending     PendingPayments
	cart        CartClearer
	publisher   events.Publisher
	policy      pricing.Policy
	clearPolicy ClearPolicy
}

type Deps struct {
	// Owner is the session id recorded on pending payment records.
	Owner       string
	Orders      OrderCreator
	Gateways    GatewayResolver
	Pending     PendingPayments
	Cart        CartClearer
	Publisher   events.Publisher
	Policy      pricing.Policy
	ClearPolicy ClearPolicy
}

func NewCoordinator(d Deps) *Coordinator {
	pub := d.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	clearPolicy := d.ClearPolicy
	if clearPolicy == "" {
		clearPolicy = ClearOnSessionCreated
	}
	return &Coordinator{
		owner:       d.Owner,
		orders:      d.Orders,
		gateways:    d.Gateways,
		pending:     d.Pending,
		cart:        d.Cart,
		publisher:   pub,
		policy:      d.Policy,
		clearPolicy: clearPolicy,
	}
}

func (c *Coordinator) ClearPolicy() ClearPolicy {
	return c.clearPolicy
}

// Submit turns a cart snapshot into an order. The order is created at most
// once per call. The cart is cleared only after the order exists.
//
// When the order was created but no payment session could be opened the
// error is PaymentInitiationFailed and the returned Result still carries the
// order, so a retry can reuse it. A gateway retry of a pending order opens a
// new session for that order from its recorded line items, even when the
// live cart was already cleared.
func (c *Coordinator) Submit(ctx context.Context, req Request) (*Result, error) {
	resume := c.resumable(req)
	if err := validate(req, resume == nil); err != nil {
		return nil, err
	}
	if _, ok := auth.TokenFromContext(ctx); !ok {
		return nil, domain.NewCheckoutError(domain.KindAuthenticationRequired,
			"you must be logged in to place an order", nil)
	}

	items := req.Cart.Clone().Items
	if resume != nil && len(resume.Items) > 0 {
		items = resume.Items
	}
	breakdown := c.policy.ComputeBreakdown(domain.Cart{Items: items})
	logger := log.With().Str("attempt_id", req.AttemptID).Str("method", req.Method.String()).Logger()

	var order *domain.Order
	amount := breakdown.GrandTotal
	if resume != nil {
		logger.Info().Str("order_id", resume.ID).Msg("reusing pending order for payment retry")
		order = &domain.Order{
			ID:            resume.ID,
			Items:         items,
			Total:         resume.Total,
			PaymentMethod: req.Method,
			Status:        domain.OrderStatusPending,
		}
		amount = resume.Total
	} else {
		created, err := c.createOrder(ctx, req, items, breakdown)
		if err != nil {
			logger.Error().Err(err).Msg("order creation failed")
			return nil, domain.NewCheckoutError(domain.KindOrderCreationFailed, "failed to create order", err)
		}
		order = created
	}
	result := &Result{Order: order, Breakdown: breakdown}

	if !req.Method.RequiresGateway() {
		c.clearCart(ctx, order.ID)
		logger.Info().Str("order_id", order.ID).Msg("cash order placed")
		return result, nil
	}

	gw, err := c.gateways.For(req.Method)
	if err != nil {
		logger.Error().Err(err).Str("order_id", order.ID).Msg("no gateway for method")
		return result, domain.NewCheckoutError(domain.KindPaymentInitiationFailed,
			"payment method is not available", err)
	}

	session, err := gw.CreateSession(ctx, payment.SessionRequest{
		OrderID:  order.ID,
		Amount:   amount,
		Customer: req.Delivery,
	})
	if err != nil {
		logger.Error().Err(err).Str("order_id", order.ID).Msg("payment session creation failed")
		return result, domain.NewCheckoutError(domain.KindPaymentInitiationFailed,
			fmt.Sprintf("order %s was created but payment could not be started", order.ID), err)
	}
	result.Session = session

	record := domain.PendingPayment{
		Session:   *session,
		Owner:     c.owner,
		Method:    req.Method,
		Delivery:  req.Delivery,
		Items:     items,
		Total:     amount,
		AttemptID: req.AttemptID,
		CreatedAt: time.Now().UTC(),
	}
	sctx, cancel := detached(ctx)
	errSave := c.pending.Save(sctx, record)
	cancel()
	if errSave != nil {
		logger.Error().Err(errSave).Str("order_id", order.ID).Msg("failed to save pending payment record")
	}

	if c.clearPolicy == ClearOnSessionCreated {
		c.clearCart(ctx, order.ID)
	}

	c.publish(ctx, events.PaymentSessionCreated, order.ID, req, amount)
	logger.Info().Str("order_id", order.ID).Str("transport", string(session.Transport)).Msg("payment session created")
	return result, nil
}

// resumable returns the pending order a gateway retry continues. An empty
// cart means it was cleared when that order's session was created; a cart
// with the same total would create the same order again.
func (c *Coordinator) resumable(req Request) *PendingOrder {
	p := req.Pending
	if p == nil || p.ID == "" || !req.Method.RequiresGateway() {
		return nil
	}
	if req.Cart.IsEmpty() {
		return p
	}
	if c.policy.ComputeBreakdown(req.Cart).GrandTotal.Equal(p.Total) {
		return p
	}
	return nil
}

func (c *Coordinator) createOrder(ctx context.Context, req Request, items []domain.CartLineItem, b pricing.Breakdown) (*domain.Order, error) {
	octx := ctx
	if req.AttemptID != "" {
		octx = backend.WithIdempotencyKey(ctx, req.AttemptID)
	}
	order, err := c.orders.CreateOrder(octx, backend.OrderRequest{
		Items:    items,
		Total:    b.GrandTotal,
		Method:   req.Method,
		Delivery: req.Delivery,
	})
	if err != nil {
		return nil, err
	}
	if order == nil || order.ID == "" {
		return nil, errors.New("order was created but no order id was returned")
	}

	c.publish(ctx, events.OrderCreated, order.ID, req, b.GrandTotal)
	return order, nil
}

// detached keeps ctx values such as the auth token but not its deadline or
// cancellation.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ClearTimeout)
}

func (c *Coordinator) clearCart(ctx context.Context, orderID string) {
	cctx, cancel := detached(ctx)
	defer cancel()
	if err := c.cart.Clear(cctx); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("failed to clear cart after order")
	}
}

func (c *Coordinator) publish(ctx context.Context, t events.EventType, orderID string, req Request, total decimal.Decimal) {
	e := events.NewEvent(t, orderID)
	e.AttemptID = req.AttemptID
	e.Method = req.Method
	e.Total = total
	if err := c.publisher.Publish(ctx, e); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msgf("failed to publish %s", t)
	}
}

// validate checks the request before any network call. withCart is false
// when a pending order is resumed and the live cart plays no part.
func validate(req Request, withCart bool) error {
	if withCart && req.Cart.IsEmpty() {
		return domain.NewValidationError("cart is empty", map[string]string{"items": "cart is empty"})
	}

	fields := map[string]string{}
	if withCart {
		for i, item := range req.Cart.Items {
			prefix := fmt.Sprintf("items[%d]", i)
			if item.ItemID == "" {
				fields[prefix+".itemId"] = "item id is missing"
			}
			if item.Name == "" {
				fields[prefix+".name"] = "item name is missing"
			}
			if item.UnitPrice.IsNegative() {
				fields[prefix+".price"] = "price must not be negative"
			}
			if item.Quantity <= 0 {
				fields[prefix+".quantity"] = "quantity must be at least 1"
			}
		}
	}
	for field, msg := range req.Delivery.Validate() {
		fields[field] = msg
	}
	if _, err := domain.ParsePaymentMethod(string(req.Method)); err != nil {
		fields["paymentMethod"] = err.Error()
	}

	if len(fields) > 0 {
		return domain.NewValidationError("checkout data is invalid", fields)
	}
	return nil
}
