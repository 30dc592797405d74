package storefront_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/fjod/foodcart/internal/auth"
	"github.com/fjod/foodcart/internal/backend"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/order"
	"github.com/fjod/foodcart/internal/payment"
	"github.com/fjod/foodcart/internal/pricing"
	"github.com/fjod/foodcart/internal/reconcile"
	"github.com/fjod/foodcart/internal/storage"
	"github.com/fjod/foodcart/internal/storefront"
	"github.com/fjod/foodcart/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
)

// fakeBackend plays the REST order and payment backend.
type fakeBackend struct {
	mu           sync.Mutex
	orders       int
	ordersDown   bool
	providerDown bool
	verifyMode   string // paid, declined, down
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	var body struct {
		OrderID string `json:"orderId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Path {
	case "/api/orders":
		if b.ordersDown {
			reply(http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
			return
		}
		b.orders++
		reply(http.StatusCreated, map[string]any{"_id": fmt.Sprintf("o-%d", b.orders), "status": "pending"})
	case "/api/payment/stripe/create-session":
		if b.providerDown {
			reply(http.StatusBadGateway, map[string]string{"message": "provider unavailable"})
			return
		}
		reply(http.StatusOK, map[string]string{"url": "https://pay.example/cs_" + body.OrderID, "sessionId": "cs_" + body.OrderID})
	case "/api/payment/initiate":
		if b.providerDown {
			reply(http.StatusBadGateway, map[string]string{"message": "provider unavailable"})
			return
		}
		reply(http.StatusOK, map[string]string{"redirectUrl": "https://gw.example/pay/" + body.OrderID})
	case "/api/payment/stripe/verify", "/api/payment/verify":
		switch b.verifyMode {
		case "declined":
			reply(http.StatusBadRequest, map[string]string{"message": "payment declined"})
		case "down":
			reply(http.StatusServiceUnavailable, map[string]string{"message": "try later"})
		default:
			reply(http.StatusOK, map[string]any{"success": true, "order": map[string]any{"_id": body.OrderID, "status": "processing"}})
		}
	default:
		http.NotFound(w, r)
	}
}

type checkoutTestContext struct {
	backend  *fakeBackend
	server   *httptest.Server
	pending  *payment.SessionStore
	session  *storefront.Session
	ctx      context.Context
	result   *order.Result
	err      error
	outcome  *reconcile.Result
	lastFlow error
}

func (c *checkoutTestContext) reset() error {
	c.backend = &fakeBackend{verifyMode: "paid"}
	c.server = httptest.NewServer(c.backend)

	client, err := backend.NewClient(c.server.URL+"/api", "http://shop.test", 2*time.Second,
		circuitbreaker.New(circuitbreaker.Settings{Name: "backend", MaxFailures: 100, OpenTimeout: time.Minute}))
	if err != nil {
		return err
	}

	store := storage.NewMemoryStore()
	c.pending = payment.NewSessionStore(store)
	registry := storefront.NewRegistry(storefront.Deps{
		Storage:     store,
		Orders:      client,
		History:     client,
		Gateways:    payment.NewRegistry(payment.Cash{}, payment.NewHostedCard(client), payment.NewRedirectGateway(client)),
		Pending:     c.pending,
		Policy:      pricing.DefaultPolicy(),
		ClearPolicy: order.ClearOnSessionCreated,
	})

	c.ctx = context.Background()
	c.session, err = registry.Session(c.ctx, storefront.NewSessionID())
	c.result, c.err, c.outcome, c.lastFlow = nil, nil, nil, nil
	return err
}

func (c *checkoutTestContext) aLoggedInCustomer(name string) error {
	c.ctx = auth.WithToken(c.ctx, "token-"+strings.ReplaceAll(name, " ", "-"))
	return c.session.Login(c.ctx, &domain.Profile{FullName: name, Email: "ann@example.com", Phone: "555-0100"}, nil)
}

func (c *checkoutTestContext) theCustomerHasNoSessionToken() error {
	c.ctx = context.Background()
	return nil
}

func (c *checkoutTestContext) theCartContains(qty int, name, price string) error {
	item := domain.CartLineItem{
		ItemID:    strings.ToLower(name),
		Name:      name,
		UnitPrice: decimal.RequireFromString(price),
	}
	if err := c.session.Cart.AddItem(c.ctx, item); err != nil {
		return err
	}
	return c.session.Cart.SetQuantity(c.ctx, item.ItemID, qty)
}

func (c *checkoutTestContext) theGrandTotalIs(total string) error {
	got := c.session.CartView().Breakdown.GrandTotal.StringFixed(2)
	if got != total {
		return fmt.Errorf("expected grand total %s, got %s", total, got)
	}
	return nil
}

func (c *checkoutTestContext) enterDelivery(d domain.DeliveryInfo) error {
	if err := c.session.Flow.SetDeliveryInfo(d); err != nil {
		return err
	}
	c.lastFlow = c.session.Flow.ContinueToPayment()
	return nil
}

func (c *checkoutTestContext) aCompleteDeliveryAddress() error {
	d := c.session.Flow.View().Delivery
	d.Street, d.City, d.State, d.ZipCode = "1 Main St", "Springfield", "IL", "62701"
	if err := c.enterDelivery(d); err != nil {
		return err
	}
	return c.lastFlow
}

func (c *checkoutTestContext) aDeliveryAddressWithoutPhone() error {
	d := domain.DeliveryInfo{Name: "Ann Smith", Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"}
	return c.enterDelivery(d)
}

func (c *checkoutTestContext) confirmPayingWith(method string) error {
	if err := c.session.Flow.SelectPaymentMethod(domain.PaymentMethod(method)); err != nil {
		return err
	}
	if err := c.session.Flow.ContinueToReview(); err != nil {
		return err
	}
	return c.confirmAgain()
}

func (c *checkoutTestContext) confirmAgain() error {
	c.result, c.err = c.session.Flow.Confirm(c.ctx)
	return nil
}

func (c *checkoutTestContext) theCheckoutStepIs(step string) error {
	if got := c.session.Flow.Step(); string(got) != step {
		return fmt.Errorf("expected step %s, got %s (last error: %v)", step, got, c.err)
	}
	return nil
}

func (c *checkoutTestContext) theCheckoutFailsWith(kind string) error {
	if got := domain.KindOf(c.err); string(got) != kind {
		return fmt.Errorf("expected %s, got %q (%v)", kind, got, c.err)
	}
	return nil
}

func (c *checkoutTestContext) theFieldIsReportedMissing(field string) error {
	var ce *domain.CheckoutError
	if !errors.As(c.lastFlow, &ce) {
		return fmt.Errorf("expected validation error, got %v", c.lastFlow)
	}
	if _, ok := ce.Fields[field]; !ok {
		return fmt.Errorf("field %s not reported: %v", field, ce.Fields)
	}
	return nil
}

func (c *checkoutTestContext) theCartIsEmpty() error {
	return c.theCartHasLines(0)
}

func (c *checkoutTestContext) theCartHasLines(n int) error {
	if got := len(c.session.Cart.Snapshot().Items); got != n {
		return fmt.Errorf("expected %d cart lines, got %d", n, got)
	}
	return nil
}

func (c *checkoutTestContext) theBackendReceivedOrders(n int) error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	if c.backend.orders != n {
		return fmt.Errorf("expected %d orders, backend has %d", n, c.backend.orders)
	}
	return nil
}

func (c *checkoutTestContext) setBackend(fn func(b *fakeBackend)) func() error {
	return func() error {
		c.backend.mu.Lock()
		defer c.backend.mu.Unlock()
		fn(c.backend)
		return nil
	}
}

func (c *checkoutTestContext) sentWithTransport(t domain.Transport) func() error {
	return func() error {
		if c.err != nil {
			return c.err
		}
		if c.result == nil || c.result.Session == nil {
			return errors.New("no payment session")
		}
		if c.result.Session.Transport != t {
			return fmt.Errorf("expected transport %s, got %s", t, c.result.Session.Transport)
		}
		return nil
	}
}

func (c *checkoutTestContext) theCustomerReturns() error {
	if c.result == nil || c.result.Session == nil {
		return errors.New("no payment session to return from")
	}
	var err error
	c.outcome, err = c.session.Reconcile(c.ctx, reconcile.Callback{
		OrderID:   c.result.Session.OrderID,
		SessionID: c.result.Session.SessionID,
	})
	return err
}

func (c *checkoutTestContext) theReconciliationStatusIs(status string) error {
	if c.outcome == nil || string(c.outcome.Status) != status {
		return fmt.Errorf("expected reconciliation %s, got %+v", status, c.outcome)
	}
	return nil
}

func (c *checkoutTestContext) pendingPaymentRemains(want bool) func() error {
	return func() error {
		_, err := c.pending.Load(c.ctx, c.result.Session.OrderID)
		switch {
		case want && err != nil:
			return fmt.Errorf("expected pending payment record: %w", err)
		case !want && !errors.Is(err, payment.ErrNoPendingPayment):
			return fmt.Errorf("expected no pending payment record, got %v", err)
		}
		return nil
	}
}

func (c *checkoutTestContext) thePaymentSessionIsForOrder(orderID string) error {
	if c.err != nil {
		return c.err
	}
	if c.result == nil || c.result.Session == nil {
		return errors.New("no payment session")
	}
	if c.result.Session.OrderID != orderID {
		return fmt.Errorf("expected session for order %s, got %s", orderID, c.result.Session.OrderID)
	}
	return nil
}

func (c *checkoutTestContext) theCustomerRetriesThePayment() error {
	return c.session.RetryPayment(c.ctx, c.result.Session.OrderID)
}

func (c *checkoutTestContext) theDeliveryNameIs(name string) error {
	if got := c.session.Flow.View().Delivery.Name; got != name {
		return fmt.Errorf("expected delivery name %q, got %q", name, got)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.server.Close()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a logged-in customer "([^"]*)"$`, tc.aLoggedInCustomer)
	ctx.Step(`^the customer has no session token$`, tc.theCustomerHasNoSessionToken)
	ctx.Step(`^the cart contains (\d+) x "([^"]*)" at ([0-9.]+)$`, tc.theCartContains)
	ctx.Step(`^the order service is down$`, tc.setBackend(func(b *fakeBackend) { b.ordersDown = true }))
	ctx.Step(`^the payment provider is down$`, tc.setBackend(func(b *fakeBackend) { b.providerDown = true }))
	ctx.Step(`^the payment provider recovers$`, tc.setBackend(func(b *fakeBackend) { b.providerDown = false }))
	ctx.Step(`^the verification endpoint is unreachable$`, tc.setBackend(func(b *fakeBackend) { b.verifyMode = "down" }))
	ctx.Step(`^the payment will be declined$`, tc.setBackend(func(b *fakeBackend) { b.verifyMode = "declined" }))
	ctx.Step(`^the payment will be accepted$`, tc.setBackend(func(b *fakeBackend) { b.verifyMode = "paid" }))

	// When steps
	ctx.Step(`^the customer enters a complete delivery address$`, tc.aCompleteDeliveryAddress)
	ctx.Step(`^the customer enters a delivery address without a phone number$`, tc.aDeliveryAddressWithoutPhone)
	ctx.Step(`^the customer confirms the order paying with "([^"]*)"$`, tc.confirmPayingWith)
	ctx.Step(`^the customer confirms again$`, tc.confirmAgain)
	ctx.Step(`^the customer returns from the payment page$`, tc.theCustomerReturns)
	ctx.Step(`^the customer retries the payment$`, tc.theCustomerRetriesThePayment)

	// Then steps
	ctx.Step(`^the grand total is "([^"]*)"$`, tc.theGrandTotalIs)
	ctx.Step(`^the checkout step is "([^"]*)"$`, tc.theCheckoutStepIs)
	ctx.Step(`^the checkout fails with "([^"]*)"$`, tc.theCheckoutFailsWith)
	ctx.Step(`^the field "([^"]*)" is reported missing$`, tc.theFieldIsReportedMissing)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^the cart has (\d+) lines$`, tc.theCartHasLines)
	ctx.Step(`^the backend received (\d+) orders?$`, tc.theBackendReceivedOrders)
	ctx.Step(`^the customer is sent to the payment page in the same window$`, tc.sentWithTransport(domain.TransportFullPage))
	ctx.Step(`^the customer is sent to the payment page in a new window$`, tc.sentWithTransport(domain.TransportNewWindow))
	ctx.Step(`^the reconciliation status is "([^"]*)"$`, tc.theReconciliationStatusIs)
	ctx.Step(`^a pending payment remains$`, tc.pendingPaymentRemains(true))
	ctx.Step(`^no pending payment remains$`, tc.pendingPaymentRemains(false))
	ctx.Step(`^the delivery name is "([^"]*)"$`, tc.theDeliveryNameIs)
	ctx.Step(`^the payment session is for order "([^"]*)"$`, tc.thePaymentSessionIsForOrder)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
