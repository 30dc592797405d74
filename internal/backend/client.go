package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/foodcart/internal/auth"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/pkg/circuitbreaker"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseSize = 1 << 20 // 1MB

type idempotencyKey struct{}

// WithIdempotencyKey marks requests made with ctx so the backend can drop duplicates.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}

// Client talks to the REST order/payment backend. Calls are never retried;
// every call goes through one circuit breaker.
type Client struct {
	baseURL       *url.URL
	publicBaseURL string
	http          *http.Client
	breaker       *circuitbreaker.Breaker
}

func NewClient(baseURL, publicBaseURL string, timeout time.Duration, breaker *circuitbreaker.Breaker) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	return &Client{
		baseURL:       u,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
	}, nil
}

// OrderRequest is the order payload built from a cart snapshot.
type OrderRequest struct {
	Items    []domain.CartLineItem
	Total    decimal.Decimal
	Method   domain.PaymentMethod
	Delivery domain.DeliveryInfo
}

// PaymentRequest starts a gateway session for an existing order.
type PaymentRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Customer domain.DeliveryInfo
}

type HostedCardSession struct {
	URL       string
	SessionID string
}

// Verification is the backend verdict on a payment.
type Verification struct {
	Success bool
	Order   *domain.Order
	Message string
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*domain.Order, error) {
	items := make([]orderItemDTO, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orderItemDTO{
			MenuItem: menuItemRef(item.ItemID),
			Name:     item.Name,
			Price:    item.UnitPrice.InexactFloat64(),
			Quantity: item.Quantity,
			Image:    item.ImageRef,
		})
	}
	body := createOrderRequest{
		Items:         items,
		Total:         req.Total.InexactFloat64(),
		PaymentMethod: WireMethod(req.Method),
		DeliveryAddress: addressDTO{
			Street:  req.Delivery.Street,
			City:    req.Delivery.City,
			State:   req.Delivery.State,
			ZipCode: req.Delivery.ZipCode,
		},
		SpecialInstructions: req.Delivery.SpecialInstructions,
	}

	var resp orderDTO
	if err := c.do(ctx, http.MethodPost, []string{"orders"}, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	order := resp.toDomain()
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order created without an id", ErrInvalidResponse)
	}
	return order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var resp orderDTO
	if err := c.do(ctx, http.MethodGet, []string{"orders", orderID}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

func (c *Client) ListMyOrders(ctx context.Context) ([]domain.Order, error) {
	var resp []orderDTO
	if err := c.do(ctx, http.MethodGet, []string{"orders", "my-orders"}, nil, &resp); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(resp))
	for i := range resp {
		orders = append(orders, *resp[i].toDomain())
	}
	return orders, nil
}

// CancelOrder asks the backend to cancel a pending order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var resp struct {
		orderDTO
		Order *orderDTO `json:"order"`
	}
	if err := c.do(ctx, http.MethodPut, []string{"orders", orderID, "cancel"}, nil, &resp); err != nil {
		return nil, err
	}
	switch {
	case resp.Order != nil:
		return resp.Order.toDomain(), nil
	case resp.ID != "" || resp.AltID != "":
		return resp.orderDTO.toDomain(), nil
	}
	return &domain.Order{ID: orderID, Status: domain.OrderStatusCancelled}, nil
}

func (c *Client) CreateHostedCardSession(ctx context.Context, req PaymentRequest) (*HostedCardSession, error) {
	body := c.paymentBody(req)
	// the card provider substitutes its own session id into the success url
	body.SuccessURL += "&session_id={CHECKOUT_SESSION_ID}"

	var resp hostedCardSessionResponse
	if err := c.do(ctx, http.MethodPost, []string{"payment", "stripe", "create-session"}, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("%w: checkout url missing", ErrInvalidResponse)
	}
	return &HostedCardSession{URL: resp.URL, SessionID: resp.SessionID}, nil
}

func (c *Client) VerifyHostedCard(ctx context.Context, sessionID, orderID string) (*Verification, error) {
	return c.verify(ctx, []string{"payment", "stripe", "verify"}, verifyRequest{SessionID: sessionID, OrderID: orderID})
}

// InitiateRedirect starts a redirect-gateway payment and returns the gateway url.
func (c *Client) InitiateRedirect(ctx context.Context, req PaymentRequest) (string, error) {
	var resp redirectSessionResponse
	if err := c.do(ctx, http.MethodPost, []string{"payment", "initiate"}, c.paymentBody(req), &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	if resp.RedirectURL == "" {
		return "", fmt.Errorf("%w: redirect url missing", ErrInvalidResponse)
	}
	return resp.RedirectURL, nil
}

func (c *Client) VerifyRedirect(ctx context.Context, orderID string) (*Verification, error) {
	return c.verify(ctx, []string{"payment", "verify"}, verifyRequest{OrderID: orderID})
}

func (c *Client) verify(ctx context.Context, path []string, body verifyRequest) (*Verification, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	v := &Verification{Success: resp.Success, Message: resp.Message}
	if resp.Order != nil {
		v.Order = resp.Order.toDomain()
	}
	if v.Success && v.Order == nil {
		return nil, fmt.Errorf("%w: verified payment without order", ErrInvalidResponse)
	}
	return v, nil
}

func (c *Client) paymentBody(req PaymentRequest) paymentInitRequest {
	q := url.Values{"orderId": {req.OrderID}}.Encode()
	return paymentInitRequest{
		OrderID:      req.OrderID,
		Amount:       req.Amount.InexactFloat64(),
		CustomerInfo: customerFromDelivery(req.Customer),
		SuccessURL:   c.publicBaseURL + "/payment/success?" + q,
		CancelURL:    c.publicBaseURL + "/payment/failed?" + q,
	}
}

// do sends one JSON request. Transport failures and 5xx answers count against
// the breaker and surface as ErrUnavailable; 4xx answers become *APIError.
func (c *Client) do(ctx context.Context, method string, path []string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := c.baseURL.JoinPath(path...)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key := IdempotencyKeyFromContext(ctx); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	var (
		status      int
		contentType string
		payload     []byte
	)
	err = c.breaker.Execute(func() error {
		resp, errDo := c.http.Do(req)
		if errDo != nil {
			return errDo
		}
		defer resp.Body.Close()

		payload, errDo = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if errDo != nil {
			return errDo
		}
		status = resp.StatusCode
		contentType = resp.Header.Get("Content-Type")
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("status %d", status)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("url", endpoint.Path).Msg("backend call failed")
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, endpoint.Path, err)
	}

	if status >= http.StatusBadRequest {
		return &APIError{Status: status, Message: errorMessage(status, payload)}
	}
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("%w: expected JSON, got %q", ErrInvalidResponse, contentType)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func errorMessage(status int, payload []byte) string {
	var eb errorBody
	if err := json.Unmarshal(payload, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return http.StatusText(status)
}
