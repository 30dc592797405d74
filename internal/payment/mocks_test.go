package payment

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/foodcart/internal/backend"
)

type MockHostedCardBackend struct {
	Session     *backend.HostedCardSession
	SessionErr  error
	Result      *backend.Verification
	VerifyErr   error
	VerifyDelay time.Duration
	VerifyCalls atomic.Int32

	mu      sync.Mutex
	LastReq backend.PaymentRequest
}

func (m *MockHostedCardBackend) CreateHostedCardSession(_ context.Context, req backend.PaymentRequest) (*backend.HostedCardSession, error) {
	m.mu.Lock()
	m.LastReq = req
	m.mu.Unlock()
	if m.SessionErr != nil {
		return nil, m.SessionErr
	}
	return m.Session, nil
}

func (m *MockHostedCardBackend) VerifyHostedCard(_ context.Context, _, _ string) (*backend.Verification, error) {
	m.VerifyCalls.Add(1)
	if m.VerifyDelay > 0 {
		time.Sleep(m.VerifyDelay)
	}
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	return m.Result, nil
}

type MockRedirectBackend struct {
	RedirectURL string
	InitErr     error
	Result      *backend.Verification
	VerifyErr   error
	LastOrderID string
}

func (m *MockRedirectBackend) InitiateRedirect(_ context.Context, _ backend.PaymentRequest) (string, error) {
	return m.RedirectURL, m.InitErr
}

func (m *MockRedirectBackend) VerifyRedirect(_ context.Context, orderID string) (*backend.Verification, error) {
	m.LastOrderID = orderID
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	return m.Result, nil
}
