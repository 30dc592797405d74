package storefront

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/foodcart/internal/cart"
	"github.com/fjod/foodcart/internal/checkout"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/events"
	"github.com/fjod/foodcart/internal/order"
	"github.com/fjod/foodcart/internal/pricing"
	"github.com/fjod/foodcart/internal/reconcile"
	"github.com/fjod/foodcart/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

type PendingPayments interface {
	Save(ctx context.Context, p domain.PendingPayment) error
	Load(ctx context.Context, orderID string) (*domain.PendingPayment, error)
	Delete(ctx context.Context, orderID string) error
}

// OrderHistory is the read and cancel side of the backend order API.
type OrderHistory interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListMyOrders(ctx context.Context) ([]domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type Deps struct {
	Storage     storage.Store
	Orders      order.OrderCreator
	History     OrderHistory
	Gateways    order.GatewayResolver
	Pending     PendingPayments
	Publisher   events.Publisher
	Policy      pricing.Policy
	ClearPolicy order.ClearPolicy
	// IdleTTL is how long an unused session stays in memory. Zero keeps
	// sessions until the process exits.
	IdleTTL time.Duration
}

// Registry opens sessions lazily and drops them again once they have been
// idle for IdleTTL. A dropped session is rebuilt from storage on next use.
type Registry struct {
	deps Deps
	sfg  singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(d Deps) *Registry {
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	return &Registry{deps: d, sessions: make(map[string]*Session)}
}

func NewSessionID() string {
	return uuid.NewString()
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// Session returns the session for id, rehydrating its cart from storage on
// first use.
func (r *Registry) Session(ctx context.Context, id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch(time.Now())
		return s, nil
	}

	v, err, _ := r.sfg.Do(id, func() (interface{}, error) {
		r.mu.RLock()
		existing, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		opened, errOpen := r.open(ctx, id)
		if errOpen != nil {
			return nil, errOpen
		}
		r.mu.Lock()
		r.sessions[id] = opened
		r.mu.Unlock()
		return opened, nil
	})
	if err != nil {
		return nil, err
	}
	s = v.(*Session)
	s.touch(time.Now())
	return s, nil
}

// EvictIdle drops sessions not used since now minus IdleTTL. A session whose
// checkout is submitting is kept.
func (r *Registry) EvictIdle(now time.Time) int {
	if r.deps.IdleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if now.Sub(s.lastUsed()) < r.deps.IdleTTL {
			continue
		}
		if s.Flow.Step() == domain.StepSubmitting {
			continue
		}
		delete(r.sessions, id)
		evicted++
	}
	return evicted
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := r.EvictIdle(now); n > 0 {
				log.Debug().Int("sessions", n).Msg("evicted idle sessions")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) open(ctx context.Context, id string) (*Session, error) {
	store, err := cart.Open(ctx, r.deps.Storage, cartKey(id))
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}

	coordinator := order.NewCoordinator(order.Deps{
		Owner:       id,
		Orders:      r.deps.Orders,
		Gateways:    r.deps.Gateways,
		Pending:     r.deps.Pending,
		Cart:        store,
		Publisher:   r.deps.Publisher,
		Policy:      r.deps.Policy,
		ClearPolicy: r.deps.ClearPolicy,
	})
	reconciler := reconcile.NewReconciler(reconcile.Deps{
		Owner:       id,
		Gateways:    r.deps.Gateways,
		Pending:     r.deps.Pending,
		Cart:        store,
		Publisher:   r.deps.Publisher,
		ClearPolicy: r.deps.ClearPolicy,
	})

	log.Debug().Str("session_id", id).Int("items", len(store.Snapshot().Items)).Msg("session opened")
	return &Session{
		ID:         id,
		Cart:       store,
		Flow:       checkout.NewFlow(store, coordinator, nil),
		reconciler: reconciler,
		pending:    r.deps.Pending,
		policy:     r.deps.Policy,
	}, nil
}

func (r *Registry) Orders(ctx context.Context) ([]domain.Order, error) {
	return r.deps.History.ListMyOrders(ctx)
}

func (r *Registry) Order(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.deps.History.GetOrder(ctx, orderID)
}

// CancelOrder cancels a pending order and discards its pending payment record.
func (r *Registry) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := r.deps.History.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if errDel := r.deps.Pending.Delete(ctx, orderID); errDel != nil {
		log.Error().Err(errDel).Str("order_id", orderID).Msg("failed to delete pending payment record")
	}
	e := events.NewEvent(events.OrderCancelled, orderID)
	e.Method = o.PaymentMethod
	e.Total = o.Total
	if errPub := r.deps.Publisher.Publish(ctx, e); errPub != nil {
		log.Error().Err(errPub).Str("order_id", orderID).Msg("failed to publish order.cancelled")
	}
	return o, nil
}
