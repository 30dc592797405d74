package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrQueueFull       = errors.New("event queue is full")
	ErrPublisherClosed = errors.New("event publisher is closed")
)

const (
	DefaultQueueSize      = 256
	DefaultDeliverTimeout = 5 * time.Second
)

// AsyncPublisher queues events and delivers them from a background worker.
// Publish never waits on the broker; the caller's context is not used for
// delivery, each event gets its own timeout instead.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	queue   chan Event
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(next Publisher, queueSize int, timeout time.Duration) *AsyncPublisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultDeliverTimeout
	}
	p := &AsyncPublisher{
		next:    next,
		timeout: timeout,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *AsyncPublisher) Publish(_ context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for e := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.next.Publish(ctx, e)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("order_id", e.OrderID).Msgf("failed to deliver %s", e.Type)
		}
	}
}

// Close stops accepting events, drains the queue and closes the wrapped
// publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}
