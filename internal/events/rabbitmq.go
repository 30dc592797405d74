package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 3 * time.Second

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitPublisher struct {
	mu       sync.Mutex
	ch       amqpChannel
	open     func() (amqpChannel, error)
	shutdown func() error
	exchange string
}

// NewRabbitPublisher declares a durable topic exchange and publishes every
// event with its type as the routing key. A closed channel or connection is
// reopened on the next publish.
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	d := &rabbitDialer{url: url, exchange: exchange}
	ch, err := d.open()
	if err != nil {
		_ = d.close()
		return nil, err
	}
	return &RabbitPublisher{ch: ch, open: d.open, shutdown: d.close, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Type, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.OrderID + ":" + string(e.Type),
		Timestamp:    e.OccurredAt,
		Body:         body,
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		if err := p.reopen(); err != nil {
			return err
		}
	}
	err = p.ch.PublishWithContext(pubCtx, p.exchange, string(e.Type), false, false, msg)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}

	log.Warn().Str("exchange", p.exchange).Msg("rabbitmq channel closed, reopening")
	if err := p.reopen(); err != nil {
		return err
	}
	return p.ch.PublishWithContext(pubCtx, p.exchange, string(e.Type), false, false, msg)
}

// reopen replaces the channel. Callers hold p.mu.
func (p *RabbitPublisher) reopen() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("reopen rabbitmq channel: %w", err)
	}
	p.ch = ch
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errCh error
	if p.ch != nil {
		errCh = p.ch.Close()
	}
	if err := p.shutdown(); err != nil {
		return err
	}
	if errors.Is(errCh, amqp.ErrClosed) {
		return nil
	}
	return errCh
}

// rabbitDialer owns the connection and redials it when it has gone away.
type rabbitDialer struct {
	url      string
	exchange string
	conn     *amqp.Connection
}

func (d *rabbitDialer) open() (amqpChannel, error) {
	if d.conn == nil || d.conn.IsClosed() {
		conn, err := amqp.Dial(d.url)
		if err != nil {
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		d.conn = conn
	}
	ch, err := d.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(d.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", d.exchange, err)
	}
	return ch, nil
}

func (d *rabbitDialer) close() error {
	if d.conn == nil || d.conn.IsClosed() {
		return nil
	}
	return d.conn.Close()
}
