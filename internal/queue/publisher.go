package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// ErrBrokerBackoff is returned while the publisher waits before its next
// reconnect attempt.
var ErrBrokerBackoff = errors.New("rabbitmq: waiting to reconnect")

const (
	minRedial = time.Second
	maxRedial = 30 * time.Second
)

// Publisher publishes change events to the topic exchange with
// publisher confirms.  Publish calls are serialised so each confirmation
// can be matched to its message.
//
// A dropped connection or channel is re-established on the next Publish
// or PingContext.  Failed dials back off exponentially between attempts
// instead of blocking callers.
type Publisher struct {
	url      string
	exchange string
	dial     func(url string) (*amqp.Connection, error)
	now      func() time.Time

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	acks     <-chan amqp.Confirmation
	backoff  time.Duration
	nextDial time.Time
}

// NewPublisher returns a publisher that connects on first use.
func NewPublisher(url, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{url: url, exchange: exchange, dial: amqp.Dial, now: time.Now, backoff: minRedial}
}

// Connect establishes the connection now, ignoring any pending backoff.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextDial = time.Time{}
	return p.ensureLocked()
}

// ensureLocked makes sure an open confirm-mode channel exists.
func (p *Publisher) ensureLocked() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		if now := p.now(); now.Before(p.nextDial) {
			return fmt.Errorf("%w (next attempt in %s)", ErrBrokerBackoff, p.nextDial.Sub(now).Round(time.Millisecond))
		}
		conn, err := p.dial(p.url)
		if err != nil {
			p.failedDialLocked()
			return fmt.Errorf("dial broker: %w", err)
		}
		p.conn = conn
	}
	if err := p.openChannelLocked(); err != nil {
		_ = p.conn.Close()
		p.conn = nil
		p.failedDialLocked()
		return err
	}
	if p.backoff != minRedial {
		log.Printf("rabbitmq: publisher reconnected")
	}
	p.backoff = minRedial
	p.nextDial = time.Time{}
	return nil
}

func (p *Publisher) failedDialLocked() {
	p.nextDial = p.now().Add(p.backoff)
	log.Printf("rabbitmq: publisher offline; retrying in %s", p.backoff)
	if p.backoff < maxRedial {
		p.backoff *= 2
		if p.backoff > maxRedial {
			p.backoff = maxRedial
		}
	}
}

func (p *Publisher) openChannelLocked() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}
	p.ch = ch
	p.acks = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return nil
}

// dropChannelLocked discards the channel so unread confirms cannot be
// matched to later messages.
func (p *Publisher) dropChannelLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	p.ch = nil
	p.acks = nil
}

// PingContext reports whether the broker is reachable, reconnecting if
// the backoff allows.  A publish in flight owns the connection and
// reports its own failures, so a busy publisher counts as up.
func (p *Publisher) PingContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.mu.TryLock() {
		return nil
	}
	defer p.mu.Unlock()
	return p.ensureLocked()
}

// Publish sends events one by one and waits for each confirmation.  It
// stops at the first failure.
func (p *Publisher) Publish(ctx context.Context, events []model.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureLocked(); err != nil {
		return err
	}
	for _, ev := range events {
		body, err := Encode(ev)
		if err != nil {
			return err
		}
		msg := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    time.Now().UTC(),
			Type:         string(ev.Kind),
			Body:         body,
		}
		if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(ev.Entity), false, false, msg); err != nil {
			log.Printf("rabbitmq: publish failed: %v", err)
			p.dropChannelLocked()
			return err
		}
		select {
		case conf, ok := <-p.acks:
			if !ok {
				p.dropChannelLocked()
				return errors.New("rabbitmq channel closed while waiting for confirm")
			}
			if !conf.Ack {
				return fmt.Errorf("broker nacked %s %d", ev.Entity, ev.EntityID)
			}
		case <-ctx.Done():
			p.dropChannelLocked()
			return ctx.Err()
		}
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropChannelLocked()
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
