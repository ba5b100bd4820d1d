package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/restaurant-floor/internal/feed"
	"github.com/iliyamo/restaurant-floor/internal/model"
)

// Subscriber opens change feed subscriptions on RabbitMQ.  Each
// subscription owns a connection and an exclusive, auto-deleted queue
// bound to the requested entity types; it ends when the broker closes
// the channel, and the caller is expected to resubscribe.
type Subscriber struct {
	URL      string
	Exchange string
	Prefetch int
}

// Subscribe implements feed.Subscriber.
func (s Subscriber) Subscribe(ctx context.Context, entities []model.EntityType) (feed.Subscription, error) {
	exchange := s.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	if len(entities) == 0 {
		entities = model.AllEntities
	}
	prefetch := s.Prefetch
	if prefetch <= 0 {
		prefetch = 50
	}

	conn, err := amqp.Dial(s.URL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	fail := func(err error) (feed.Subscription, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("exchange declare: %w", err))
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fail(fmt.Errorf("queue declare: %w", err))
	}
	for _, e := range entities {
		if err := ch.QueueBind(q.Name, RoutingKey(e), exchange, false, nil); err != nil {
			return fail(fmt.Errorf("queue bind %s: %w", e, err))
		}
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		log.Printf("feed-consumer: set QoS failed: %v", err)
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("queue consume: %w", err))
	}

	sub := &subscription{
		conn:   conn,
		ch:     ch,
		events: make(chan model.ChangeEvent),
		stop:   make(chan struct{}),
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go sub.loop(ctx, msgs, closed)
	return sub, nil
}

type subscription struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	events chan model.ChangeEvent
	stop   chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *subscription) loop(ctx context.Context, msgs <-chan amqp.Delivery, closed <-chan *amqp.Error) {
	defer close(s.events)
	for {
		select {
		case <-ctx.Done():
			s.setErr(ctx.Err())
			return
		case <-s.stop:
			return
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				s.setErr(fmt.Errorf("channel closed: %s (%d)", amqpErr.Reason, amqpErr.Code))
			} else {
				s.setErr(errors.New("channel closed"))
			}
			return
		case d, ok := <-msgs:
			if !ok {
				s.setErr(errors.New("deliveries channel closed"))
				return
			}
			ev, err := Decode(d.Body, d.RoutingKey)
			if err != nil {
				log.Printf("feed-consumer: drop message %s: %v", d.MessageId, err)
				_ = d.Nack(false, false)
				continue
			}
			select {
			case s.events <- ev:
				_ = d.Ack(false)
			case <-s.stop:
				return
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		}
	}
}

func (s *subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *subscription) Events() <-chan model.ChangeEvent { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		_ = s.ch.Close()
		err = s.conn.Close()
	})
	return err
}
