package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// ErrPublishBacklog is returned by AsyncPublisher when its buffer is full.
var ErrPublishBacklog = errors.New("publish backlog full")

// AsyncPublisher hands event batches to a background worker so that a
// slow or unreachable broker never holds up a request.  Batches keep
// their submission order.  Errors from the wrapped publisher are logged.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	batches chan []model.ChangeEvent
	done    chan struct{}
}

// NewAsyncPublisher starts a worker that forwards to next.  buffer is the
// number of batches that may wait; timeout bounds each forwarded call.
func NewAsyncPublisher(next Publisher, buffer int, timeout time.Duration) *AsyncPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &AsyncPublisher{
		next:    next,
		timeout: timeout,
		batches: make(chan []model.ChangeEvent, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues events without blocking.
func (p *AsyncPublisher) Publish(_ context.Context, events []model.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("publisher closed")
	}
	select {
	case p.batches <- events:
		return nil
	default:
		return ErrPublishBacklog
	}
}

// Close stops accepting batches and waits until the queued ones were
// forwarded.
func (p *AsyncPublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.batches)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for batch := range p.batches {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.next.Publish(ctx, batch); err != nil {
			log.Printf("publisher: dropped %d change events: %v", len(batch), err)
		}
		cancel()
	}
}

// MultiPublisher fans the same events out to several publishers.
type MultiPublisher []Publisher

// Publish calls every publisher and joins their errors.
func (m MultiPublisher) Publish(ctx context.Context, events []model.ChangeEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
