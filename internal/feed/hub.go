package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// Subscription is a stream of change events.  Events is closed when the
// subscription ends; Err then tells why (nil after Close).
type Subscription interface {
	Events() <-chan model.ChangeEvent
	Err() error
	Close() error
}

// Subscriber opens subscriptions filtered by entity type.  An empty
// filter means every entity type.
type Subscriber interface {
	Subscribe(ctx context.Context, entities []model.EntityType) (Subscription, error)
}

// ErrSlowSubscriber ends a hub subscription whose buffer overflowed.
var ErrSlowSubscriber = errors.New("subscriber fell behind")

// Hub is an in-process change bus.  It satisfies the publisher contract
// of the floor service and Subscriber, for single-process deployments
// and tests.  A subscriber that cannot keep up is cut off rather than
// slowing the publisher; it is expected to resubscribe and resync.
type Hub struct {
	buffer int

	mu   sync.Mutex
	subs map[*hubSub]struct{}
}

// NewHub returns a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Hub{buffer: buffer, subs: make(map[*hubSub]struct{})}
}

// Publish delivers events to every matching subscription.
func (h *Hub) Publish(_ context.Context, events []model.ChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		for _, ev := range events {
			if !s.wants(ev.Entity) {
				continue
			}
			select {
			case s.ch <- ev:
			default:
				h.dropLocked(s, ErrSlowSubscriber)
			}
			if s.err != nil {
				break
			}
		}
	}
	return nil
}

// Subscribe registers a new subscription.
func (h *Hub) Subscribe(_ context.Context, entities []model.EntityType) (Subscription, error) {
	s := &hubSub{hub: h, ch: make(chan model.ChangeEvent, h.buffer)}
	if len(entities) > 0 {
		s.filter = make(map[model.EntityType]bool, len(entities))
		for _, e := range entities {
			s.filter[e] = true
		}
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s, nil
}

// dropLocked ends s.  h.mu must be held.
func (h *Hub) dropLocked(s *hubSub, err error) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	s.err = err
	close(s.ch)
}

type hubSub struct {
	hub    *Hub
	filter map[model.EntityType]bool
	ch     chan model.ChangeEvent
	err    error
}

func (s *hubSub) wants(e model.EntityType) bool {
	return s.filter == nil || s.filter[e]
}

func (s *hubSub) Events() <-chan model.ChangeEvent { return s.ch }

func (s *hubSub) Err() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.err
}

func (s *hubSub) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.dropLocked(s, nil)
	return nil
}
