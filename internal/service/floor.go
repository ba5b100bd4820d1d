// Package service implements the floor operations: line item tracking,
// the order aggregate state machine and table occupancy.  Every mutation
// runs as one repository transaction; the change events describing the
// committed rows are published only after the commit succeeds.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
	"github.com/iliyamo/restaurant-floor/internal/repository"
)

// Publisher delivers committed change events to observers.  Delivery is
// at-least-once at best; a failing Publisher never undoes a commit.
type Publisher interface {
	Publish(ctx context.Context, events []model.ChangeEvent) error
}

// Floor is the authoritative entry point for every floor mutation and
// read.  It holds no locks of its own; mutual exclusion comes from the
// locked rows read inside each transaction.
type Floor struct {
	store  *repository.Store
	tables *repository.TableRepo
	orders *repository.OrderRepo
	items  *repository.LineItemRepo

	pub            Publisher
	publishTimeout time.Duration
	now            func() time.Time
}

// Option configures a Floor.
type Option func(*Floor)

// WithPublisher sets where committed change events go.  Without one the
// events are dropped.
func WithPublisher(p Publisher) Option { return func(f *Floor) { f.pub = p } }

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option { return func(f *Floor) { f.now = now } }

// WithPublishTimeout bounds how long a post-commit publish may take.
func WithPublishTimeout(d time.Duration) Option {
	return func(f *Floor) {
		if d > 0 {
			f.publishTimeout = d
		}
	}
}

// NewFloor returns a Floor backed by store.
func NewFloor(store *repository.Store, opts ...Option) *Floor {
	f := &Floor{
		store:          store,
		tables:         repository.NewTableRepo(store),
		orders:         repository.NewOrderRepo(store),
		items:          repository.NewLineItemRepo(store),
		publishTimeout: 5 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type changeKey struct {
	entity model.EntityType
	id     uint64
}

// changeSet collects the events of one transaction.  A row written twice
// in the same transaction yields one event carrying its final version.
type changeSet struct {
	at     time.Time
	events []model.ChangeEvent
	index  map[changeKey]int
}

func newChangeSet(at time.Time) *changeSet {
	return &changeSet{at: at.UTC(), index: make(map[changeKey]int)}
}

func (c *changeSet) add(ev model.ChangeEvent) {
	k := changeKey{ev.Entity, ev.EntityID}
	if i, ok := c.index[k]; ok {
		c.events[i] = ev
		return
	}
	c.index[k] = len(c.events)
	c.events = append(c.events, ev)
}

func (c *changeSet) table(t model.Table) { c.add(model.TableUpserted(t, c.at)) }
func (c *changeSet) order(o model.Order) { c.add(model.OrderUpserted(o, c.at)) }
func (c *changeSet) item(li model.LineItem) { c.add(model.LineItemUpserted(li, c.at)) }
func (c *changeSet) deleted(e model.EntityType, id, version uint64) {
	c.add(model.Deleted(e, id, version, c.at))
}

// mutate runs fn in a transaction and publishes what it recorded once
// the transaction has committed.
func (f *Floor) mutate(ctx context.Context, fn func(tx *sql.Tx, cs *changeSet) error) error {
	cs := newChangeSet(f.now())
	if err := f.store.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx, cs) }); err != nil {
		return err
	}
	f.publish(ctx, cs.events)
	return nil
}

func (f *Floor) publish(ctx context.Context, events []model.ChangeEvent) {
	if len(events) == 0 || f.pub == nil {
		return
	}
	// publication outlives the request context
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.publishTimeout)
	defer cancel()
	if err := f.pub.Publish(pctx, events); err != nil {
		log.Printf("floor: publish %d change events failed: %v", len(events), err)
	}
}

// casErr maps a lost compare-and-set to ErrConcurrencyConflict.
func casErr(err error) error {
	if repository.IsStaleVersion(err) {
		return fmt.Errorf("%v: %w", err, model.ErrConcurrencyConflict)
	}
	return err
}

func checkVersion(o model.Order, expected uint64) error {
	if expected != 0 && o.Version != expected {
		return fmt.Errorf("order %d is at version %d, not %d: %w", o.ID, o.Version, expected, model.ErrConcurrencyConflict)
	}
	return nil
}
