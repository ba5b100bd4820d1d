package feed

import (
	"context"
	"errors"
	"log"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// ErrStopped is returned by Projector calls once Run has returned.
var ErrStopped = errors.New("projector stopped")

type projection struct {
	replica *Replica
	syncing bool
	pending []model.ChangeEvent
	epoch   uint64 // bumped by every Resync
}

// Projector owns a Replica in a single goroutine.  Every read and write
// is a request answered by that goroutine, so no locking is needed.
//
// A new Projector is syncing: events are buffered until LoadSnapshot
// seeds the replica, after which the buffer is replayed and version
// filtering drops what the snapshot already contains.  Resync returns
// to that state and must be called whenever the event subscription is
// (re)established.
type Projector struct {
	requests chan func(*projection)
	changes  chan struct{}
	done     chan struct{}
}

// NewProjector returns a syncing projector.  Call Run to start it.
func NewProjector() *Projector {
	return &Projector{
		requests: make(chan func(*projection)),
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Run serves requests until ctx is cancelled.
func (p *Projector) Run(ctx context.Context) error {
	defer close(p.done)
	st := &projection{replica: NewReplica(), syncing: true}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-p.requests:
			req(st)
		}
	}
}

// Changes receives a value after the replica changed.  Notifications
// coalesce; a reader sees at least one per burst of changes.
func (p *Projector) Changes() <-chan struct{} { return p.changes }

func (p *Projector) notify() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

func (p *Projector) do(ctx context.Context, fn func(*projection)) error {
	reply := make(chan struct{})
	req := func(st *projection) {
		fn(st)
		close(reply)
	}
	select {
	case p.requests <- req:
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-reply
	return nil
}

// Apply folds a change event into the replica, or buffers it while the
// projector is syncing.
func (p *Projector) Apply(ctx context.Context, ev model.ChangeEvent) error {
	var applyErr error
	err := p.do(ctx, func(st *projection) {
		if st.syncing {
			st.pending = append(st.pending, ev)
			return
		}
		changed, err := st.replica.Apply(ev)
		if err != nil {
			applyErr = err
			return
		}
		if changed {
			p.notify()
		}
	})
	if err != nil {
		return err
	}
	return applyErr
}

// LoadSnapshot seeds the replica with snap, replays buffered events and
// leaves syncing mode.  Buffered events that fail to apply are logged
// and skipped.
func (p *Projector) LoadSnapshot(ctx context.Context, snap model.Snapshot) error {
	return p.do(ctx, func(st *projection) { p.load(st, snap) })
}

func (p *Projector) load(st *projection, snap model.Snapshot) {
	st.replica.Load(snap)
	for _, ev := range st.pending {
		if _, err := st.replica.Apply(ev); err != nil {
			log.Printf("projector: skip buffered event %s: %v", ev.ID, err)
		}
	}
	st.pending = nil
	st.syncing = false
	p.notify()
}

// loadSnapshotAt is LoadSnapshot for a snapshot requested after the Resync
// that returned epoch.  A snapshot from an older epoch is discarded.
func (p *Projector) loadSnapshotAt(ctx context.Context, epoch uint64, snap model.Snapshot) (bool, error) {
	var loaded bool
	err := p.do(ctx, func(st *projection) {
		if st.epoch != epoch {
			return
		}
		p.load(st, snap)
		loaded = true
	})
	return loaded, err
}

// Resync drops the replica, except for delete tombstones, and starts
// buffering again.
func (p *Projector) Resync(ctx context.Context) error {
	_, err := p.resync(ctx)
	return err
}

func (p *Projector) resync(ctx context.Context) (uint64, error) {
	var epoch uint64
	err := p.do(ctx, func(st *projection) {
		st.replica.clear()
		st.pending = nil
		st.syncing = true
		st.epoch++
		epoch = st.epoch
		p.notify()
	})
	return epoch, err
}

// Synced reports whether a snapshot has been loaded since the last Resync.
func (p *Projector) Synced(ctx context.Context) (bool, error) {
	var synced bool
	err := p.do(ctx, func(st *projection) { synced = !st.syncing })
	return synced, err
}

// KitchenQueue derives the kitchen view from the current replica.
func (p *Projector) KitchenQueue(ctx context.Context) ([]KitchenEntry, error) {
	var out []KitchenEntry
	err := p.do(ctx, func(st *projection) { out = KitchenQueue(st.replica) })
	return out, err
}

// Orders returns the replicated orders with their line items.
func (p *Projector) Orders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := p.do(ctx, func(st *projection) { out = st.replica.Orders() })
	return out, err
}

// Tables returns the replicated tables.
func (p *Projector) Tables(ctx context.Context) ([]model.Table, error) {
	var out []model.Table
	err := p.do(ctx, func(st *projection) { out = st.replica.Tables() })
	return out, err
}

// Snapshot exports the replica.
func (p *Projector) Snapshot(ctx context.Context) (model.Snapshot, error) {
	var out model.Snapshot
	err := p.do(ctx, func(st *projection) { out = st.replica.Snapshot() })
	return out, err
}
