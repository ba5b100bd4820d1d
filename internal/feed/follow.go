package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// SnapshotFetcher loads a full, consistent floor snapshot.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (model.Snapshot, error)
}

// SnapshotFunc adapts a function to SnapshotFetcher.
type SnapshotFunc func(ctx context.Context) (model.Snapshot, error)

// FetchSnapshot calls f.
func (f SnapshotFunc) FetchSnapshot(ctx context.Context) (model.Snapshot, error) { return f(ctx) }

// Follower keeps a Projector subscribed.  Each (re)subscription resyncs
// the projector and loads a fresh snapshot taken after the subscription
// is open, so no committed change falls between the two.
type Follower struct {
	Projector  *Projector
	Subscriber Subscriber
	Snapshots  SnapshotFetcher
	Entities   []model.EntityType

	MinBackoff time.Duration // default 1s
	MaxBackoff time.Duration // default 30s
}

// Run follows the change feed until ctx is cancelled.
func (f *Follower) Run(ctx context.Context) error {
	minB, maxB := f.MinBackoff, f.MaxBackoff
	if minB <= 0 {
		minB = time.Second
	}
	if maxB <= 0 {
		maxB = 30 * time.Second
	}
	if maxB < minB {
		maxB = minB
	}
	backoff := minB
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			backoff = minB
			log.Printf("follower: resubscribing in %s", backoff)
		} else {
			log.Printf("follower: %v; retrying in %s", err, backoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if err != nil && backoff < maxB {
			backoff *= 2
			if backoff > maxB {
				backoff = maxB
			}
		}
	}
}

// session runs one subscription.  It returns nil when an established
// subscription ended after the replica had been synced.
func (f *Follower) session(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := f.Subscriber.Subscribe(ctx, f.Entities)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer func() { _ = sub.Close() }()

	epoch, err := f.Projector.resync(ctx)
	if err != nil {
		return err
	}
	// A fetch still running when the session ends is cancelled, and if it
	// returns anyway its snapshot is dropped because the epoch moved on.
	snapDone := make(chan error, 1)
	go func() {
		snap, err := f.Snapshots.FetchSnapshot(ctx)
		if err == nil {
			_, err = f.Projector.loadSnapshotAt(ctx, epoch, snap)
		}
		snapDone <- err
	}()

	events := sub.Events()
	synced := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-snapDone:
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			synced = true
			log.Printf("follower: replica synced")
		case ev, ok := <-events:
			if !ok {
				if !synced {
					return fmt.Errorf("subscription closed before sync: %v", sub.Err())
				}
				if err := sub.Err(); err != nil {
					log.Printf("follower: subscription closed: %v", err)
				}
				return nil
			}
			if err := f.Projector.Apply(ctx, ev); err != nil {
				log.Printf("follower: apply %s %d v%d: %v", ev.Entity, ev.EntityID, ev.Version, err)
			}
		}
	}
}
