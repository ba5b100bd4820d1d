package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// Stands in for the authoritative store: a snapshot of its current rows
// and change events published as rows move.
type fakeSource struct {
	mu     sync.Mutex
	tables map[uint64]model.Table
	hub    *Hub
	loads  atomic.Int32
}

func newFakeSource(h *Hub) *fakeSource {
	return &fakeSource{tables: make(map[uint64]model.Table), hub: h}
}

func (s *fakeSource) FetchSnapshot(context.Context) (model.Snapshot, error) {
	s.loads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.Snapshot{TakenAt: t0}
	for _, t := range s.tables {
		snap.Tables = append(snap.Tables, t)
	}
	return snap, nil
}

func (s *fakeSource) write(t *testing.T, tbl model.Table) {
	t.Helper()
	s.mu.Lock()
	s.tables[tbl.ID] = tbl
	s.mu.Unlock()
	require.NoError(t, s.hub.Publish(context.Background(), []model.ChangeEvent{model.TableUpserted(tbl, t0)}))
}

func startFollower(t *testing.T, f *Follower) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = f.Projector.Run(ctx) }()
	go func() { defer wg.Done(); _ = f.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return ctx
}

func tableVersion(ctx context.Context, p *Projector, id uint64) uint64 {
	tables, err := p.Tables(ctx)
	if err != nil {
		return 0
	}
	for _, t := range tables {
		if t.ID == id {
			return t.Version
		}
	}
	return 0
}

func TestFollower_SeedsAndFollows(t *testing.T) {
	h := NewHub(16)
	src := newFakeSource(h)
	src.write(t, tableAt(1, 1, model.OccupancyFree))

	p := NewProjector()
	ctx := startFollower(t, &Follower{Projector: p, Subscriber: h, Snapshots: src, MinBackoff: 10 * time.Millisecond})

	require.Eventually(t, func() bool {
		synced, err := p.Synced(ctx)
		return err == nil && synced
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), tableVersion(ctx, p, 1))

	src.write(t, tableAt(1, 2, model.OccupancyOccupied))
	src.write(t, tableAt(2, 1, model.OccupancyFree))
	require.Eventually(t, func() bool {
		return tableVersion(ctx, p, 1) == 2 && tableVersion(ctx, p, 2) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

// cuttable hands out hub subscriptions and can end the latest one.
type cuttable struct {
	*Hub
	mu   sync.Mutex
	last Subscription
}

func (c *cuttable) Subscribe(ctx context.Context, entities []model.EntityType) (Subscription, error) {
	sub, err := c.Hub.Subscribe(ctx, entities)
	c.mu.Lock()
	c.last = sub
	c.mu.Unlock()
	return sub, err
}

func (c *cuttable) cut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil {
		_ = c.last.Close()
	}
}

func TestFollower_ResyncsAfterDisconnect(t *testing.T) {
	h := NewHub(16)
	sub := &cuttable{Hub: h}
	src := newFakeSource(h)
	src.write(t, tableAt(1, 1, model.OccupancyFree))

	p := NewProjector()
	ctx := startFollower(t, &Follower{Projector: p, Subscriber: sub, Snapshots: src, MinBackoff: 10 * time.Millisecond})
	require.Eventually(t, func() bool {
		synced, err := p.Synced(ctx)
		return err == nil && synced
	}, 2*time.Second, 5*time.Millisecond)

	sub.cut()
	// written while nobody listens; only the next snapshot carries it
	src.mu.Lock()
	src.tables[1] = tableAt(1, 2, model.OccupancyOccupied)
	src.mu.Unlock()

	require.Eventually(t, func() bool {
		return src.loads.Load() >= 2 && tableVersion(ctx, p, 1) == 2
	}, 3*time.Second, 5*time.Millisecond)
}

// dropsFirst ends its first subscription straight away.
type dropsFirst struct {
	*Hub
	calls atomic.Int32
}

func (d *dropsFirst) Subscribe(ctx context.Context, entities []model.EntityType) (Subscription, error) {
	sub, err := d.Hub.Subscribe(ctx, entities)
	if err == nil && d.calls.Add(1) == 1 {
		_ = sub.Close()
	}
	return sub, err
}

// slowFirst blocks its first fetch until released, ignoring ctx, and then
// returns an older snapshot than later fetches do.
type slowFirst struct {
	calls    atomic.Int32
	release  chan struct{}
	returned chan struct{}
}

func (s *slowFirst) FetchSnapshot(context.Context) (model.Snapshot, error) {
	if s.calls.Add(1) == 1 {
		<-s.release
		defer close(s.returned)
		return model.Snapshot{TakenAt: t0, Tables: []model.Table{tableAt(1, 1, model.OccupancyFree)}}, nil
	}
	return model.Snapshot{TakenAt: t0, Tables: []model.Table{tableAt(1, 3, model.OccupancyOccupied)}}, nil
}

func TestFollower_LateSnapshotFromEndedSession(t *testing.T) {
	src := &slowFirst{release: make(chan struct{}), returned: make(chan struct{})}
	p := NewProjector()
	ctx := startFollower(t, &Follower{
		Projector:  p,
		Subscriber: &dropsFirst{Hub: NewHub(16)},
		Snapshots:  src,
		MinBackoff: 10 * time.Millisecond,
	})

	require.Eventually(t, func() bool { return tableVersion(ctx, p, 1) == 3 }, 2*time.Second, 5*time.Millisecond)

	close(src.release)
	<-src.returned
	assert.Never(t, func() bool { return tableVersion(ctx, p, 1) != 3 }, 200*time.Millisecond, 5*time.Millisecond)
	synced, err := p.Synced(ctx)
	require.NoError(t, err)
	assert.True(t, synced)
}
