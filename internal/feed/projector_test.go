package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

func runProjector(t *testing.T) (*Projector, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p := NewProjector()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, ctx
}

func TestProjector_BuffersUntilSnapshot(t *testing.T) {
	p, ctx := runProjector(t)

	synced, err := p.Synced(ctx)
	require.NoError(t, err)
	assert.False(t, synced)

	require.NoError(t, p.Apply(ctx, model.TableUpserted(tableAt(1, 3, model.OccupancyFree), t0)))
	require.NoError(t, p.Apply(ctx, model.TableUpserted(tableAt(2, 1, model.OccupancyOccupied), t0)))
	tables, err := p.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables, "events are held back while syncing")

	require.NoError(t, p.LoadSnapshot(ctx, model.Snapshot{
		Tables: []model.Table{tableAt(1, 2, model.OccupancyOccupied), tableAt(2, 2, model.OccupancyFree)},
	}))
	synced, err = p.Synced(ctx)
	require.NoError(t, err)
	assert.True(t, synced)

	tables, err = p.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, model.OccupancyFree, tables[0].Occupancy, "buffered newer event wins over snapshot")
	assert.Equal(t, uint64(3), tables[0].Version)
	assert.Equal(t, model.OccupancyFree, tables[1].Occupancy, "buffered stale event is dropped")
	assert.Equal(t, uint64(2), tables[1].Version)
}

func TestProjector_ResyncDropsState(t *testing.T) {
	p, ctx := runProjector(t)
	require.NoError(t, p.LoadSnapshot(ctx, model.Snapshot{Tables: []model.Table{tableAt(1, 1, model.OccupancyFree)}}))
	require.NoError(t, p.Resync(ctx))

	synced, err := p.Synced(ctx)
	require.NoError(t, err)
	assert.False(t, synced)
	tables, err := p.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestProjector_NotifiesOnChange(t *testing.T) {
	p, ctx := runProjector(t)
	require.NoError(t, p.LoadSnapshot(ctx, model.Snapshot{}))
	<-p.Changes()

	require.NoError(t, p.Apply(ctx, model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0)))
	select {
	case <-p.Changes():
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	require.NoError(t, p.Apply(ctx, model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0)))
	select {
	case <-p.Changes():
		t.Fatal("duplicate event must not notify")
	default:
	}
}

func TestProjector_ApplyError(t *testing.T) {
	p, ctx := runProjector(t)
	require.NoError(t, p.LoadSnapshot(ctx, model.Snapshot{}))
	err := p.Apply(ctx, model.ChangeEvent{Kind: model.ChangeUpsert, Entity: "menu", EntityID: 1})
	assert.Error(t, err)
}

func TestProjector_Stopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewProjector()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	cancel()
	<-done

	_, err := p.Synced(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestProjector_DiscardsSnapshotFromEarlierResync(t *testing.T) {
	p, ctx := runProjector(t)
	first, err := p.resync(ctx)
	require.NoError(t, err)
	second, err := p.resync(ctx)
	require.NoError(t, err)
	require.Greater(t, second, first)

	loaded, err := p.loadSnapshotAt(ctx, first, model.Snapshot{Tables: []model.Table{tableAt(1, 1, model.OccupancyFree)}})
	require.NoError(t, err)
	assert.False(t, loaded)
	synced, err := p.Synced(ctx)
	require.NoError(t, err)
	assert.False(t, synced, "an old snapshot does not end syncing")

	loaded, err = p.loadSnapshotAt(ctx, second, model.Snapshot{Tables: []model.Table{tableAt(1, 3, model.OccupancyFree)}})
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, uint64(3), tableVersion(ctx, p, 1))
}

func TestProjector_ResyncKeepsTombstones(t *testing.T) {
	p, ctx := runProjector(t)
	require.NoError(t, p.LoadSnapshot(ctx, model.Snapshot{Tables: []model.Table{tableAt(1, 1, model.OccupancyFree)}}))
	require.NoError(t, p.Apply(ctx, model.Deleted(model.EntityTable, 1, 2, t0)))

	require.NoError(t, p.Resync(ctx))
	require.NoError(t, p.Apply(ctx, model.TableUpserted(tableAt(1, 1, model.OccupancyFree), t0)))
	require.NoError(t, p.LoadSnapshot(ctx, model.Snapshot{}))

	tables, err := p.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}
