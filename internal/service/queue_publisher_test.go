package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

type blockingPublisher struct {
	release chan struct{}
	rec     recorder
}

func (b *blockingPublisher) Publish(ctx context.Context, events []model.ChangeEvent) error {
	<-b.release
	return b.rec.Publish(ctx, events)
}

func batch(id uint64) []model.ChangeEvent {
	return []model.ChangeEvent{model.TableUpserted(model.Table{ID: id, Version: 1}, time.Now())}
}

func TestAsyncPublisher_KeepsOrderAndDrainsOnClose(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	p := NewAsyncPublisher(next, 4, time.Second)

	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, p.Publish(context.Background(), batch(id)))
	}
	close(next.release)
	p.Close()

	got := next.rec.take()
	require.Len(t, got, 3)
	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.EntityID)
	}
	assert.Error(t, p.Publish(context.Background(), batch(9)), "closed publisher rejects batches")
}

func TestAsyncPublisher_Backlog(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	p := NewAsyncPublisher(next, 1, time.Second)
	defer func() {
		close(next.release)
		p.Close()
	}()

	var backlog error
	for id := uint64(1); id <= 3 && backlog == nil; id++ {
		backlog = p.Publish(context.Background(), batch(id))
	}
	assert.ErrorIs(t, backlog, ErrPublishBacklog)
}

func TestMultiPublisher_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recorder{}
	failing := &recorder{err: boom}

	err := MultiPublisher{failing, ok}.Publish(context.Background(), batch(1))
	require.ErrorIs(t, err, boom)
	assert.Len(t, ok.take(), 1, "later publishers still receive the events")
}
