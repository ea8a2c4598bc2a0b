package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/persistence"
	"github.com/helixml/marketbasket/internal/log"
	"github.com/helixml/marketbasket/internal/testdb"
)

func newTestQueue(t *testing.T, partitions int) (*Queue, persistence.EventStore) {
	t.Helper()
	store := persistence.NewEventStore(testdb.New(t))
	return NewQueue(store, basket.DefaultExpander(), partitions, log.Discard()), store
}

func TestPartition_IsStableAndInRange(t *testing.T) {
	for range 100 {
		id := uuid.New()
		got := Partition(id, 8)
		assert.GreaterOrEqual(t, got, 0)
		assert.Less(t, got, 8)
		assert.Equal(t, got, Partition(id, 8))
	}
	assert.Zero(t, Partition(uuid.New(), 1))
	assert.Zero(t, Partition(uuid.New(), 0))
}

func TestPartition_SpreadsProducts(t *testing.T) {
	seen := make(map[int]bool)
	for range 200 {
		seen[Partition(uuid.New(), 4)] = true
	}
	assert.Len(t, seen, 4)
}

func TestQueue_Enqueue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 4)

	queued, err := q.Enqueue(ctx, basket.NewCartProductItemsMatched(p1, p2, p3))
	require.NoError(t, err)
	assert.NotZero(t, queued.ID())
	assert.Equal(t, Partition(p1, 4), queued.Partition())
	assert.Equal(t, []uuid.UUID{p2, p3}, queued.Event().RelatedProducts())

	got, err := q.Get(ctx, queued.ID())
	require.NoError(t, err)
	assert.Equal(t, p1, got.Event().ProductID())

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQueue_EnqueueRejectsInvalidEvents(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)

	_, err := q.Enqueue(ctx, basket.NewCartProductItemsMatched(uuid.Nil, p2))
	require.ErrorIs(t, err, basket.ErrInvalidInput)

	_, err = q.Enqueue(ctx, basket.NewCartProductItemsMatched(p1, p2, uuid.Nil))
	require.ErrorIs(t, err, basket.ErrInvalidInput)

	many := make([]uuid.UUID, basket.DefaultMaxProducts+1)
	for i := range many {
		many[i] = uuid.New()
	}
	_, err = q.Enqueue(ctx, basket.NewCartProductItemsMatched(p1, many...))
	require.ErrorIs(t, err, basket.ErrTooManyProducts)
	require.ErrorIs(t, err, basket.ErrInvalidInput)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_EnqueueAcceptsEmptyAndDuplicates(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 1)

	_, err := q.Enqueue(ctx, basket.NewCartProductItemsMatched(p1))
	require.NoError(t, err)

	// Duplicates count once against the bound.
	dups := make([]uuid.UUID, 0, 2*basket.DefaultMaxProducts)
	for range basket.DefaultMaxProducts {
		id := uuid.New()
		dups = append(dups, id, id)
	}
	_, err = q.Enqueue(ctx, basket.NewCartProductItemsMatched(p1, dups...))
	require.NoError(t, err)
}

func TestQueue_ListPaginates(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 2)

	for range 5 {
		_, err := q.Enqueue(ctx, basket.NewCartProductItemsMatched(p1, p2))
		require.NoError(t, err)
	}

	all, err := q.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID(), all[i].ID())
	}

	page, err := q.List(ctx, &EventListParams{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].ID(), page[0].ID())
}

func TestQueue_DeadLettered(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t, 1)

	queued, err := q.Enqueue(ctx, basket.NewCartProductItemsMatched(p1, p2))
	require.NoError(t, err)
	_, err = store.DeadLetter(ctx, queued, assert.AnError)
	require.NoError(t, err)

	dead, err := q.DeadLettered(ctx, nil)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, queued.ID(), dead[0].ID())
	assert.Equal(t, assert.AnError.Error(), dead[0].LastError())

	n, err := q.CountDeadLettered(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestQueue_RebalanceMovesStalePartitions(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewEventStore(testdb.New(t))
	before := NewQueue(store, basket.DefaultExpander(), 1, log.Discard())

	anchors := []uuid.UUID{p1, p2, p3, uuid.New(), uuid.New()}
	for _, anchor := range anchors {
		_, err := before.Enqueue(ctx, basket.NewCartProductItemsMatched(anchor, uuid.New()))
		require.NoError(t, err)
	}

	after := NewQueue(store, basket.DefaultExpander(), 4, log.Discard())
	moved, err := after.Rebalance(ctx)
	require.NoError(t, err)

	pending, err := after.List(ctx, nil)
	require.NoError(t, err)
	want := 0
	for _, q := range pending {
		assert.Equal(t, Partition(q.Event().ProductID(), 4), q.Partition())
		if q.Partition() != 0 {
			want++
		}
	}
	assert.Equal(t, want, moved)

	again, err := after.Rebalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestQueue_EnqueueBatch(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 4)

	queued, err := q.EnqueueBatch(ctx, []basket.CartProductItemsMatched{
		basket.NewCartProductItemsMatched(p1, p2),
		basket.NewCartProductItemsMatched(p2, p3),
	})
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, p1, queued[0].Event().ProductID())
	assert.Equal(t, Partition(p2, 4), queued[1].Partition())

	queued, err = q.EnqueueBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestQueue_EnqueueBatchRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 2)

	tests := []struct {
		name    string
		invalid basket.CartProductItemsMatched
	}{
		{"nil anchor", basket.NewCartProductItemsMatched(uuid.Nil, p3)},
		{"nil related", basket.NewCartProductItemsMatched(p2, uuid.Nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.EnqueueBatch(ctx, []basket.CartProductItemsMatched{
				basket.NewCartProductItemsMatched(p1, p2),
				tt.invalid,
			})
			require.ErrorIs(t, err, basket.ErrInvalidInput)
			assert.ErrorContains(t, err, "events[1]")

			n, err := q.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n, "valid events ahead of an invalid one must not be queued")
		})
	}
}
