package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/google/uuid"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/domain/query"
)

// EventListParams configures event listing.
type EventListParams struct {
	Limit  int
	Offset int
}

func (p *EventListParams) options() []query.Option {
	if p == nil || p.Limit <= 0 {
		return nil
	}
	return []query.Option{query.WithLimit(p.Limit), query.WithOffset(p.Offset)}
}

// Queue records inbound events in the inbox, assigning each to the
// partition of its anchor product.
type Queue struct {
	store      basket.EventStore
	expander   basket.Expander
	partitions int
	logger     *slog.Logger
}

// NewQueue creates a new Queue. Events are validated against expander and
// spread over partitions, which must match the worker's partition count.
func NewQueue(store basket.EventStore, expander basket.Expander, partitions int, logger *slog.Logger) *Queue {
	if partitions < 1 {
		partitions = 1
	}
	return &Queue{
		store:      store,
		expander:   expander,
		partitions: partitions,
		logger:     logger,
	}
}

// Partitions returns the number of partitions.
func (q *Queue) Partitions() int { return q.partitions }

// Partition returns the partition owning productID. Every event for one
// product lands in the same partition.
func Partition(productID uuid.UUID, partitions int) int {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(productID[:])
	return int(h.Sum32() % uint32(partitions))
}

// Validate reports, with basket.ErrInvalidInput, why event could never be
// applied.
func (q *Queue) Validate(event basket.CartProductItemsMatched) error {
	return q.expander.Validate(event)
}

// Enqueue validates event and appends it to the inbox. Events that could
// never be applied are rejected with basket.ErrInvalidInput.
func (q *Queue) Enqueue(ctx context.Context, event basket.CartProductItemsMatched) (basket.QueuedEvent, error) {
	if err := q.Validate(event); err != nil {
		return basket.QueuedEvent{}, err
	}

	partition := Partition(event.ProductID(), q.partitions)
	queued, err := q.store.Append(ctx, basket.NewQueuedEvent(event, partition))
	if err != nil {
		return basket.QueuedEvent{}, err
	}

	q.logger.DebugContext(ctx, "event enqueued",
		slog.Int64("event_id", queued.ID()),
		slog.String("product_id", event.ProductID().String()),
		slog.Int("partition", partition),
	)
	return queued, nil
}

// EnqueueBatch validates every event, then appends them all in order in one
// transaction. If any event is invalid or the store fails, nothing is queued;
// the error of an invalid event names its index.
func (q *Queue) EnqueueBatch(ctx context.Context, events []basket.CartProductItemsMatched) ([]basket.QueuedEvent, error) {
	batch := make([]basket.QueuedEvent, len(events))
	for i, event := range events {
		if err := q.Validate(event); err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		batch[i] = basket.NewQueuedEvent(event, Partition(event.ProductID(), q.partitions))
	}
	if len(batch) == 0 {
		return []basket.QueuedEvent{}, nil
	}

	queued, err := q.store.AppendBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	q.logger.DebugContext(ctx, "event batch enqueued", slog.Int("events", len(queued)))
	return queued, nil
}

// Rebalance moves pending events whose partition no longer matches the
// current partition count. It must run before the worker starts.
func (q *Queue) Rebalance(ctx context.Context) (int, error) {
	pending, err := q.store.FindPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending events: %w", err)
	}

	moved := 0
	for _, event := range pending {
		partition := Partition(event.Event().ProductID(), q.partitions)
		if partition == event.Partition() {
			continue
		}
		if _, err := q.store.Repartition(ctx, event, partition); err != nil {
			return moved, err
		}
		moved++
	}
	if moved > 0 {
		q.logger.Info("pending events rebalanced",
			slog.Int("moved", moved),
			slog.Int("partitions", q.partitions),
		)
	}
	return moved, nil
}

// Get returns a queued event by ID.
func (q *Queue) Get(ctx context.Context, id int64) (basket.QueuedEvent, error) {
	return q.store.Get(ctx, id)
}

// List returns pending events in arrival order.
func (q *Queue) List(ctx context.Context, params *EventListParams) ([]basket.QueuedEvent, error) {
	return q.store.FindPending(ctx, params.options()...)
}

// Count returns the number of pending events.
func (q *Queue) Count(ctx context.Context) (int64, error) {
	return q.store.CountPending(ctx)
}

// DeadLettered returns events that were given up on, most recent first.
func (q *Queue) DeadLettered(ctx context.Context, params *EventListParams) ([]basket.QueuedEvent, error) {
	return q.store.FindDeadLettered(ctx, params.options()...)
}

// CountDeadLettered returns the number of dead-lettered events.
func (q *Queue) CountDeadLettered(ctx context.Context) (int64, error) {
	return q.store.CountDeadLettered(ctx)
}
