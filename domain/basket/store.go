package basket

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixml/marketbasket/domain/query"
)

// SummaryStore persists product summaries.
type SummaryStore interface {
	// Get returns the stored summary, or NewSummary(productID) when there is none.
	Get(ctx context.Context, productID uuid.UUID) (Summary, error)
	// Save writes summary if its version still matches the stored one and
	// returns it with the new version. A stale version yields ErrConcurrentUpdate.
	Save(ctx context.Context, summary Summary) (Summary, error)
	// Find returns summaries without their relationships.
	Find(ctx context.Context, options ...query.Option) ([]Summary, error)
	Count(ctx context.Context, options ...query.Option) (int64, error)
}

// EventStore is the durable inbox of events awaiting projection.
type EventStore interface {
	Append(ctx context.Context, event QueuedEvent) (QueuedEvent, error)
	// AppendBatch stores every event or, on error, none of them.
	AppendBatch(ctx context.Context, events []QueuedEvent) ([]QueuedEvent, error)
	// Next returns the oldest live event in partition. The bool is false when
	// the partition is empty.
	Next(ctx context.Context, partition int) (QueuedEvent, bool, error)
	Get(ctx context.Context, id int64) (QueuedEvent, error)
	Delete(ctx context.Context, event QueuedEvent) error
	RecordFailure(ctx context.Context, event QueuedEvent, cause error) (QueuedEvent, error)
	DeadLetter(ctx context.Context, event QueuedEvent, cause error) (QueuedEvent, error)
	// Repartition moves a live event to another partition.
	Repartition(ctx context.Context, event QueuedEvent, partition int) (QueuedEvent, error)
	FindPending(ctx context.Context, options ...query.Option) ([]QueuedEvent, error)
	FindDeadLettered(ctx context.Context, options ...query.Option) ([]QueuedEvent, error)
	CountPending(ctx context.Context) (int64, error)
	CountDeadLettered(ctx context.Context) (int64, error)
}
