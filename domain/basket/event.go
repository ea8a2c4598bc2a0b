package basket

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// CartProductItemsMatched records that ProductID was bought in a basket
// together with RelatedProducts. Related products may repeat or be empty.
type CartProductItemsMatched struct {
	productID       uuid.UUID
	relatedProducts []uuid.UUID
}

// NewCartProductItemsMatched creates the event.
func NewCartProductItemsMatched(productID uuid.UUID, related ...uuid.UUID) CartProductItemsMatched {
	return CartProductItemsMatched{
		productID:       productID,
		relatedProducts: slices.Clone(related),
	}
}

// ProductID returns the anchor product.
func (e CartProductItemsMatched) ProductID() uuid.UUID { return e.productID }

// RelatedProducts returns a copy of the co-purchased products in arrival order.
func (e CartProductItemsMatched) RelatedProducts() []uuid.UUID {
	return slices.Clone(e.relatedProducts)
}

// QueuedEvent is an event waiting in the inbox to be projected.
// Existence means it has not been applied yet.
type QueuedEvent struct {
	id             int64
	event          CartProductItemsMatched
	partition      int
	attempts       int
	lastError      string
	deadLetteredAt *time.Time
	createdAt      time.Time
	updatedAt      time.Time
}

// NewQueuedEvent wraps an event for the given partition.
func NewQueuedEvent(event CartProductItemsMatched, partition int) QueuedEvent {
	return QueuedEvent{event: event, partition: partition}
}

// ReconstructQueuedEvent rebuilds a queued event from persistence.
func ReconstructQueuedEvent(
	id int64,
	event CartProductItemsMatched,
	partition, attempts int,
	lastError string,
	deadLetteredAt *time.Time,
	createdAt, updatedAt time.Time,
) QueuedEvent {
	return QueuedEvent{
		id:             id,
		event:          event,
		partition:      partition,
		attempts:       attempts,
		lastError:      lastError,
		deadLetteredAt: deadLetteredAt,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// ID returns the inbox ID.
func (q QueuedEvent) ID() int64 { return q.id }

// Event returns the wrapped event.
func (q QueuedEvent) Event() CartProductItemsMatched { return q.event }

// Partition returns the worker partition that owns the event.
func (q QueuedEvent) Partition() int { return q.partition }

// Attempts returns how many times projecting the event has failed.
func (q QueuedEvent) Attempts() int { return q.attempts }

// LastError returns the most recent failure message.
func (q QueuedEvent) LastError() string { return q.lastError }

// DeadLetteredAt returns when the event was given up on, if it was.
func (q QueuedEvent) DeadLetteredAt() (time.Time, bool) {
	if q.deadLetteredAt == nil {
		return time.Time{}, false
	}
	return *q.deadLetteredAt, true
}

// IsDeadLettered reports whether the event has been given up on.
func (q QueuedEvent) IsDeadLettered() bool { return q.deadLetteredAt != nil }

// CreatedAt returns when the event was enqueued.
func (q QueuedEvent) CreatedAt() time.Time { return q.createdAt }

// UpdatedAt returns when the event was last touched.
func (q QueuedEvent) UpdatedAt() time.Time { return q.updatedAt }

// WithID returns a copy with the given ID.
func (q QueuedEvent) WithID(id int64) QueuedEvent {
	q.id = id
	return q
}
