package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/domain/query"
	"github.com/helixml/marketbasket/internal/database"
)

// maxErrorLength bounds the stored failure message.
const maxErrorLength = 2000

// EventStore implements basket.EventStore using GORM.
type EventStore struct {
	database.Repository[basket.QueuedEvent, BasketEventModel]
}

// NewEventStore creates a new EventStore.
func NewEventStore(db database.Database) EventStore {
	return EventStore{
		Repository: database.NewRepository[basket.QueuedEvent, BasketEventModel](db, EventMapper{}, "basket event"),
	}
}

// Append adds an event to the inbox.
func (s EventStore) Append(ctx context.Context, event basket.QueuedEvent) (basket.QueuedEvent, error) {
	model := s.Mapper().ToModel(event)
	model.ID = 0
	if err := s.DB(ctx).Create(&model).Error; err != nil {
		return basket.QueuedEvent{}, fmt.Errorf("append basket event: %w", err)
	}
	return s.Mapper().ToDomain(model)
}

// AppendBatch adds events to the inbox in order, in one transaction: either
// every event is stored or none is.
func (s EventStore) AppendBatch(ctx context.Context, events []basket.QueuedEvent) ([]basket.QueuedEvent, error) {
	return database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) ([]basket.QueuedEvent, error) {
		out := make([]basket.QueuedEvent, 0, len(events))
		for i, event := range events {
			model := s.Mapper().ToModel(event)
			model.ID = 0
			if err := tx.Create(&model).Error; err != nil {
				return nil, fmt.Errorf("append basket event %d of batch: %w", i, err)
			}
			q, err := s.Mapper().ToDomain(model)
			if err != nil {
				return nil, err
			}
			out = append(out, q)
		}
		return out, nil
	})
}

// Next returns the oldest live event of partition.
func (s EventStore) Next(ctx context.Context, partition int) (basket.QueuedEvent, bool, error) {
	q, err := s.FindOne(ctx,
		query.Where("partition_key", partition),
		query.WhereNull("dead_lettered_at"),
		query.OrderAsc("id"),
	)
	if errors.Is(err, database.ErrNotFound) {
		return basket.QueuedEvent{}, false, nil
	}
	if err != nil {
		return basket.QueuedEvent{}, false, err
	}
	return q, true, nil
}

// Get returns the event with the given ID.
func (s EventStore) Get(ctx context.Context, id int64) (basket.QueuedEvent, error) {
	q, err := s.FindOne(ctx, query.Where("id", id))
	if err != nil {
		return basket.QueuedEvent{}, fmt.Errorf("basket event %d: %w", id, err)
	}
	return q, nil
}

// Delete removes an applied event.
func (s EventStore) Delete(ctx context.Context, event basket.QueuedEvent) error {
	return s.DeleteBy(ctx, query.Where("id", event.ID()))
}

// RecordFailure counts a failed attempt and keeps the event live.
func (s EventStore) RecordFailure(ctx context.Context, event basket.QueuedEvent, cause error) (basket.QueuedEvent, error) {
	return s.fail(ctx, event, cause, nil)
}

// DeadLetter counts a failed attempt and takes the event out of its partition.
func (s EventStore) DeadLetter(ctx context.Context, event basket.QueuedEvent, cause error) (basket.QueuedEvent, error) {
	now := time.Now().UTC()
	return s.fail(ctx, event, cause, &now)
}

// Repartition moves a live event to partition.
func (s EventStore) Repartition(ctx context.Context, event basket.QueuedEvent, partition int) (basket.QueuedEvent, error) {
	res := s.DB(ctx).Model(&BasketEventModel{}).
		Where("id = ? AND dead_lettered_at IS NULL", event.ID()).
		UpdateColumns(map[string]any{
			"partition_key": partition,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return basket.QueuedEvent{}, fmt.Errorf("repartition basket event %d: %w", event.ID(), res.Error)
	}
	if res.RowsAffected == 0 {
		return basket.QueuedEvent{}, fmt.Errorf("%w: live basket event %d", database.ErrNotFound, event.ID())
	}
	return s.Get(ctx, event.ID())
}

func (s EventStore) fail(ctx context.Context, event basket.QueuedEvent, cause error, deadAt *time.Time) (basket.QueuedEvent, error) {
	return database.WithTransactionResult(ctx, s.Database(), func(tx *gorm.DB) (basket.QueuedEvent, error) {
		updates := map[string]any{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": errorText(cause),
			"updated_at": time.Now().UTC(),
		}
		if deadAt != nil {
			updates["dead_lettered_at"] = *deadAt
		}

		res := tx.Model(&BasketEventModel{}).Where("id = ?", event.ID()).UpdateColumns(updates)
		if res.Error != nil {
			return basket.QueuedEvent{}, fmt.Errorf("record failure of basket event %d: %w", event.ID(), res.Error)
		}
		if res.RowsAffected == 0 {
			return basket.QueuedEvent{}, fmt.Errorf("%w: basket event %d", database.ErrNotFound, event.ID())
		}

		var model BasketEventModel
		if err := tx.Where("id = ?", event.ID()).First(&model).Error; err != nil {
			return basket.QueuedEvent{}, fmt.Errorf("reload basket event %d: %w", event.ID(), err)
		}
		return s.Mapper().ToDomain(model)
	})
}

// FindPending returns live events in arrival order.
func (s EventStore) FindPending(ctx context.Context, options ...query.Option) ([]basket.QueuedEvent, error) {
	base := []query.Option{query.WhereNull("dead_lettered_at"), query.OrderAsc("id")}
	return s.Find(ctx, append(base, options...)...)
}

// FindDeadLettered returns events that were given up on, most recent first.
func (s EventStore) FindDeadLettered(ctx context.Context, options ...query.Option) ([]basket.QueuedEvent, error) {
	base := []query.Option{query.WhereNotNull("dead_lettered_at"), query.OrderDesc("dead_lettered_at"), query.OrderDesc("id")}
	return s.Find(ctx, append(base, options...)...)
}

// CountPending returns the number of live events.
func (s EventStore) CountPending(ctx context.Context) (int64, error) {
	return s.Count(ctx, query.WhereNull("dead_lettered_at"))
}

// CountDeadLettered returns the number of dead-lettered events.
func (s EventStore) CountDeadLettered(ctx context.Context) (int64, error) {
	return s.Count(ctx, query.WhereNotNull("dead_lettered_at"))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = strings.ToValidUTF8(msg[:maxErrorLength], "")
	}
	return msg
}
