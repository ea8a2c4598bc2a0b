// Package service holds the application services that drive the basket
// projection: applying events, queueing them per partition and answering
// summary queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/helixml/marketbasket/domain/basket"
)

// DefaultSaveAttempts is how often Apply merges and saves before giving up
// on version conflicts.
const DefaultSaveAttempts = 3

// Projection applies basket events to stored summaries. It reads through
// the store, merges, and writes back with the read version, retrying the
// whole cycle when another writer got there first.
type Projection struct {
	store    basket.SummaryStore
	merger   basket.Merger
	attempts int
	logger   *slog.Logger
}

// NewProjection creates a new Projection.
func NewProjection(store basket.SummaryStore, merger basket.Merger, logger *slog.Logger) *Projection {
	return &Projection{
		store:    store,
		merger:   merger,
		attempts: DefaultSaveAttempts,
		logger:   logger,
	}
}

// WithSaveAttempts sets how many merge-and-save cycles Apply may run.
func (p *Projection) WithSaveAttempts(n int) *Projection {
	if n > 0 {
		p.attempts = n
	}
	return p
}

// Apply folds event into its anchor's summary and persists the result.
// An event without related products changes nothing and is not written.
func (p *Projection) Apply(ctx context.Context, event basket.CartProductItemsMatched) (basket.Summary, error) {
	start := time.Now()
	anchor := event.ProductID()

	var conflict error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		merged, err := p.merger.Merge(ctx, p.store.Get, event)
		if err != nil {
			return basket.Summary{}, err
		}
		if len(event.RelatedProducts()) == 0 {
			return merged, nil
		}

		saved, err := p.store.Save(ctx, merged)
		if err == nil {
			p.logger.DebugContext(ctx, "event applied",
				slog.String("product_id", anchor.String()),
				slog.Int("relationships", saved.Len()),
				slog.Int64("version", saved.Version()),
				slog.Int("attempt", attempt),
				slog.Duration("duration", time.Since(start)),
			)
			return saved, nil
		}
		if !errors.Is(err, basket.ErrConcurrentUpdate) {
			return basket.Summary{}, err
		}

		conflict = err
		p.logger.DebugContext(ctx, "summary changed while applying, retrying",
			slog.String("product_id", anchor.String()),
			slog.Int("attempt", attempt),
		)
	}
	return basket.Summary{}, fmt.Errorf("apply event for %s: gave up after %d attempts: %w", anchor, p.attempts, conflict)
}
