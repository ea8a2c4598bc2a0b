package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/domain/query"
)

// SummaryListParams configures summary listing.
type SummaryListParams struct {
	Limit  int
	Offset int
}

// Summaries answers read queries over stored summaries.
type Summaries struct {
	store basket.SummaryStore
}

// NewSummaries creates a new Summaries service.
func NewSummaries(store basket.SummaryStore) *Summaries {
	return &Summaries{store: store}
}

// Get returns the summary of productID; it is empty when the product has not been seen.
func (s *Summaries) Get(ctx context.Context, productID uuid.UUID) (basket.Summary, error) {
	return s.store.Get(ctx, productID)
}

// List returns summary headers, most recently updated first.
func (s *Summaries) List(ctx context.Context, params *SummaryListParams) ([]basket.Summary, error) {
	options := []query.Option{query.OrderDesc("updated_at"), query.OrderAsc("product_id")}
	if params != nil && params.Limit > 0 {
		options = append(options, query.WithLimit(params.Limit), query.WithOffset(params.Offset))
	}
	return s.store.Find(ctx, options...)
}

// Count returns the number of stored summaries.
func (s *Summaries) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// Related returns the combinations most often bought with productID.
func (s *Summaries) Related(ctx context.Context, productID uuid.UUID, filter basket.RelatedFilter) ([]basket.Relationship, error) {
	summary, err := s.store.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	return summary.Related(filter), nil
}
