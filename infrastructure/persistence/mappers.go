package persistence

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/helixml/marketbasket/domain/basket"
)

// SummaryMapper maps summary headers. Relationships are loaded separately.
type SummaryMapper struct{}

// ToDomain converts a ProductSummaryModel to a summary without relationships.
func (SummaryMapper) ToDomain(e ProductSummaryModel) (basket.Summary, error) {
	id, err := uuid.Parse(e.ProductID)
	if err != nil {
		return basket.Summary{}, fmt.Errorf("product id %q: %w", e.ProductID, err)
	}
	return basket.ReconstructSummary(id, nil, e.Version, e.CreatedAt, e.UpdatedAt), nil
}

// ToModel converts a summary to its header row.
func (SummaryMapper) ToModel(s basket.Summary) ProductSummaryModel {
	return ProductSummaryModel{
		ProductID: s.ProductID().String(),
		Version:   s.Version(),
		CreatedAt: s.CreatedAt(),
		UpdatedAt: s.UpdatedAt(),
	}
}

// RelationshipMapper maps relationship rows.
type RelationshipMapper struct{}

// ToDomain converts a row to a relationship, checking the stored key
// against the stored member list.
func (RelationshipMapper) ToDomain(e ProductRelationshipModel) (basket.Relationship, error) {
	ids, err := parseIDs(e.Products)
	if err != nil {
		return basket.Relationship{}, fmt.Errorf("relationship %d: %w", e.ID, err)
	}
	c := basket.NewCombination(ids...)
	if c.Key() != e.CombinationKey {
		return basket.Relationship{}, fmt.Errorf("relationship %d: key %q does not match products", e.ID, e.CombinationKey)
	}
	return basket.NewRelationship(c, e.BasketCount), nil
}

// ToModel converts a relationship for productID to a row. ID and timestamps
// are left for the database.
func (RelationshipMapper) ToModel(productID uuid.UUID, r basket.Relationship) ProductRelationshipModel {
	c := r.Combination()
	return ProductRelationshipModel{
		ProductID:      productID.String(),
		CombinationKey: c.Key(),
		Products:       formatIDs(c.Products()),
		Size:           c.Size(),
		BasketCount:    r.BasketCount(),
	}
}

// EventMapper maps inbox rows.
type EventMapper struct{}

// ToDomain converts an inbox row to a queued event.
func (EventMapper) ToDomain(e BasketEventModel) (basket.QueuedEvent, error) {
	anchor, err := uuid.Parse(e.ProductID)
	if err != nil {
		return basket.QueuedEvent{}, fmt.Errorf("event %d product id: %w", e.ID, err)
	}
	related, err := parseIDs(e.RelatedProducts)
	if err != nil {
		return basket.QueuedEvent{}, fmt.Errorf("event %d: %w", e.ID, err)
	}
	return basket.ReconstructQueuedEvent(
		e.ID,
		basket.NewCartProductItemsMatched(anchor, related...),
		e.PartitionKey,
		e.Attempts,
		e.LastError,
		e.DeadLetteredAt,
		e.CreatedAt,
		e.UpdatedAt,
	), nil
}

// ToModel converts a queued event to an inbox row.
func (EventMapper) ToModel(q basket.QueuedEvent) BasketEventModel {
	m := BasketEventModel{
		ID:              q.ID(),
		ProductID:       q.Event().ProductID().String(),
		RelatedProducts: formatIDs(q.Event().RelatedProducts()),
		PartitionKey:    q.Partition(),
		Attempts:        q.Attempts(),
		LastError:       q.LastError(),
		CreatedAt:       q.CreatedAt(),
		UpdatedAt:       q.UpdatedAt(),
	}
	if at, ok := q.DeadLetteredAt(); ok {
		m.DeadLetteredAt = &at
	}
	return m
}

func parseIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(values))
	for i, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("product id %q: %w", v, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func formatIDs(ids []uuid.UUID) datatypes.JSONSlice[string] {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return datatypes.NewJSONSlice(out)
}
