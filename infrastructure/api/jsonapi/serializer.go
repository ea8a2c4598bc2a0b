package jsonapi

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/helixml/marketbasket/domain/basket"
)

// Resource types.
const (
	TypeSummary      = "summary"
	TypeRelationship = "relationship"
	TypeEvent        = "basket_event"
)

// SummaryAttributes represents a product summary in JSON:API format.
// Relationships are only present on single-summary documents.
type SummaryAttributes struct {
	ProductID     string                   `json:"product_id"`
	Version       int64                    `json:"version"`
	Relationships []RelationshipAttributes `json:"relationships,omitempty"`
	CreatedAt     *time.Time               `json:"created_at,omitempty"`
	UpdatedAt     *time.Time               `json:"updated_at,omitempty"`
}

// RelationshipAttributes represents a combination and its basket count.
type RelationshipAttributes struct {
	Products    []string `json:"products"`
	Size        int      `json:"size"`
	BasketCount int64    `json:"basket_count"`
}

// EventAttributes represents a queued basket event.
type EventAttributes struct {
	ProductID       string     `json:"product_id"`
	RelatedProducts []string   `json:"related_products"`
	Partition       int        `json:"partition"`
	Attempts        int        `json:"attempts"`
	LastError       string     `json:"last_error,omitempty"`
	DeadLetteredAt  *time.Time `json:"dead_lettered_at,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Serializer converts domain objects to JSON:API resources.
type Serializer struct{}

// NewSerializer creates a new Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// SummaryResource converts a summary, including its relationships, to a resource.
func (s *Serializer) SummaryResource(summary basket.Summary) *Resource {
	attrs := s.summaryAttributes(summary)
	attrs.Relationships = make([]RelationshipAttributes, 0, summary.Len())
	for _, r := range summary.Relationships() {
		attrs.Relationships = append(attrs.Relationships, relationshipAttributes(r))
	}
	return NewResource(TypeSummary, summary.ProductID().String(), attrs)
}

// SummaryHeaderResources converts summaries to resources without relationships.
func (s *Serializer) SummaryHeaderResources(summaries []basket.Summary) []*Resource {
	resources := make([]*Resource, len(summaries))
	for i, summary := range summaries {
		resources[i] = NewResource(TypeSummary, summary.ProductID().String(), s.summaryAttributes(summary))
	}
	return resources
}

func (s *Serializer) summaryAttributes(summary basket.Summary) *SummaryAttributes {
	return &SummaryAttributes{
		ProductID: summary.ProductID().String(),
		Version:   summary.Version(),
		CreatedAt: timePtr(summary.CreatedAt()),
		UpdatedAt: timePtr(summary.UpdatedAt()),
	}
}

// RelationshipResources converts relationships to resources keyed by combination.
func (s *Serializer) RelationshipResources(relationships []basket.Relationship) []*Resource {
	resources := make([]*Resource, len(relationships))
	for i, r := range relationships {
		resources[i] = NewResource(TypeRelationship, r.Combination().Key(), relationshipAttributes(r))
	}
	return resources
}

// EventResource converts a queued event to a resource.
func (s *Serializer) EventResource(q basket.QueuedEvent) *Resource {
	attrs := &EventAttributes{
		ProductID:       q.Event().ProductID().String(),
		RelatedProducts: idStrings(q.Event().RelatedProducts()),
		Partition:       q.Partition(),
		Attempts:        q.Attempts(),
		LastError:       q.LastError(),
		CreatedAt:       timePtr(q.CreatedAt()),
		UpdatedAt:       timePtr(q.UpdatedAt()),
	}
	if at, ok := q.DeadLetteredAt(); ok {
		attrs.DeadLetteredAt = &at
	}
	return NewResource(TypeEvent, strconv.FormatInt(q.ID(), 10), attrs)
}

// EventResources converts queued events to resources.
func (s *Serializer) EventResources(events []basket.QueuedEvent) []*Resource {
	resources := make([]*Resource, len(events))
	for i, q := range events {
		resources[i] = s.EventResource(q)
	}
	return resources
}

func relationshipAttributes(r basket.Relationship) RelationshipAttributes {
	return RelationshipAttributes{
		Products:    idStrings(r.Combination().Products()),
		Size:        r.Combination().Size(),
		BasketCount: r.BasketCount(),
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
