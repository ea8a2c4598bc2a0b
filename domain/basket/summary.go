package basket

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Relationship counts the baskets in which a combination appeared alongside
// the summary's anchor product.
type Relationship struct {
	combination Combination
	basketCount int64
}

// NewRelationship creates a relationship with the given count.
func NewRelationship(combination Combination, basketCount int64) Relationship {
	return Relationship{combination: combination, basketCount: basketCount}
}

// Combination returns the co-purchased products.
func (r Relationship) Combination() Combination { return r.combination }

// BasketCount returns how many baskets contained the combination.
func (r Relationship) BasketCount() int64 { return r.basketCount }

// Increment returns a copy with the count raised by one.
func (r Relationship) Increment() Relationship {
	r.basketCount++
	return r
}

// Summary is the market-basket projection for one anchor product. It never
// holds two relationships with equal combinations.
type Summary struct {
	productID     uuid.UUID
	relationships []Relationship
	version       int64
	createdAt     time.Time
	updatedAt     time.Time

	// changed holds the combination keys modified since the summary was
	// loaded or saved; nil means untracked, so every relationship counts.
	changed map[string]struct{}
}

// NewSummary returns the empty summary for a product that has not been seen yet.
func NewSummary(productID uuid.UUID) Summary {
	return Summary{productID: productID}
}

// ReconstructSummary rebuilds a summary from persistence.
func ReconstructSummary(
	productID uuid.UUID,
	relationships []Relationship,
	version int64,
	createdAt, updatedAt time.Time,
) Summary {
	return Summary{
		productID:     productID,
		relationships: slices.Clone(relationships),
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// ProductID returns the anchor product.
func (s Summary) ProductID() uuid.UUID { return s.productID }

// Relationships returns a copy of the relationships in stored order.
func (s Summary) Relationships() []Relationship {
	return slices.Clone(s.relationships)
}

// Relationship looks up the record for combination.
func (s Summary) Relationship(combination Combination) (Relationship, bool) {
	for _, r := range s.relationships {
		if r.combination.Equal(combination) {
			return r, true
		}
	}
	return Relationship{}, false
}

// Len returns the number of relationships.
func (s Summary) Len() int { return len(s.relationships) }

// Version is the optimistic concurrency token. Zero means never persisted.
func (s Summary) Version() int64 { return s.version }

// IsNew reports whether the summary has never been persisted.
func (s Summary) IsNew() bool { return s.version == 0 }

// CreatedAt returns when the summary was first persisted.
func (s Summary) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns when the summary was last persisted.
func (s Summary) UpdatedAt() time.Time { return s.updatedAt }

// WithRelationships returns a copy holding the given relationships. The copy
// does not track changes: Changed reports every relationship.
func (s Summary) WithRelationships(relationships []Relationship) Summary {
	s.relationships = slices.Clone(relationships)
	s.changed = nil
	return s
}

// withChanges is WithRelationships for a merge that modified only the
// combinations in changed. The map must not be modified afterwards.
func (s Summary) withChanges(relationships []Relationship, changed map[string]struct{}) Summary {
	s.relationships = slices.Clone(relationships)
	s.changed = changed
	return s
}

// Changed returns the relationships that must be written to persist the
// summary: those a merge incremented or added, or all of them when changes
// are not tracked.
func (s Summary) Changed() []Relationship {
	if s.changed == nil {
		return s.Relationships()
	}
	out := make([]Relationship, 0, len(s.changed))
	for _, r := range s.relationships {
		if _, ok := s.changed[r.combination.Key()]; ok {
			out = append(out, r)
		}
	}
	return out
}

// WithVersion returns a copy with the given version and timestamps. It marks
// the summary as persisted, so Changed is empty afterwards.
func (s Summary) WithVersion(version int64, createdAt, updatedAt time.Time) Summary {
	s.version = version
	s.createdAt = createdAt
	s.updatedAt = updatedAt
	s.changed = map[string]struct{}{}
	return s
}

// RelatedFilter narrows the relationships returned by Summary.Related.
// Zero values disable the corresponding bound.
type RelatedFilter struct {
	MinSize  int
	MaxSize  int
	MinCount int64
	Limit    int
}

// Related returns relationships matching filter, most frequent first. Ties
// go to smaller combinations, then to key order.
func (s Summary) Related(filter RelatedFilter) []Relationship {
	out := make([]Relationship, 0, len(s.relationships))
	for _, r := range s.relationships {
		size := r.combination.Size()
		if filter.MinSize > 0 && size < filter.MinSize {
			continue
		}
		if filter.MaxSize > 0 && size > filter.MaxSize {
			continue
		}
		if r.basketCount < filter.MinCount {
			continue
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, func(a, b Relationship) int {
		if c := cmp.Compare(b.basketCount, a.basketCount); c != 0 {
			return c
		}
		if c := cmp.Compare(a.combination.Size(), b.combination.Size()); c != 0 {
			return c
		}
		return cmp.Compare(a.combination.Key(), b.combination.Key())
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}
