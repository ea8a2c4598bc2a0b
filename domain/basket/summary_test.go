package basket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relatedSummary() Summary {
	return ReconstructSummary(p1, []Relationship{
		NewRelationship(NewCombination(p2), 4),
		NewRelationship(NewCombination(p3), 9),
		NewRelationship(NewCombination(p2, p3), 4),
		NewRelationship(NewCombination(p4), 1),
		NewRelationship(NewCombination(p2, p3, p4), 1),
	}, 2, time.Time{}, time.Time{})
}

func TestSummary_RelatedSortsByCount(t *testing.T) {
	got := relatedSummary().Related(RelatedFilter{})
	require.Len(t, got, 5)
	assert.Equal(t, NewCombination(p3).Key(), got[0].Combination().Key())
	// equal counts: smaller combination first
	assert.Equal(t, NewCombination(p2).Key(), got[1].Combination().Key())
	assert.Equal(t, NewCombination(p2, p3).Key(), got[2].Combination().Key())
	assert.Equal(t, NewCombination(p4).Key(), got[3].Combination().Key())
}

func TestSummary_RelatedFilters(t *testing.T) {
	s := relatedSummary()

	singles := s.Related(RelatedFilter{MinSize: 1, MaxSize: 1})
	assert.Len(t, singles, 3)

	frequent := s.Related(RelatedFilter{MinCount: 4})
	assert.Len(t, frequent, 3)

	top := s.Related(RelatedFilter{Limit: 2})
	assert.Len(t, top, 2)

	pairsUp := s.Related(RelatedFilter{MinSize: 2})
	assert.Len(t, pairsUp, 2)
}

func TestSummary_RelationshipsReturnsCopy(t *testing.T) {
	s := relatedSummary()
	rels := s.Relationships()
	rels[0] = NewRelationship(NewCombination(p4), 100)

	rel, ok := s.Relationship(NewCombination(p2))
	require.True(t, ok)
	assert.Equal(t, int64(4), rel.BasketCount())
}

func TestNewSummary_IsEmpty(t *testing.T) {
	s := NewSummary(p1)
	assert.Equal(t, p1, s.ProductID())
	assert.Zero(t, s.Len())
	assert.True(t, s.IsNew())
}

func TestRelationship_Increment(t *testing.T) {
	r := NewRelationship(NewCombination(p2), 3)
	next := r.Increment()
	assert.Equal(t, int64(3), r.BasketCount())
	assert.Equal(t, int64(4), next.BasketCount())
}

func TestSummary_ChangedWithoutTrackingIsEverything(t *testing.T) {
	s := relatedSummary()
	assert.Len(t, s.Changed(), s.Len())
	assert.Len(t, s.WithRelationships(s.Relationships()[:2]).Changed(), 2)
}
