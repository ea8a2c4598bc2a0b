package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/persistence"
	"github.com/helixml/marketbasket/internal/testdb"
)

func newTestSummaries(t *testing.T) (*Summaries, *Projection) {
	t.Helper()
	store := persistence.NewSummaryStore(testdb.New(t))
	return NewSummaries(store), newTestProjection(store)
}

func TestSummaries_GetUnknownProductIsEmpty(t *testing.T) {
	s, _ := newTestSummaries(t)

	got, err := s.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, got.Len())
	assert.True(t, got.IsNew())
}

func TestSummaries_ListAndCount(t *testing.T) {
	ctx := context.Background()
	s, p := newTestSummaries(t)

	for _, anchor := range []uuid.UUID{p1, p2, p3} {
		_, err := p.Apply(ctx, basket.NewCartProductItemsMatched(anchor, uuid.New()))
		require.NoError(t, err)
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := s.List(ctx, &SummaryListParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestSummaries_Related(t *testing.T) {
	ctx := context.Background()
	s, p := newTestSummaries(t)

	for _, related := range [][]uuid.UUID{{p2, p3}, {p3}, {p3}} {
		_, err := p.Apply(ctx, basket.NewCartProductItemsMatched(p1, related...))
		require.NoError(t, err)
	}

	got, err := s.Related(ctx, p1, basket.RelatedFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, basket.NewCombination(p3).Key(), got[0].Combination().Key())
	assert.Equal(t, int64(3), got[0].BasketCount())
}
