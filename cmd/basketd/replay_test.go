package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/marketbasket/domain/basket"
)

const (
	anchor = "11111111-1111-1111-1111-111111111111"
	other  = "22222222-2222-2222-2222-222222222222"
)

func TestParseReplay_Document(t *testing.T) {
	entries, err := parseReplay(strings.NewReader(`
events:
  - product_id: ` + anchor + `
    related_products: [` + other + `]
  - product_id: ` + other + `
`))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	event, err := entries[0].event()
	require.NoError(t, err)
	assert.Equal(t, anchor, event.ProductID().String())
	require.Len(t, event.RelatedProducts(), 1)
	assert.Equal(t, other, event.RelatedProducts()[0].String())

	event, err = entries[1].event()
	require.NoError(t, err)
	assert.Empty(t, event.RelatedProducts())
}

func TestParseReplay_JSONList(t *testing.T) {
	entries, err := parseReplay(strings.NewReader(`[{"product_id": "` + anchor + `", "related_products": ["` + other + `"]}]`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, anchor, entries[0].ProductID)
}

func TestParseReplay_Empty(t *testing.T) {
	entries, err := parseReplay(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseReplay_Malformed(t *testing.T) {
	_, err := parseReplay(strings.NewReader("events: [unclosed"))
	require.Error(t, err)
}

func TestReplayEvent_InvalidID(t *testing.T) {
	_, err := replayEvent{ProductID: "not-a-uuid"}.event()
	require.ErrorIs(t, err, basket.ErrInvalidInput)
}

func TestParseReplay_DocumentWithoutEvents(t *testing.T) {
	_, err := parseReplay(strings.NewReader(`
event:
  - product_id: ` + anchor + `
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"events"`)
}

func TestParseReplay_Scalar(t *testing.T) {
	_, err := parseReplay(strings.NewReader("just text"))
	require.Error(t, err)
}

func TestParseReplay_EmptyEventsKey(t *testing.T) {
	entries, err := parseReplay(strings.NewReader("events: []\n"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
