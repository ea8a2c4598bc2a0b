package basket

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SummaryLookup fetches the current summary for a product. It must return
// NewSummary(productID) rather than an error when nothing is stored yet.
type SummaryLookup func(ctx context.Context, productID uuid.UUID) (Summary, error)

// Merger folds basket events into product summaries.
//
// A Merger never persists anything and never retries. Two merges for the
// same anchor running concurrently may both read the same summary; callers
// must serialize updates per anchor product.
type Merger struct {
	expander Expander
}

// NewMerger creates a Merger using expander to enumerate combinations.
func NewMerger(expander Expander) Merger {
	return Merger{expander: expander}
}

// Expander returns the expander used by the merger.
func (m Merger) Expander() Expander { return m.expander }

// Merge returns the anchor's summary with the event applied: every stored
// relationship whose combination appears in the event is incremented, every
// unseen combination is appended with a count of one, and the rest are
// carried forward unchanged. The summary returned by lookup is not modified.
//
// Errors from lookup are returned as they are. If ctx is canceled before or
// after the lookup, the error matches both ErrCanceled and context.Canceled.
func (m Merger) Merge(ctx context.Context, lookup SummaryLookup, event CartProductItemsMatched) (Summary, error) {
	if err := m.expander.Validate(event); err != nil {
		return Summary{}, err
	}
	anchor := event.ProductID()

	combinations, err := m.expander.Expand(event.RelatedProducts())
	if err != nil {
		return Summary{}, err
	}

	if err := canceled(ctx, nil); err != nil {
		return Summary{}, err
	}

	current, err := lookup(ctx, anchor)
	if err != nil {
		if cerr := canceled(ctx, err); cerr != nil {
			return Summary{}, cerr
		}
		return Summary{}, err
	}
	if err := canceled(ctx, nil); err != nil {
		return Summary{}, err
	}

	if current.ProductID() != anchor {
		return Summary{}, fmt.Errorf("%w: expected %s, got %s", ErrAnchorMismatch, anchor, current.ProductID())
	}

	if len(combinations) == 0 {
		return current, nil
	}

	relationships, changed := reconcile(current.relationships, combinations)
	return current.withChanges(relationships, changed), nil
}

// Merge applies event using an expander bounded by DefaultMaxProducts.
func Merge(ctx context.Context, lookup SummaryLookup, event CartProductItemsMatched) (Summary, error) {
	return NewMerger(DefaultExpander()).Merge(ctx, lookup, event)
}

// reconcile returns the merged relationships and the keys of those it
// incremented or added.
func reconcile(existing []Relationship, combinations []Combination) ([]Relationship, map[string]struct{}) {
	changed := make(map[string]struct{}, len(combinations))
	for _, c := range combinations {
		changed[c.Key()] = struct{}{}
	}

	pending := make(map[string]Combination, len(combinations))
	for _, c := range combinations {
		pending[c.Key()] = c
	}

	out := make([]Relationship, 0, len(existing)+len(combinations))
	for _, r := range existing {
		if _, ok := pending[r.combination.Key()]; ok {
			out = append(out, r.Increment())
			delete(pending, r.combination.Key())
			continue
		}
		out = append(out, r)
	}

	for _, c := range combinations {
		if _, ok := pending[c.Key()]; ok {
			out = append(out, NewRelationship(c, 1))
		}
	}
	return out, changed
}

// canceled reports a cancellation observed on ctx or carried by err.
// Deadlines are timeouts rather than cancellations and are not reported.
func canceled(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return canceledError{cause: ctx.Err()}
	}
	if err != nil && errors.Is(err, context.Canceled) {
		return canceledError{cause: err}
	}
	return nil
}
