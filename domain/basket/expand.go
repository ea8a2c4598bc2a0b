package basket

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultMaxProducts bounds how many distinct related products one event may
// carry. Expansion is exponential: 12 products already yield 4095 combinations.
const DefaultMaxProducts = 12

// Expander turns a basket's related products into every non-empty combination.
type Expander struct {
	maxProducts int
}

// NewExpander creates an Expander that rejects baskets with more than
// maxProducts distinct products. A bound of zero or less disables the check.
func NewExpander(maxProducts int) Expander {
	return Expander{maxProducts: maxProducts}
}

// DefaultExpander returns an Expander bounded by DefaultMaxProducts.
func DefaultExpander() Expander {
	return NewExpander(DefaultMaxProducts)
}

// MaxProducts returns the configured bound.
func (e Expander) MaxProducts() int { return e.maxProducts }

// Check returns the distinct products in first-appearance order, or
// ErrTooManyProducts when there are more than the bound allows.
func (e Expander) Check(products []uuid.UUID) ([]uuid.UUID, error) {
	distinct := distinctProducts(products)
	if e.maxProducts > 0 && len(distinct) > e.maxProducts {
		return nil, fmt.Errorf("%w: %w: %d distinct products, limit is %d",
			ErrInvalidInput, ErrTooManyProducts, len(distinct), e.maxProducts)
	}
	return distinct, nil
}

// Validate reports why event could never be applied: a missing anchor, a
// missing related product, or more distinct related products than the bound.
// Every error matches ErrInvalidInput.
func (e Expander) Validate(event CartProductItemsMatched) error {
	if event.ProductID() == uuid.Nil {
		return fmt.Errorf("%w: missing product id", ErrInvalidInput)
	}
	for i, id := range event.RelatedProducts() {
		if id == uuid.Nil {
			return fmt.Errorf("%w: related product %d is nil", ErrInvalidInput, i)
		}
	}
	_, err := e.Check(event.RelatedProducts())
	return err
}

// Expand returns all 2^n-1 non-empty combinations of the n distinct products.
// The order is depth-first over input positions, so [a b c] yields
// a, ab, abc, ac, b, bc, c.
func (e Expander) Expand(products []uuid.UUID) ([]Combination, error) {
	distinct, err := e.Check(products)
	if err != nil {
		return nil, err
	}
	if len(distinct) == 0 {
		return nil, nil
	}

	out := make([]Combination, 0, (1<<len(distinct))-1)
	prefix := make([]uuid.UUID, 0, len(distinct))

	var walk func(start int)
	walk = func(start int) {
		for i := start; i < len(distinct); i++ {
			prefix = append(prefix, distinct[i])
			out = append(out, NewCombination(prefix...))
			walk(i + 1)
			prefix = prefix[:len(prefix)-1]
		}
	}
	walk(0)

	return out, nil
}

func distinctProducts(products []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(products))
	out := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
