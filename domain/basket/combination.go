// Package basket holds the market-basket projection core: expanding a
// basket's co-purchased products into combinations and merging them into
// the anchor product's running summary.
package basket

import (
	"bytes"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// KeySeparator joins product IDs in a combination key.
const KeySeparator = ","

// Combination is a non-empty set of distinct products that appeared in one
// basket together with an anchor product. Members are kept sorted so two
// combinations with the same members are identical regardless of input order.
type Combination struct {
	products []uuid.UUID
	key      string
}

// NewCombination builds a combination from products, dropping duplicates.
// The result is empty when no products are given.
func NewCombination(products ...uuid.UUID) Combination {
	sorted := slices.Clone(products)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	sorted = slices.Compact(sorted)

	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = p.String()
	}
	return Combination{
		products: sorted,
		key:      strings.Join(parts, KeySeparator),
	}
}

// ParseCombinationKey rebuilds a combination from its Key.
func ParseCombinationKey(key string) (Combination, error) {
	if key == "" {
		return Combination{}, nil
	}
	parts := strings.Split(key, KeySeparator)
	ids := make([]uuid.UUID, len(parts))
	for i, part := range parts {
		id, err := uuid.Parse(part)
		if err != nil {
			return Combination{}, err
		}
		ids[i] = id
	}
	return NewCombination(ids...), nil
}

// Products returns a copy of the members in canonical order.
func (c Combination) Products() []uuid.UUID {
	return slices.Clone(c.products)
}

// Size returns the number of members.
func (c Combination) Size() int { return len(c.products) }

// IsEmpty reports whether the combination has no members.
func (c Combination) IsEmpty() bool { return len(c.products) == 0 }

// Key returns the canonical, order-independent identity of the combination.
func (c Combination) Key() string { return c.key }

// Equal reports set equality.
func (c Combination) Equal(other Combination) bool { return c.key == other.key }

// Contains reports whether product is a member.
func (c Combination) Contains(product uuid.UUID) bool {
	_, found := slices.BinarySearchFunc(c.products, product, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return found
}

// String implements fmt.Stringer.
func (c Combination) String() string { return "{" + c.key + "}" }
