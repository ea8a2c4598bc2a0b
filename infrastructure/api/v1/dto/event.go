// Package dto holds request bodies accepted by the v1 API.
package dto

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/helixml/marketbasket/domain/basket"
)

// EventCreateRequest is the body of POST /api/v1/events: ProductID was
// bought in a basket together with RelatedProducts.
type EventCreateRequest struct {
	ProductID       string   `json:"product_id"`
	RelatedProducts []string `json:"related_products"`
}

// EventBatchRequest is the body of POST /api/v1/events/batch.
type EventBatchRequest struct {
	Events []EventCreateRequest `json:"events"`
}

// Event parses the request into a domain event. Malformed IDs are reported
// as basket.ErrInvalidInput.
func (r EventCreateRequest) Event() (basket.CartProductItemsMatched, error) {
	if r.ProductID == "" {
		return basket.CartProductItemsMatched{}, fmt.Errorf("%w: product_id is required", basket.ErrInvalidInput)
	}
	anchor, err := uuid.Parse(r.ProductID)
	if err != nil {
		return basket.CartProductItemsMatched{}, fmt.Errorf("%w: product_id: %w", basket.ErrInvalidInput, err)
	}

	related := make([]uuid.UUID, 0, len(r.RelatedProducts))
	var errs []error
	for i, raw := range r.RelatedProducts {
		id, err := uuid.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("related_products[%d]: %w", i, err))
			continue
		}
		related = append(related, id)
	}
	if len(errs) > 0 {
		return basket.CartProductItemsMatched{}, fmt.Errorf("%w: %w", basket.ErrInvalidInput, errors.Join(errs...))
	}
	return basket.NewCartProductItemsMatched(anchor, related...), nil
}
