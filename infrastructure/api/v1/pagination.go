package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/helixml/marketbasket/infrastructure/api/jsonapi"
	"github.com/helixml/marketbasket/infrastructure/api/middleware"
)

// DefaultPageSize is the default number of items per page.
const DefaultPageSize = 20

// MaxPageSize is the maximum allowed page size.
const MaxPageSize = 100

// PaginationParams holds page and page_size parsed from the query string.
type PaginationParams struct {
	page     int
	pageSize int
}

// ParsePagination reads page (default 1) and page_size (default 20,
// capped at 100). Values that are not positive integers are rejected.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	params := PaginationParams{page: 1, pageSize: DefaultPageSize}

	page, err := positiveParam(r, "page")
	if err != nil {
		return PaginationParams{}, err
	}
	if page > 0 {
		params.page = page
	}

	size, err := positiveParam(r, "page_size")
	if err != nil {
		return PaginationParams{}, err
	}
	if size > 0 {
		params.pageSize = min(size, MaxPageSize)
	}
	return params, nil
}

// Page returns the page number (1-indexed).
func (p PaginationParams) Page() int { return p.page }

// PageSize returns the page size.
func (p PaginationParams) PageSize() int { return p.pageSize }

// Offset returns the number of items before the page.
func (p PaginationParams) Offset() int { return (p.page - 1) * p.pageSize }

// Limit returns the page size.
func (p PaginationParams) Limit() int { return p.pageSize }

// paginate builds the document meta and links for a page out of total items.
func paginate(r *http.Request, p PaginationParams, total int64) (*jsonapi.Meta, *jsonapi.Links) {
	totalPages := int((total + int64(p.pageSize) - 1) / int64(p.pageSize))

	meta := jsonapi.Meta{
		"page":        p.page,
		"page_size":   p.pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	pageURL := func(page int) string {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(p.pageSize))
		return fmt.Sprintf("%s?%s", r.URL.Path, q.Encode())
	}

	links := jsonapi.Links{Self: pageURL(p.page), First: pageURL(1)}
	if totalPages > 0 {
		links.Last = pageURL(totalPages)
	}
	if p.page > 1 {
		links.Prev = pageURL(p.page - 1)
	}
	if p.page < totalPages {
		links.Next = pageURL(p.page + 1)
	}
	return &meta, &links
}

// positiveParam returns the named query parameter, or 0 when absent.
func positiveParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, middleware.NewAPIError(http.StatusBadRequest,
			fmt.Sprintf("query parameter %s must be a positive integer, got %q", name, raw), nil)
	}
	return n, nil
}
