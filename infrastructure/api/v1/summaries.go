package v1

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixml/marketbasket"
	"github.com/helixml/marketbasket/application/service"
	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/api/jsonapi"
	"github.com/helixml/marketbasket/infrastructure/api/middleware"
)

// DefaultRelatedLimit is the number of related combinations returned when
// no limit is given.
const DefaultRelatedLimit = 10

// SummariesRouter handles read-only summary endpoints.
type SummariesRouter struct {
	client     *marketbasket.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewSummariesRouter creates a new SummariesRouter.
func NewSummariesRouter(client *marketbasket.Client) *SummariesRouter {
	return &SummariesRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for summary endpoints.
func (r *SummariesRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Get("/{product_id}", r.Get)
	router.Get("/{product_id}/related", r.Related)

	return router
}

// List handles GET /api/v1/summaries: summary headers, most recently
// updated first, without relationships.
func (r *SummariesRouter) List(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	pagination, err := ParsePagination(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	summaries, err := r.client.Summaries.List(ctx, &service.SummaryListParams{
		Limit:  pagination.Limit(),
		Offset: pagination.Offset(),
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	total, err := r.client.Summaries.Count(ctx)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	meta, links := paginate(req, pagination, total)
	middleware.WriteDocument(w, http.StatusOK,
		jsonapi.NewListResponse(r.serializer.SummaryHeaderResources(summaries)).WithMeta(meta).WithLinks(links))
}

// Get handles GET /api/v1/summaries/{product_id}. A product that has never
// been an anchor has an empty summary at version 0.
func (r *SummariesRouter) Get(w http.ResponseWriter, req *http.Request) {
	productID, err := productIDParam(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	summary, err := r.client.Summaries.Get(req.Context(), productID)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteDocument(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.SummaryResource(summary)))
}

// Related handles GET /api/v1/summaries/{product_id}/related: the
// combinations most often bought with the product.
//
// Query parameters: size (exact combination size), min_count and limit
// (default 10).
func (r *SummariesRouter) Related(w http.ResponseWriter, req *http.Request) {
	productID, err := productIDParam(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	filter, err := parseRelatedFilter(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	related, err := r.client.Summaries.Related(req.Context(), productID, filter)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	doc := jsonapi.NewListResponse(r.serializer.RelationshipResources(related)).WithMeta(&jsonapi.Meta{
		"product_id": productID.String(),
		"count":      len(related),
	})
	middleware.WriteDocument(w, http.StatusOK, doc)
}

func parseRelatedFilter(req *http.Request) (basket.RelatedFilter, error) {
	filter := basket.RelatedFilter{Limit: DefaultRelatedLimit}

	size, err := positiveParam(req, "size")
	if err != nil {
		return basket.RelatedFilter{}, err
	}
	filter.MinSize, filter.MaxSize = size, size

	minCount, err := positiveParam(req, "min_count")
	if err != nil {
		return basket.RelatedFilter{}, err
	}
	filter.MinCount = int64(minCount)

	limit, err := positiveParam(req, "limit")
	if err != nil {
		return basket.RelatedFilter{}, err
	}
	if limit > 0 {
		filter.Limit = min(limit, MaxPageSize)
	}
	return filter, nil
}

func productIDParam(req *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(req, "product_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, middleware.NewAPIError(http.StatusBadRequest, fmt.Sprintf("invalid product id %q", raw), nil)
	}
	return id, nil
}
