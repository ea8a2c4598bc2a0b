// Package v1 provides the v1 API routes.
package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/marketbasket"
	"github.com/helixml/marketbasket/application/service"
	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/api/jsonapi"
	"github.com/helixml/marketbasket/infrastructure/api/middleware"
	"github.com/helixml/marketbasket/infrastructure/api/v1/dto"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// MaxBatchSize is the largest number of events accepted in one batch.
const MaxBatchSize = 500

// EventsRouter handles the event inbox endpoints.
type EventsRouter struct {
	client     *marketbasket.Client
	serializer *jsonapi.Serializer
	logger     *slog.Logger
}

// NewEventsRouter creates a new EventsRouter.
func NewEventsRouter(client *marketbasket.Client) *EventsRouter {
	return &EventsRouter{
		client:     client,
		serializer: jsonapi.NewSerializer(),
		logger:     client.Logger(),
	}
}

// Routes returns the chi router for event endpoints.
func (r *EventsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Post("/batch", r.CreateBatch)
	router.Get("/dead", r.ListDeadLettered)
	router.Get("/{id}", r.Get)

	return router
}

// Create handles POST /api/v1/events. The event is queued for projection
// and the response is 202 Accepted with the queued event.
func (r *EventsRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body dto.EventCreateRequest
	if err := decodeBody(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	event, err := body.Event()
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	queued, err := r.client.Events.Enqueue(req.Context(), event)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteDocument(w, http.StatusAccepted, jsonapi.NewSingleResponse(r.serializer.EventResource(queued)))
}

// CreateBatch handles POST /api/v1/events/batch. Events are queued in
// request order, all or none.
func (r *EventsRouter) CreateBatch(w http.ResponseWriter, req *http.Request) {
	var body dto.EventBatchRequest
	if err := decodeBody(w, req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if len(body.Events) > MaxBatchSize {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest,
			fmt.Sprintf("batch holds %d events, limit is %d", len(body.Events), MaxBatchSize), nil), r.logger)
		return
	}

	events := make([]basket.CartProductItemsMatched, len(body.Events))
	for i, item := range body.Events {
		event, err := item.Event()
		if err != nil {
			middleware.WriteError(w, req, fmt.Errorf("events[%d]: %w", i, err), r.logger)
			return
		}
		events[i] = event
	}

	queued, err := r.client.Events.EnqueueBatch(req.Context(), events)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteDocument(w, http.StatusAccepted, jsonapi.NewListResponse(r.serializer.EventResources(queued)))
}

// List handles GET /api/v1/events: pending events in arrival order.
func (r *EventsRouter) List(w http.ResponseWriter, req *http.Request) {
	r.list(w, req, r.client.Events.List, r.client.Events.Count)
}

// ListDeadLettered handles GET /api/v1/events/dead: events that were given
// up on, most recent first.
func (r *EventsRouter) ListDeadLettered(w http.ResponseWriter, req *http.Request) {
	r.list(w, req, r.client.Events.DeadLettered, r.client.Events.CountDeadLettered)
}

func (r *EventsRouter) list(
	w http.ResponseWriter,
	req *http.Request,
	find func(ctx context.Context, params *service.EventListParams) ([]basket.QueuedEvent, error),
	count func(ctx context.Context) (int64, error),
) {
	ctx := req.Context()
	pagination, err := ParsePagination(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	events, err := find(ctx, &service.EventListParams{Limit: pagination.Limit(), Offset: pagination.Offset()})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	total, err := count(ctx)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	meta, links := paginate(req, pagination, total)
	middleware.WriteDocument(w, http.StatusOK,
		jsonapi.NewListResponse(r.serializer.EventResources(events)).WithMeta(meta).WithLinks(links))
}

// Get handles GET /api/v1/events/{id}. Applied events are removed from the
// inbox, so a 404 means the event was applied or never existed.
func (r *EventsRouter) Get(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid event id", err), r.logger)
		return
	}

	queued, err := r.client.Events.Get(req.Context(), id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteDocument(w, http.StatusOK, jsonapi.NewSingleResponse(r.serializer.EventResource(queued)))
}

// decodeBody decodes a bounded JSON body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err)
	}
	return nil
}
