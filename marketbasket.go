// Package marketbasket maintains "frequently bought together" summaries
// from basket events.
//
// Every time a product is bought, the other products in the same basket are
// expanded into all of their combinations, and the anchor product's summary
// counts how many baskets contained each combination.
//
// Basic usage:
//
//	client, err := marketbasket.New(
//	    marketbasket.WithSQLite(".marketbasket/basket.db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Queue an event for the background worker
//	_, err = client.Events.Enqueue(ctx, basket.NewCartProductItemsMatched(shoes, socks, laces))
//
//	// Or apply one synchronously
//	summary, err := client.Apply(ctx, basket.NewCartProductItemsMatched(shoes, socks))
//
//	// Ask what is bought with shoes
//	related, err := client.Summaries.Related(ctx, shoes, basket.RelatedFilter{Limit: 5})
package marketbasket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/helixml/marketbasket/application/service"
	"github.com/helixml/marketbasket/domain/basket"
	"github.com/helixml/marketbasket/infrastructure/persistence"
	"github.com/helixml/marketbasket/internal/database"
)

// ErrNoDatabase is returned by New when no database option was given.
var ErrNoDatabase = errors.New("marketbasket: no database configured")

// Client is the main entry point for the marketbasket library.
// Unless WithoutWorker is given, the background worker starts on creation.
//
// Access resources via struct fields:
//
//	client.Summaries.Get(ctx, productID)
//	client.Events.Enqueue(ctx, event)
type Client struct {
	Summaries  *service.Summaries
	Events     *service.Queue
	Projection *service.Projection

	db     database.Database
	worker *service.Worker

	logger  *slog.Logger
	dataDir string
	apiKeys []string
	closed  atomic.Bool
	mu      sync.Mutex
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.databaseURL == "" {
		return nil, ErrNoDatabase
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.dataDir != "" {
		if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}

	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}

	expander := basket.NewExpander(cfg.maxRelatedProducts)
	summaryStore := persistence.NewSummaryStore(db)
	eventStore := persistence.NewEventStore(db)

	projection := service.NewProjection(summaryStore, basket.NewMerger(expander), logger).
		WithSaveAttempts(cfg.saveAttempts)
	queue := service.NewQueue(eventStore, expander, cfg.workerCount, logger)
	worker := service.NewWorker(eventStore, projection, cfg.workerCount, logger).
		WithPollPeriod(cfg.workerPollPeriod).
		WithMaxAttempts(cfg.maxEventAttempts)

	// Partition assignment depends on the worker count, which may have
	// changed since the events were queued.
	if _, err := queue.Rebalance(ctx); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("rebalance inbox: %w", err), errClose)
	}

	client := &Client{
		Summaries:  service.NewSummaries(summaryStore),
		Events:     queue,
		Projection: projection,
		db:         db,
		worker:     worker,
		logger:     logger,
		dataDir:    cfg.dataDir,
		apiKeys:    cfg.apiKeys,
	}

	if cfg.startWorker {
		worker.Start(ctx)
	}

	logger.Info("marketbasket client ready",
		slog.Int("partitions", cfg.workerCount),
		slog.Int("max_related_products", expander.MaxProducts()),
		slog.Bool("worker", cfg.startWorker),
	)
	return client, nil
}

// Apply projects event synchronously, bypassing the inbox.
//
// Apply must not be used for products whose events are also queued while the
// worker runs: the worker and the caller would both write the summary, and
// only the version check keeps them from losing updates.
func (c *Client) Apply(ctx context.Context, event basket.CartProductItemsMatched) (basket.Summary, error) {
	if c.closed.Load() {
		return basket.Summary{}, service.ErrClientClosed
	}
	return c.Projection.Apply(ctx, event)
}

// Drain returns once every queued event has been applied or dead-lettered.
// Without a running worker the events are processed by the caller.
func (c *Client) Drain(ctx context.Context) error {
	if c.closed.Load() {
		return service.ErrClientClosed
	}
	return c.worker.Drain(ctx)
}

// WorkerRunning reports whether the background worker is active.
func (c *Client) WorkerRunning() bool {
	return c.worker.Running()
}

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return service.ErrClientClosed
	}
	return c.db.Ping(ctx)
}

// APIKeys returns the keys that guard write endpoints.
func (c *Client) APIKeys() []string {
	return append([]string(nil), c.apiKeys...)
}

// DataDir returns the data directory, if one was configured.
func (c *Client) DataDir() string {
	return c.dataDir
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Close stops the background worker and closes the database.
// Queued events stay in the inbox for the next start.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return service.ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.worker.Stop()

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	c.logger.Info("marketbasket client closed")
	return nil
}
