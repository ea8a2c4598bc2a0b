package marketbasket

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/helixml/marketbasket/application/service"
	"github.com/helixml/marketbasket/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	databaseURL        string
	dataDir            string
	logger             *slog.Logger
	apiKeys            []string
	workerCount        int
	workerPollPeriod   time.Duration
	maxRelatedProducts int
	saveAttempts       int
	maxEventAttempts   int
	startWorker        bool
}

func newClientConfig() *clientConfig {
	return &clientConfig{
		workerCount:        config.DefaultWorkerCount,
		workerPollPeriod:   service.DefaultPollPeriod,
		maxRelatedProducts: config.DefaultMaxRelatedProducts,
		saveAttempts:       config.DefaultSaveRetryAttempts,
		maxEventAttempts:   config.DefaultMaxEventAttempts,
		startWorker:        true,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithSQLite stores summaries and the inbox in a SQLite file.
// Use ":memory:" for a throwaway database.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.databaseURL = "sqlite:///" + path
	}
}

// WithPostgres stores summaries and the inbox in PostgreSQL.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.databaseURL = dsn
	}
}

// WithDatabaseURL sets the database from a sqlite:/// or postgres:// URL.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.databaseURL = url
	}
}

// WithDataDir sets the data directory. It is created if missing, and holds
// the SQLite database unless another database option is given.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
		if c.databaseURL == "" {
			c.databaseURL = "sqlite:///" + filepath.Join(dir, config.DefaultDBFile)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithAPIKeys sets the keys accepted on write endpoints.
func WithAPIKeys(keys ...string) Option {
	return func(c *clientConfig) {
		c.apiKeys = keys
	}
}

// WithWorkerCount sets the number of inbox partitions, each consumed by one goroutine.
func WithWorkerCount(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithWorkerPollPeriod sets how long an idle partition waits before polling again.
func WithWorkerPollPeriod(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.workerPollPeriod = d
		}
	}
}

// WithMaxRelatedProducts bounds the distinct related products of one event.
// Zero or less disables the bound.
func WithMaxRelatedProducts(n int) Option {
	return func(c *clientConfig) {
		c.maxRelatedProducts = n
	}
}

// WithSaveAttempts sets how often a projection retries after a version conflict.
func WithSaveAttempts(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.saveAttempts = n
		}
	}
}

// WithMaxEventAttempts sets how many failures an event may have before it is dead-lettered.
func WithMaxEventAttempts(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxEventAttempts = n
		}
	}
}

// WithoutWorker keeps the background worker stopped. Queued events are then
// only applied by Drain.
func WithoutWorker() Option {
	return func(c *clientConfig) {
		c.startWorker = false
	}
}

// WithAppConfig applies every setting of an application configuration.
func WithAppConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.dataDir = cfg.DataDir()
		c.databaseURL = cfg.DBURL()
		c.apiKeys = cfg.APIKeys()
		c.workerCount = cfg.WorkerCount()
		c.workerPollPeriod = cfg.PollInterval()
		c.maxRelatedProducts = cfg.MaxRelatedProducts()
		c.saveAttempts = cfg.SaveRetryAttempts()
		c.maxEventAttempts = cfg.MaxEventAttempts()
	}
}
