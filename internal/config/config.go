// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost               = "0.0.0.0"
	DefaultPort               = 8080
	DefaultLogLevel           = "INFO"
	DefaultWorkerCount        = 4
	DefaultPollInterval       = 500 * time.Millisecond
	DefaultMaxRelatedProducts = 12
	DefaultSaveRetryAttempts  = 3
	DefaultMaxEventAttempts   = 5
	DefaultDBFile             = "basket.db"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// AppConfig is the normalized, immutable application configuration.
type AppConfig struct {
	host               string
	port               int
	dataDir            string
	dbURL              string
	logLevel           string
	logFormat          LogFormat
	apiKeys            []string
	corsAllowedOrigins []string
	workerCount        int
	pollInterval       time.Duration
	maxRelatedProducts int
	saveRetryAttempts  int
	maxEventAttempts   int
}

// DefaultDataDir returns ~/.marketbasket, or a relative directory when the
// home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".marketbasket"
	}
	return filepath.Join(home, ".marketbasket")
}

// NewAppConfig creates an AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:               DefaultHost,
		port:               DefaultPort,
		dataDir:            dataDir,
		dbURL:              sqliteURL(dataDir),
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		workerCount:        DefaultWorkerCount,
		pollInterval:       DefaultPollInterval,
		maxRelatedProducts: DefaultMaxRelatedProducts,
		saveRetryAttempts:  DefaultSaveRetryAttempts,
		maxEventAttempts:   DefaultMaxEventAttempts,
	}
}

// NewAppConfigWithOptions creates an AppConfig from defaults plus opts.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	cfg := NewAppConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func sqliteURL(dataDir string) string {
	return "sqlite:///" + filepath.Join(dataDir, DefaultDBFile)
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port.
func (c AppConfig) Port() int { return c.port }

// Addr returns host:port.
func (c AppConfig) Addr() string { return fmt.Sprintf("%s:%d", c.host, c.port) }

// DataDir returns the data directory.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level name.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// APIKeys returns the keys accepted for write requests. Empty means writes are open.
func (c AppConfig) APIKeys() []string { return append([]string(nil), c.apiKeys...) }

// CORSAllowedOrigins returns the origins allowed by the HTTP API.
func (c AppConfig) CORSAllowedOrigins() []string {
	return append([]string(nil), c.corsAllowedOrigins...)
}

// WorkerCount returns the number of projection partitions.
func (c AppConfig) WorkerCount() int { return c.workerCount }

// PollInterval returns how long an idle worker waits before polling again.
func (c AppConfig) PollInterval() time.Duration { return c.pollInterval }

// MaxRelatedProducts bounds the distinct related products in one event.
func (c AppConfig) MaxRelatedProducts() int { return c.maxRelatedProducts }

// SaveRetryAttempts is how often a projection is retried on a version conflict.
func (c AppConfig) SaveRetryAttempts() int { return c.saveRetryAttempts }

// MaxEventAttempts is how often an event may fail before it is dead-lettered.
func (c AppConfig) MaxEventAttempts() int { return c.maxEventAttempts }

// IsSQLite reports whether the database URL points at SQLite.
func (c AppConfig) IsSQLite() bool { return strings.HasPrefix(c.dbURL, "sqlite:") }

// Apply returns a copy of c with opts applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns the settings worth logging at startup. API keys are
// reported by count only.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("addr", c.Addr()),
		slog.String("data_dir", c.dataDir),
		slog.Bool("sqlite", c.IsSQLite()),
		slog.Int("api_keys", len(c.apiKeys)),
		slog.Int("workers", c.workerCount),
		slog.Duration("poll_interval", c.pollInterval),
		slog.Int("max_related_products", c.maxRelatedProducts),
		slog.Int("save_retry_attempts", c.saveRetryAttempts),
		slog.Int("max_event_attempts", c.maxEventAttempts),
	}
}

// EnsureDataDir creates the data directory if it does not exist.
func (c AppConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c AppConfig) Validate() error {
	var errs []error
	if c.port <= 0 || c.port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.port))
	}
	if c.workerCount < 1 {
		errs = append(errs, fmt.Errorf("worker count must be positive, got %d", c.workerCount))
	}
	if c.saveRetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("save retry attempts must be positive, got %d", c.saveRetryAttempts))
	}
	if c.maxEventAttempts < 1 {
		errs = append(errs, fmt.Errorf("max event attempts must be positive, got %d", c.maxEventAttempts))
	}
	if c.dbURL == "" {
		errs = append(errs, errors.New("database url is empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory. A database URL still pointing at the
// default SQLite file follows the new directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		if c.dbURL == "" || c.dbURL == sqliteURL(c.dataDir) {
			c.dbURL = sqliteURL(dir)
		}
		c.dataDir = dir
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithAPIKeys sets the API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) { c.apiKeys = append([]string(nil), keys...) }
}

// WithCORSAllowedOrigins sets the allowed CORS origins.
func WithCORSAllowedOrigins(origins []string) AppConfigOption {
	return func(c *AppConfig) { c.corsAllowedOrigins = append([]string(nil), origins...) }
}

// WithWorkerCount sets the number of projection partitions. Non-positive values are ignored.
func WithWorkerCount(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.workerCount = n
		}
	}
}

// WithPollInterval sets the idle worker poll interval. Non-positive values are ignored.
func WithPollInterval(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxRelatedProducts sets the expansion bound. Zero or less disables it.
func WithMaxRelatedProducts(n int) AppConfigOption {
	return func(c *AppConfig) { c.maxRelatedProducts = n }
}

// WithSaveRetryAttempts sets the version-conflict retry budget.
func WithSaveRetryAttempts(n int) AppConfigOption {
	return func(c *AppConfig) { c.saveRetryAttempts = n }
}

// WithMaxEventAttempts sets the failures allowed before dead-lettering.
func WithMaxEventAttempts(n int) AppConfigOption {
	return func(c *AppConfig) { c.maxEventAttempts = n }
}

// ParseList splits a comma-separated list, trimming blanks.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
