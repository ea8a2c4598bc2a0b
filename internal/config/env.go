package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds environment-based configuration.
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir holds the default SQLite database.
	// Env: DATA_DIR (default: ~/.marketbasket)
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the database connection URL.
	// Env: DB_URL (default: sqlite:///{data_dir}/basket.db)
	DBURL string `envconfig:"DB_URL"`

	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// Env: LOG_FORMAT, pretty or json (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// APIKeys is a comma-separated list of keys accepted on write endpoints.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	// Env: CORS_ALLOWED_ORIGINS
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS"`

	// WorkerCount is the number of projection partitions, one goroutine each.
	// Env: WORKER_COUNT (default: 4)
	WorkerCount int `envconfig:"WORKER_COUNT" default:"4"`

	// PollIntervalMS is the idle worker poll interval in milliseconds.
	// Env: POLL_INTERVAL_MS (default: 500)
	PollIntervalMS int `envconfig:"POLL_INTERVAL_MS" default:"500"`

	// MaxRelatedProducts bounds distinct related products per event; 0 disables.
	// Env: MAX_RELATED_PRODUCTS (default: 12)
	MaxRelatedProducts int `envconfig:"MAX_RELATED_PRODUCTS" default:"12"`

	// Env: SAVE_RETRY_ATTEMPTS (default: 3)
	SaveRetryAttempts int `envconfig:"SAVE_RETRY_ATTEMPTS" default:"3"`

	// Env: MAX_EVENT_ATTEMPTS (default: 5)
	MaxEventAttempts int `envconfig:"MAX_EVENT_ATTEMPTS" default:"5"`
}

// LoadFromEnv reads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	opts := []AppConfigOption{
		WithWorkerCount(e.WorkerCount),
		WithPollInterval(time.Duration(e.PollIntervalMS) * time.Millisecond),
		WithMaxRelatedProducts(e.MaxRelatedProducts),
		WithAPIKeys(ParseList(e.APIKeys)),
		WithCORSAllowedOrigins(ParseList(e.CORSAllowedOrigins)),
	}
	if e.Host != "" {
		opts = append(opts, WithHost(e.Host))
	}
	if e.Port != 0 {
		opts = append(opts, WithPort(e.Port))
	}
	if e.DataDir != "" {
		opts = append(opts, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		opts = append(opts, WithLogLevel(strings.ToUpper(e.LogLevel)))
	}
	if e.LogFormat != "" {
		opts = append(opts, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.SaveRetryAttempts > 0 {
		opts = append(opts, WithSaveRetryAttempts(e.SaveRetryAttempts))
	}
	if e.MaxEventAttempts > 0 {
		opts = append(opts, WithMaxEventAttempts(e.MaxEventAttempts))
	}
	return NewAppConfigWithOptions(opts...)
}

func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
