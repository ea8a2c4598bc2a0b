package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"HOST", "PORT", "DATA_DIR", "DB_URL", "LOG_LEVEL", "LOG_FORMAT", "API_KEYS",
	"CORS_ALLOWED_ORIGINS", "WORKER_COUNT", "POLL_INTERVAL_MS", "MAX_RELATED_PRODUCTS",
	"SAVE_RETRY_ATTEMPTS", "MAX_EVENT_ATTEMPTS",
}

// clearEnvVars unsets every variable read by EnvConfig for the duration of the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
		require.NoError(t, os.Unsetenv(v))
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	env, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", env.Host)
	assert.Equal(t, 8080, env.Port)
	assert.Equal(t, "INFO", env.LogLevel)
	assert.Equal(t, "pretty", env.LogFormat)
	assert.Equal(t, 4, env.WorkerCount)
	assert.Equal(t, 500, env.PollIntervalMS)
	assert.Equal(t, 12, env.MaxRelatedProducts)
	assert.Equal(t, 3, env.SaveRetryAttempts)
	assert.Equal(t, 5, env.MaxEventAttempts)
	assert.Empty(t, env.APIKeys)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("API_KEYS", " a, b ,,c")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("POLL_INTERVAL_MS", "50")
	t.Setenv("MAX_RELATED_PRODUCTS", "0")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.ToAppConfig()

	assert.Equal(t, 9090, cfg.Port())
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, dir, cfg.DataDir())
	assert.Equal(t, "sqlite:///"+filepath.Join(dir, DefaultDBFile), cfg.DBURL())
	assert.True(t, cfg.IsSQLite())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat())
	assert.Equal(t, "DEBUG", cfg.LogLevel())
	assert.Equal(t, []string{"a", "b", "c"}, cfg.APIKeys())
	assert.Equal(t, []string{"https://shop.example"}, cfg.CORSAllowedOrigins())
	assert.Equal(t, 8, cfg.WorkerCount())
	assert.Equal(t, 50*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 0, cfg.MaxRelatedProducts())
}

func TestLoadFromEnv_InvalidNumber(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("WORKER_COUNT", "many")

	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadConfig_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnvVars(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7000\nDB_URL=postgres://u:p@db/basket\n"), 0o600))
	t.Setenv("PORT", "7100")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Port())
	assert.Equal(t, "postgres://u:p@db/basket", cfg.DBURL())
	assert.False(t, cfg.IsSQLite())
}

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
