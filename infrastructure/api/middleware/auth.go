package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries the API key on write requests.
const APIKeyHeader = "X-API-KEY"

// AuthConfig holds the accepted API keys. With no keys, auth is disabled.
type AuthConfig struct {
	keys [][]byte
}

// NewAuthConfigWithKeys creates an AuthConfig. Blank keys are ignored.
func NewAuthConfigWithKeys(keys []string) AuthConfig {
	cfg := AuthConfig{}
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" {
			cfg.keys = append(cfg.keys, []byte(k))
		}
	}
	return cfg
}

// Enabled reports whether any key is configured.
func (c AuthConfig) Enabled() bool { return len(c.keys) > 0 }

// Valid reports whether key is one of the configured keys.
func (c AuthConfig) Valid(key string) bool {
	candidate := []byte(key)
	valid := 0
	for _, k := range c.keys {
		valid |= subtle.ConstantTimeCompare(k, candidate)
	}
	return valid == 1
}

// WriteProtect requires a valid API key on mutating requests. GET, HEAD and
// OPTIONS pass through, as does everything when auth is disabled.
func WriteProtect(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if !config.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				WriteError(w, r, NewAuthenticationError("missing "+APIKeyHeader+" header"), nil)
				return
			}
			if !config.Valid(key) {
				WriteError(w, r, NewAuthenticationError("invalid API key"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
