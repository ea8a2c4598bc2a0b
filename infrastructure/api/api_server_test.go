package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/marketbasket"
	"github.com/helixml/marketbasket/infrastructure/api"
	"github.com/helixml/marketbasket/internal/log"
)

func newTestClient(t *testing.T, opts ...marketbasket.Option) *marketbasket.Client {
	t.Helper()
	base := []marketbasket.Option{
		marketbasket.WithDataDir(t.TempDir()),
		marketbasket.WithLogger(log.Discard()),
		marketbasket.WithWorkerPollPeriod(10 * time.Millisecond),
	}
	client, err := marketbasket.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAPIServer_ReadEndpointsOpen_WriteEndpointsProtected(t *testing.T) {
	client := newTestClient(t, marketbasket.WithAPIKeys("test-secret-key"), marketbasket.WithoutWorker())
	handler := api.NewAPIServer(client).Handler()

	body := `{"product_id":"` + uuid.NewString() + `","related_products":["` + uuid.NewString() + `"]}`

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		key    string
		want   int
	}{
		{"docs", http.MethodGet, "/docs/", "", "", http.StatusOK},
		{"liveness", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"readiness", http.MethodGet, "/health", "", "", http.StatusOK},
		{"list events", http.MethodGet, "/api/v1/events", "", "", http.StatusOK},
		{"list summaries", http.MethodGet, "/api/v1/summaries", "", "", http.StatusOK},
		{"post without key", http.MethodPost, "/api/v1/events", body, "", http.StatusUnauthorized},
		{"post with wrong key", http.MethodPost, "/api/v1/events", body, "nope", http.StatusUnauthorized},
		{"post with key", http.MethodPost, "/api/v1/events", body, "test-secret-key", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.key != "" {
				req.Header.Set("X-API-KEY", tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestAPIServer_Health(t *testing.T) {
	client := newTestClient(t, marketbasket.WithoutWorker())
	handler := api.NewAPIServer(client).Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["worker"])
	assert.InDelta(t, 0, body["pending_events"], 0)

	require.NoError(t, client.Close())
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
