package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/helixml/marketbasket"
	"github.com/helixml/marketbasket/infrastructure/api"
	"github.com/helixml/marketbasket/internal/log"
)

const testAPIKey = "e2e-secret"

// TestServer runs the full API and a live projection worker over SQLite.
type TestServer struct {
	t          *testing.T
	client     *marketbasket.Client
	httpServer *httptest.Server
}

// Document is a JSON:API response body.
type Document struct {
	Data   json.RawMessage `json:"data"`
	Meta   map[string]any  `json:"meta"`
	Links  map[string]any  `json:"links"`
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Resource is a JSON:API resource object.
type Resource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// NewTestServer creates a client with a running worker and serves its API.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	tmpDir := t.TempDir()
	client, err := marketbasket.New(
		marketbasket.WithSQLite(filepath.Join(tmpDir, "basket.db")),
		marketbasket.WithDataDir(tmpDir),
		marketbasket.WithLogger(log.Discard()),
		marketbasket.WithAPIKeys(testAPIKey),
		marketbasket.WithWorkerCount(3),
		marketbasket.WithWorkerPollPeriod(10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("create marketbasket client: %v", err)
	}

	ts := &TestServer{
		t:          t,
		client:     client,
		httpServer: httptest.NewServer(api.NewAPIServer(client).Handler()),
	}
	t.Cleanup(ts.Close)
	return ts
}

// URL returns the base URL of the test server.
func (ts *TestServer) URL() string {
	return ts.httpServer.URL
}

// Close shuts down the test server.
func (ts *TestServer) Close() {
	ts.httpServer.Close()
	_ = ts.client.Close()
}

// GET performs a GET request and returns the response.
func (ts *TestServer) GET(path string) *http.Response {
	ts.t.Helper()
	resp, err := http.Get(ts.URL() + path)
	if err != nil {
		ts.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// POST performs an authenticated POST request with a JSON body.
func (ts *TestServer) POST(path string, body any) *http.Response {
	ts.t.Helper()
	return ts.post(path, body, testAPIKey)
}

func (ts *TestServer) post(path string, body any, key string) *http.Response {
	ts.t.Helper()
	jsonBody, err := json.Marshal(body)
	if err != nil {
		ts.t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL()+path, bytes.NewReader(jsonBody))
	if err != nil {
		ts.t.Fatalf("create POST request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-KEY", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		ts.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// DecodeJSON decodes the response body as JSON into v.
func (ts *TestServer) DecodeJSON(resp *http.Response, v any) {
	ts.t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		ts.t.Fatalf("decode response: %v", err)
	}
}

// ReadBody reads and returns the response body as a string.
func (ts *TestServer) ReadBody(resp *http.Response) string {
	ts.t.Helper()
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		ts.t.Fatalf("read body: %v", err)
	}
	return string(body)
}

// Basket posts one basket event and fails the test unless it is accepted.
func (ts *TestServer) Basket(anchor uuid.UUID, related ...uuid.UUID) {
	ts.t.Helper()
	resp := ts.POST("/api/v1/events", eventRequest(anchor, related...))
	if resp.StatusCode != http.StatusAccepted {
		ts.t.Fatalf("POST event: status = %d, body = %s", resp.StatusCode, ts.ReadBody(resp))
	}
	_ = resp.Body.Close()
}

// WaitForInbox blocks until the worker has consumed every queued event.
func (ts *TestServer) WaitForInbox() {
	ts.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ts.client.Drain(ctx); err != nil {
		ts.t.Fatalf("drain inbox: %v", err)
	}
}

// Summary fetches the summary resource of product.
func (ts *TestServer) Summary(product uuid.UUID) Resource {
	ts.t.Helper()
	resp := ts.GET("/api/v1/summaries/" + product.String())
	if resp.StatusCode != http.StatusOK {
		ts.t.Fatalf("GET summary: status = %d, body = %s", resp.StatusCode, ts.ReadBody(resp))
	}
	var doc Document
	ts.DecodeJSON(resp, &doc)
	var res Resource
	if err := json.Unmarshal(doc.Data, &res); err != nil {
		ts.t.Fatalf("decode summary: %v", err)
	}
	return res
}

// Counts returns the basket count of every relationship in a summary, keyed
// by combination key.
func Counts(t *testing.T, summary Resource) map[string]int64 {
	t.Helper()
	raw, ok := summary.Attributes["relationships"].([]any)
	if !ok {
		return map[string]int64{}
	}
	counts := make(map[string]int64, len(raw))
	for _, r := range raw {
		rel := r.(map[string]any)
		products := rel["products"].([]any)
		ids := make([]string, len(products))
		for i, p := range products {
			ids[i] = p.(string)
		}
		counts[strings.Join(ids, ",")] = int64(rel["basket_count"].(float64))
	}
	return counts
}

func eventRequest(anchor uuid.UUID, related ...uuid.UUID) map[string]any {
	ids := make([]string, len(related))
	for i, id := range related {
		ids[i] = id.String()
	}
	return map[string]any{"product_id": anchor.String(), "related_products": ids}
}
