package e2e_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
)

var (
	shoes = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	socks = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	laces = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	belt  = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

func key(ids ...uuid.UUID) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ","
		}
		s += id.String()
	}
	return s
}

func TestEvents_ProjectedByWorker(t *testing.T) {
	ts := NewTestServer(t)

	ts.Basket(shoes, socks, laces)
	ts.Basket(shoes, laces)
	ts.Basket(shoes, laces, socks)
	ts.WaitForInbox()

	summary := ts.Summary(shoes)
	if got := summary.Attributes["version"]; got != float64(3) {
		t.Errorf("version = %v, want 3", got)
	}

	want := map[string]int64{
		key(socks):        2,
		key(laces):        3,
		key(socks, laces): 2,
	}
	got := Counts(t, summary)
	if len(got) != len(want) {
		t.Fatalf("relationships = %v, want %v", got, want)
	}
	for k, n := range want {
		if got[k] != n {
			t.Errorf("count[%s] = %d, want %d", k, got[k], n)
		}
	}

	// Related products are never anchors of their own summaries.
	other := ts.Summary(socks)
	if got := other.Attributes["version"]; got != float64(0) {
		t.Errorf("socks version = %v, want 0", got)
	}
}

func TestEvents_DuplicateProductsCountOnce(t *testing.T) {
	ts := NewTestServer(t)

	ts.Basket(shoes, socks, socks, laces, socks)
	ts.WaitForInbox()

	got := Counts(t, ts.Summary(shoes))
	if len(got) != 3 {
		t.Fatalf("relationships = %v, want 3 combinations", got)
	}
	for k, n := range got {
		if n != 1 {
			t.Errorf("count[%s] = %d, want 1", k, n)
		}
	}
}

func TestEvents_EmptyBasketLeavesSummaryUntouched(t *testing.T) {
	ts := NewTestServer(t)

	ts.Basket(shoes)
	ts.WaitForInbox()

	summary := ts.Summary(shoes)
	if got := summary.Attributes["version"]; got != float64(0) {
		t.Errorf("version = %v, want 0", got)
	}
	if got := Counts(t, summary); len(got) != 0 {
		t.Errorf("relationships = %v, want none", got)
	}
}

func TestEvents_ConcurrentPostsAreAllCounted(t *testing.T) {
	ts := NewTestServer(t)

	anchors := []uuid.UUID{shoes, socks, laces}
	const perAnchor = 10

	var wg sync.WaitGroup
	for _, anchor := range anchors {
		for range perAnchor {
			wg.Add(1)
			go func() {
				defer wg.Done()
				body, _ := json.Marshal(eventRequest(anchor, belt))
				req, _ := http.NewRequest(http.MethodPost, ts.URL()+"/api/v1/events", bytes.NewReader(body))
				req.Header.Set("X-API-KEY", testAPIKey)
				resp, err := http.DefaultClient.Do(req)
				if err != nil {
					t.Errorf("POST event: %v", err)
					return
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusAccepted {
					t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
				}
			}()
		}
	}
	wg.Wait()
	ts.WaitForInbox()

	for _, anchor := range anchors {
		summary := ts.Summary(anchor)
		if got := summary.Attributes["version"]; got != float64(perAnchor) {
			t.Errorf("%s version = %v, want %d", anchor, got, perAnchor)
		}
		if got := Counts(t, summary)[key(belt)]; got != perAnchor {
			t.Errorf("%s count = %d, want %d", anchor, got, perAnchor)
		}
	}
}

func TestEvents_WritesRequireAPIKey(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.post("/api/v1/events", eventRequest(shoes, socks), "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	_ = resp.Body.Close()

	resp = ts.post("/api/v1/events", eventRequest(shoes, socks), "wrong")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	_ = resp.Body.Close()

	resp = ts.GET("/api/v1/events")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("read: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	_ = resp.Body.Close()
}

func TestEvents_InvalidEventRejected(t *testing.T) {
	ts := NewTestServer(t)

	resp := ts.POST("/api/v1/events", map[string]any{"product_id": uuid.Nil.String()})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	var doc Document
	ts.DecodeJSON(resp, &doc)
	if len(doc.Errors) != 1 || doc.Errors[0].Status != "400" {
		t.Errorf("errors = %+v, want one 400 error", doc.Errors)
	}
}
