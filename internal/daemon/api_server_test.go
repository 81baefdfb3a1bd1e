package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clipspace/internal/api"
	"clipspace/internal/ipc"
	"clipspace/internal/logging"
	"clipspace/internal/testsupport"
)

func newTestServer(t *testing.T) *apiServer {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	srv, err := newAPIServer(cfg, d, logging.NewNop())
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	if srv == nil {
		t.Fatal("api server disabled with bind address configured")
	}
	return srv
}

func TestAuthMiddleware(t *testing.T) {
	handler := authMiddleware("secret", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "secret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"correct", "Bearer secret", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAuthMiddlewareDisabledWithoutToken(t *testing.T) {
	handler := authMiddleware("", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var status ipc.StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.PID == 0 || status.DatabasePath == "" {
		t.Fatalf("status = %#v", status)
	}
	if status.Running {
		t.Fatal("reported running before Start")
	}
}

func TestHandleItemsLifecycle(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"text":"server round trip"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/items", body)
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("post status = %d: %s", rec.Code, rec.Body.String())
	}

	var receipt api.IngestReceipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if !receipt.Success || receipt.ID == "" {
		t.Fatalf("receipt = %#v", receipt)
	}

	rec = httptest.NewRecorder()
	srv.handleItems(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listing struct {
		Items []api.ItemRecord `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Items) != 1 || listing.Items[0].ID != receipt.ID {
		t.Fatalf("listing = %#v", listing.Items)
	}

	rec = httptest.NewRecorder()
	srv.handleItem(rec, httptest.NewRequest(http.MethodGet, "/api/items/"+receipt.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.handleItem(rec, httptest.NewRequest(http.MethodDelete, "/api/items/"+receipt.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.handleItem(rec, httptest.NewRequest(http.MethodGet, "/api/items/"+receipt.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rec.Code)
	}
}

func TestHandleItemsRejectsEmptyPayload(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.handleItems(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	var outcome api.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if outcome.Success || outcome.ErrorKind != "validation" {
		t.Fatalf("outcome = %#v", outcome)
	}
}

func TestHandleSpacesAndJobs(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleSpaces(rec, httptest.NewRequest(http.MethodGet, "/api/spaces", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("spaces status = %d", rec.Code)
	}
	var spaces struct {
		Spaces []api.SpaceRecord `json:"spaces"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&spaces); err != nil {
		t.Fatalf("decode spaces: %v", err)
	}
	if len(spaces.Spaces) != 1 {
		t.Fatalf("spaces = %#v", spaces.Spaces)
	}

	rec = httptest.NewRecorder()
	srv.handleJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?state=queued,running", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("jobs status = %d", rec.Code)
	}
}
