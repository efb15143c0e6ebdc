package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

type mockMetrics struct {
	mu           sync.Mutex
	requests     []int
	unauthorized int
}

func (m *mockMetrics) ObserveAPIRequest(method string, status int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, status)
}

func (m *mockMetrics) ObserveUnauthorized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unauthorized++
}

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = server.URL + "/api"
	cfg.HTTPClient = server.Client()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return c
}

func TestNew_RejectsInvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "localhost:5000", "ftp://example.com", "://bad"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("New(%q) should fail", base)
		}
	}
}

func TestClient_Get_AddsCacheBusterAndDecodes(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/restaurants/r1" {
			t.Errorf("path = %s, want /api/restaurants/r1", r.URL.Path)
		}
		if got := r.URL.Query().Get("_t"); got != "1700000000123" {
			t.Errorf("_t = %q, want 1700000000123", got)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %q, want 2", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"r1","name":"Sushi"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, Config{Now: func() time.Time { return now }})

	var out struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.Get(context.Background(), "/restaurants/r1?page=2", &out); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if out.ID != "r1" || out.Name != "Sushi" {
		t.Errorf("out = %+v", out)
	}
}

func TestClient_Post_NoCacheBusterAndSendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("_t") {
			t.Error("POST must not carry _t")
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", auth)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "Ramen" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"m1"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, Config{})

	var out struct {
		ID string `json:"id"`
	}
	err := c.Post(context.Background(), "menu-items", map[string]string{"name": "Ramen"}, &out, WithBearer("tok"))
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if out.ID != "m1" {
		t.Errorf("ID = %q, want m1 (data envelope should be unwrapped)", out.ID)
	}
}

func TestClient_ErrorNormalization(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    string
	}{
		{"message/code", 400, `{"message":"invalid email","code":"E_EMAIL"}`, "invalid email", "E_EMAIL"},
		{"error文字列", 404, `{"error":"not found"}`, "not found", ""},
		{"入れ子のerror", 409, `{"error":{"message":"conflict","code":"DUP"}}`, "conflict", "DUP"},
		{"JSONでない", 502, `<html>bad gateway</html>`, DefaultErrorMessage, ""},
		{"空ボディ", 500, ``, DefaultErrorMessage, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server, Config{})
			err := c.Delete(context.Background(), "/x", nil)

			apiErr, ok := AsError(err)
			if !ok {
				t.Fatalf("err = %T %v, want *Error", err, err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.wantMessage || apiErr.Code != tt.wantCode {
				t.Errorf("Error = %+v, want status=%d message=%q code=%q", apiErr, tt.status, tt.wantMessage, tt.wantCode)
			}
		})
	}
}

func TestClient_NetworkError_IsNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, server, Config{})
	server.Close()

	err := c.Get(context.Background(), "/restaurants", nil)
	apiErr, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %T, want *Error", err)
	}
	if apiErr.Status != 0 || apiErr.Code != CodeNetwork || apiErr.Message != DefaultErrorMessage {
		t.Errorf("Error = %+v", apiErr)
	}
}

func TestClient_ContextCanceled_Unwraps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()
	c := newTestClient(t, server, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Get(ctx, "/restaurants", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapping context.Canceled", err)
	}
}

func TestClient_Unauthorized_Broadcasts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"token expired"}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	metrics := &mockMetrics{}
	b := NewBroadcaster()
	c := newTestClient(t, server, Config{Broadcaster: b, Metrics: metrics, Logger: newTestLogger(&buf)})

	var got []UnauthorizedEvent
	unsubscribe := b.Subscribe(func(e UnauthorizedEvent) { got = append(got, e) })

	err := c.Get(context.Background(), "/orders/my-orders", nil, WithBearer("stale"))
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("err = %v, want 401", err)
	}
	if len(got) != 1 || got[0].Token != "stale" || got[0].Path != "/orders/my-orders" {
		t.Errorf("events = %+v", got)
	}
	if metrics.unauthorized != 1 {
		t.Errorf("unauthorized metric = %d, want 1", metrics.unauthorized)
	}
	if !strings.Contains(buf.String(), `"http_status":401`) {
		t.Errorf("expected warning log with status, got %s", buf.String())
	}

	unsubscribe()
	_ = c.Get(context.Background(), "/orders/my-orders", nil)
	if len(got) != 1 {
		t.Errorf("events after unsubscribe = %d, want 1", len(got))
	}
}

func TestClient_RawMessageOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"c1"}]}`))
	}))
	defer server.Close()
	c := newTestClient(t, server, Config{})

	var raw json.RawMessage
	if err := c.Get(context.Background(), "/categories", &raw); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(raw) != `{"data":[{"id":"c1"}]}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestClient_RejectsAbsolutePaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer server.Close()
	c := newTestClient(t, server, Config{})

	if err := c.Get(context.Background(), "https://evil.example.com/x", nil); err == nil {
		t.Error("expected error for absolute URL")
	}
}

func TestClient_RecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()
	metrics := &mockMetrics{}
	c := newTestClient(t, server, Config{Metrics: metrics})

	_ = c.Get(context.Background(), "/x", nil)
	if len(metrics.requests) != 1 || metrics.requests[0] != 200 {
		t.Errorf("requests = %v, want [200]", metrics.requests)
	}
}
