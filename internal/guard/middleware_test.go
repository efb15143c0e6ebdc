package guard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/model"
)

func newTestMiddleware(s Subject) *Middleware {
	return NewMiddleware(DefaultAccessTable(), func(r *http.Request) Subject { return s }, Options{
		Ticks:    5,
		Interval: time.Second,
	})
}

func serveProtected(m *Middleware, viewPath string) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	rec := httptest.NewRecorder()
	m.Protect(viewPath)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api"+viewPath, nil))
	return rec
}

func TestMiddleware_Authorized_PassesThrough(t *testing.T) {
	m := newTestMiddleware(Subject{Authenticated: true, Role: model.RoleAdmin})
	rec := serveProtected(m, "/admin/restaurants")

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("status = %d body = %q, want 200 ok", rec.Code, rec.Body.String())
	}
}

func TestMiddleware_Loading_Returns202(t *testing.T) {
	m := newTestMiddleware(Subject{Loading: true})
	rec := serveProtected(m, "/admin")

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestMiddleware_Unauthenticated_Returns401WithCountdown(t *testing.T) {
	m := newTestMiddleware(Subject{})
	rec := serveProtected(m, "/customer/orders")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	refresh := rec.Header().Get("Refresh")
	if !strings.HasPrefix(refresh, "5; url=/login?redirect=") {
		t.Errorf("Refresh = %q", refresh)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["state"] != "unauthenticated" {
		t.Errorf("state = %v", body["state"])
	}
	if body["countdown_seconds"] != float64(5) {
		t.Errorf("countdown_seconds = %v, want 5", body["countdown_seconds"])
	}
}

func TestMiddleware_RoleMismatch_Returns403WithRoles(t *testing.T) {
	m := newTestMiddleware(Subject{Authenticated: true, Role: model.RoleRestaurant})
	rec := serveProtected(m, "/admin")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var body struct {
		State      string   `json:"state"`
		Required   []string `json:"required_roles"`
		Actual     string   `json:"actual_role"`
		RedirectTo string   `json:"redirect_to"`
		Message    string   `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.State != "unauthorized" || body.Actual != "restaurant" || body.RedirectTo != "/unauthorized" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Required) != 2 || body.Required[0] != "admin" || body.Required[1] != "superAdmin" {
		t.Errorf("required_roles = %v", body.Required)
	}
	if !strings.Contains(body.Message, "restaurant") {
		t.Errorf("message should mention actual role: %q", body.Message)
	}
}

func TestMiddleware_GuestOverride(t *testing.T) {
	m := newTestMiddleware(Subject{Guest: func(prefix string) bool { return prefix == "/checkout" }})

	if rec := serveProtected(m, "/checkout"); rec.Code != http.StatusOK {
		t.Errorf("/checkout status = %d, want 200", rec.Code)
	}
	if rec := serveProtected(m, "/admin"); rec.Code != http.StatusUnauthorized {
		t.Errorf("/admin status = %d, want 401", rec.Code)
	}
}
