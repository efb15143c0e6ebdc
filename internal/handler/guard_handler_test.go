package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/visitor"
)

// viewBody はguard.Viewのレスポンスを読むための構造体。stateは文字列で返る。
type viewBody struct {
	State            string `json:"state"`
	AsGuest          bool   `json:"as_guest"`
	AllowGuest       bool   `json:"allow_guest"`
	Message          string `json:"message"`
	CountdownSeconds int    `json:"countdown_seconds"`
	LoginURL         string `json:"login_url"`
	RedirectTo       string `json:"redirect_to"`
}

// streamEvent はSSEで受け取ったイベント。
type streamEvent struct {
	Name     string
	Type     string `json:"type"`
	Decision *struct {
		State   string `json:"state"`
		AsGuest bool   `json:"as_guest"`
	} `json:"decision"`
	Remaining int    `json:"remaining"`
	Location  string `json:"location"`
}

func newTestGuardHandler(t *testing.T, opts guard.Options) (*GuardHandler, *visitor.Registry) {
	t.Helper()
	reg := newTestRegistry(t)
	m := guard.NewMiddleware(guard.DefaultAccessTable(), SubjectFromWorkspaces(reg), opts)
	return NewGuardHandler(m, reg, discardLogger), reg
}

// openStream はWatchをHTTPサーバー越しに呼び出し、受信したイベントを返すチャネルを返す。
func openStream(t *testing.T, h *GuardHandler, visitorID, path string) <-chan streamEvent {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Watch(w, r.WithContext(middleware.ContextWithVisitorID(r.Context(), visitorID)))
	}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/guard/watch?path=" + path)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	out := make(chan streamEvent, 64)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(resp.Body)
		var name string
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				var e streamEvent
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
					return
				}
				e.Name = name
				out <- e
			}
		}
	}()
	return out
}

// nextEvent は条件に一致するイベントが届くまで待つ。
func nextEvent(t *testing.T, events <-chan streamEvent, match func(streamEvent) bool) streamEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("stream closed before the expected event")
			}
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestGuardHandler_Check(t *testing.T) {
	h, reg := newTestGuardHandler(t, guard.Options{Ticks: 5, Interval: time.Second})
	ws := readyWorkspace(t, reg, "v1")

	tests := []struct {
		name      string
		role      model.Role
		path      string
		wantState string
	}{
		{"public page", "", "/", "authorized"},
		{"anonymous on admin", "", "/admin/orders", "unauthenticated"},
		{"customer on admin", model.RoleCustomer, "/admin", "unauthorized"},
		{"customer on customer", model.RoleCustomer, "/customer/orders", "authorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.role != "" {
				loginAs(t, ws, "u1", tt.role)
				t.Cleanup(func() { ws.Auth.Logout(context.Background()) })
			}
			w := httptest.NewRecorder()
			h.Check(w, newRequest(t, http.MethodGet, "/api/guard/check?path="+tt.path, nil, "v1", nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			var v viewBody
			decodeBody(t, w, &v)
			if v.State != tt.wantState {
				t.Errorf("state = %q, want %q", v.State, tt.wantState)
			}
			switch v.State {
			case "unauthenticated":
				if v.CountdownSeconds != 5 || v.LoginURL != "/login?redirect=%2Fadmin%2Forders" {
					t.Errorf("view = %+v", v)
				}
			case "unauthorized":
				if v.RedirectTo != "/unauthorized" || v.Message == "" {
					t.Errorf("view = %+v", v)
				}
			}
		})
	}
}

func TestGuardHandler_Check_RequiresPath(t *testing.T) {
	h, _ := newTestGuardHandler(t, guard.Options{})

	w := httptest.NewRecorder()
	h.Check(w, newRequest(t, http.MethodGet, "/api/guard/check", nil, "v1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGuardHandler_Override(t *testing.T) {
	h, reg := newTestGuardHandler(t, guard.Options{})
	ws := readyWorkspace(t, reg, "v1")

	w := httptest.NewRecorder()
	h.Override(w, newRequest(t, http.MethodPost, "/api/guard/override?path=/admin", nil, "v1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("admin override status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	h.Override(w, newRequest(t, http.MethodPost, "/api/guard/override?path=/checkout", nil, "v1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("checkout override status = %d, want 200", w.Code)
	}
	var v viewBody
	decodeBody(t, w, &v)
	if v.State != "authorized" || !v.AsGuest {
		t.Errorf("view = %+v, want authorized as guest", v)
	}
	if !ws.Guest("/checkout") {
		t.Error("guest choice should be recorded on the workspace")
	}
}

func TestGuardHandler_LoginNow(t *testing.T) {
	h, reg := newTestGuardHandler(t, guard.Options{})
	readyWorkspace(t, reg, "v1")

	w := httptest.NewRecorder()
	h.LoginNow(w, newRequest(t, http.MethodPost, "/api/guard/login-now?path=/admin", nil, "v1", nil))

	var resp redirectResponse
	decodeBody(t, w, &resp)
	if resp.RedirectTo != "/login?redirect=%2Fadmin" {
		t.Errorf("redirect_to = %q", resp.RedirectTo)
	}
}

func TestGuardHandler_Watch_CountdownRedirects(t *testing.T) {
	h, reg := newTestGuardHandler(t, guard.Options{Ticks: 2, Interval: 20 * time.Millisecond})
	readyWorkspace(t, reg, "v1")

	events := openStream(t, h, "v1", "/admin")

	first := nextEvent(t, events, func(streamEvent) bool { return true })
	if first.Name != "decision" || first.Decision == nil || first.Decision.State != "unauthenticated" {
		t.Fatalf("first event = %+v, want unauthenticated decision", first)
	}
	tick := nextEvent(t, events, func(e streamEvent) bool { return e.Type == "tick" })
	if tick.Remaining != 2 {
		t.Errorf("first tick remaining = %d, want 2", tick.Remaining)
	}
	redirect := nextEvent(t, events, func(e streamEvent) bool { return e.Type == "redirect" })
	if redirect.Location != "/login?redirect=%2Fadmin" {
		t.Errorf("location = %q", redirect.Location)
	}
}

func TestGuardHandler_Watch_LoginStopsCountdown(t *testing.T) {
	h, reg := newTestGuardHandler(t, guard.Options{Ticks: 50, Interval: 50 * time.Millisecond})
	ws := readyWorkspace(t, reg, "v1")

	events := openStream(t, h, "v1", "/customer")
	nextEvent(t, events, func(e streamEvent) bool { return e.Type == "decision" })

	loginAs(t, ws, "u1", model.RoleCustomer)

	e := nextEvent(t, events, func(e streamEvent) bool { return e.Type == "decision" || e.Type == "redirect" })
	if e.Type != "decision" || e.Decision.State != "authorized" {
		t.Fatalf("event = %+v, want authorized decision", e)
	}
}

func TestGuardHandler_Watch_GuestOverride(t *testing.T) {
	h, reg := newTestGuardHandler(t, guard.Options{Ticks: 50, Interval: 50 * time.Millisecond})
	ws := readyWorkspace(t, reg, "v1")

	events := openStream(t, h, "v1", "/checkout")
	first := nextEvent(t, events, func(e streamEvent) bool { return e.Type == "decision" })
	if first.Decision.State != "unauthenticated" {
		t.Fatalf("first decision = %q", first.Decision.State)
	}

	ws.SetGuest("/checkout", true)

	e := nextEvent(t, events, func(e streamEvent) bool { return e.Type == "decision" || e.Type == "redirect" })
	if e.Type != "decision" || e.Decision.State != "authorized" || !e.Decision.AsGuest {
		t.Fatalf("event = %+v, want authorized as guest", e)
	}
}

func TestGuardHandler_Watch_LoginNowRedirects(t *testing.T) {
	h, reg := newTestGuardHandler(t, guard.Options{Ticks: 50, Interval: 50 * time.Millisecond})
	readyWorkspace(t, reg, "v1")

	events := openStream(t, h, "v1", "/admin")
	nextEvent(t, events, func(e streamEvent) bool { return e.Type == "decision" })

	w := httptest.NewRecorder()
	h.LoginNow(w, newRequest(t, http.MethodPost, "/api/guard/login-now?path=/admin", nil, "v1", nil))

	e := nextEvent(t, events, func(e streamEvent) bool { return e.Type == "redirect" })
	if e.Location != "/login?redirect=%2Fadmin" {
		t.Errorf("location = %q", e.Location)
	}
}

func TestGuardHandler_Watch_LogoutNavigates(t *testing.T) {
	h, reg := newTestGuardHandler(t, guard.Options{Ticks: 50, Interval: 50 * time.Millisecond})
	ws := readyWorkspace(t, reg, "v1")
	loginAs(t, ws, "u1", model.RoleAdmin)

	events := openStream(t, h, "v1", "/admin")
	first := nextEvent(t, events, func(e streamEvent) bool { return e.Type == "decision" })
	if first.Decision.State != "authorized" {
		t.Fatalf("first decision = %q, want authorized", first.Decision.State)
	}

	ws.Auth.Logout(t.Context())

	e := nextEvent(t, events, func(e streamEvent) bool { return e.Type == "redirect" })
	if !strings.HasPrefix(e.Location, "/login") {
		t.Errorf("location = %q, want login screen", e.Location)
	}
}

func TestEventQueue_PushNeverBlocksWithoutReader(t *testing.T) {
	q := newEventQueue()
	const n = 100

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range n {
			q.push(guard.Event{Type: guard.EventTick, Remaining: i})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked while nobody drained the queue")
	}

	select {
	case <-q.ready:
	default:
		t.Fatal("ready was not signaled")
	}
	got := q.drain()
	if len(got) != n {
		t.Fatalf("drained %d events, want %d", len(got), n)
	}
	for i, e := range got {
		if e.Remaining != i {
			t.Fatalf("event %d remaining = %d, want in order", i, e.Remaining)
		}
	}
	if rest := q.drain(); len(rest) != 0 {
		t.Errorf("second drain = %d events, want 0", len(rest))
	}
}
