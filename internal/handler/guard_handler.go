package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/visitor"
)

// defaultHeartbeat はSSEの接続維持コメントの間隔。
const defaultHeartbeat = 15 * time.Second

// GuardHandler は画面保護の判定とカウントダウンのHTTPハンドラー。
type GuardHandler struct {
	guard      *guard.Middleware
	workspaces Workspaces
	logger     *slog.Logger
	heartbeat  time.Duration
}

// NewGuardHandler はGuardHandlerを生成する。
func NewGuardHandler(m *guard.Middleware, workspaces Workspaces, logger *slog.Logger) *GuardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardHandler{
		guard:      m,
		workspaces: workspaces,
		logger:     logger,
		heartbeat:  defaultHeartbeat,
	}
}

type redirectResponse struct {
	RedirectTo string `json:"redirect_to"`
}

// viewPath はクエリのpathを読み取る。未指定の場合は400を書き込み空文字列を返す。
func viewPath(w http.ResponseWriter, r *http.Request) string {
	p := r.URL.Query().Get("path")
	if p == "" {
		handleServiceError(w, model.NewValidationError(map[string]string{"path": "必須項目です。"}))
	}
	return p
}

// Check は画面パスに対する現在の判定結果を返す。
// GET /api/guard/check?path=
func (h *GuardHandler) Check(w http.ResponseWriter, r *http.Request) {
	path := viewPath(w, r)
	if path == "" {
		return
	}
	d := h.guard.Check(r, path)
	writeJSON(w, http.StatusOK, h.guard.NewView(path, d))
}

// Override はゲストとして続行することを記録する。ゲストを許可しない画面では400を返す。
// POST /api/guard/override?path=
func (h *GuardHandler) Override(w http.ResponseWriter, r *http.Request) {
	path := viewPath(w, r)
	if path == "" {
		return
	}
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	rule, matched := h.guard.Table().Match(path)
	if !matched || !rule.AllowGuest {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "このページはゲストとして表示できません。",
			Category: "validation",
			Action:   "ログインしてください。",
		})
		return
	}

	ws.SetGuest(rule.Prefix, true)
	d := h.guard.Check(r, path)
	writeJSON(w, http.StatusOK, h.guard.NewView(path, d))
}

// LoginNow はカウントダウンを待たずにログイン画面へ遷移する。
// 同じ画面を監視中のストリームにはredirectイベントが送られる。
// POST /api/guard/login-now?path=
func (h *GuardHandler) LoginNow(w http.ResponseWriter, r *http.Request) {
	path := viewPath(w, r)
	if path == "" {
		return
	}
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	if rule, matched := h.guard.Table().Match(path); matched {
		ws.RequestLogin(rule.Prefix)
	}
	writeJSON(w, http.StatusOK, redirectResponse{
		RedirectTo: guard.LoginLocation(h.guard.Options().LoginPath, path),
	})
}

// Watch は画面を開いている間の判定結果の変化をServer-Sent Eventsで配信する。
// 未ログインの間は1秒ごとにtickイベントを送り、0になるとredirectイベントを送って終了する。
// 接続が切れる、条件が解消する、利用者が操作する、のいずれかでカウントダウンは停止する。
// GET /api/guard/watch?path=
func (h *GuardHandler) Watch(w http.ResponseWriter, r *http.Request) {
	path := viewPath(w, r)
	if path == "" {
		return
	}
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	// ストリーム中はサーバーの書き込みタイムアウトを適用しない
	_ = rc.SetWriteDeadline(time.Time{})

	ctx := r.Context()
	var rule *model.RoleAccessRule
	if matched, ok := h.guard.Table().Match(path); ok {
		rule = &matched
	}

	events := newEventQueue()
	opts := h.guard.Options()
	ctrl := guard.NewController(guard.ControllerConfig{
		Path:         path,
		Rule:         rule,
		Ticks:        opts.Ticks,
		Interval:     opts.Interval,
		LoginPath:    opts.LoginPath,
		FallbackPath: opts.FallbackPath,
		Observer:     opts.Observer,
		Logger:       h.logger.With(slog.String("visitor_id", ws.ID)),
		Emit:         events.push,
	})
	defer ctrl.Close()

	changed := make(chan struct{}, 1)
	unsubscribe := ws.Auth.Subscribe(func(model.AuthSession) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	signals, stop := ws.Watch()
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("streaming not supported", slog.String("error", err.Error()))
		return
	}

	input := func() guard.Input {
		s := ws.Subject()
		in := guard.Input{
			Loading:       s.Loading,
			Authenticated: s.Authenticated,
			Role:          s.Role,
			Rule:          rule,
		}
		if rule != nil {
			in.Guest = s.Guest(rule.Prefix)
		}
		return in
	}
	ctrl.Update(input())

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-events.ready:
			for _, e := range events.drain() {
				if err := writeEvent(w, e); err != nil {
					return
				}
				if e.Type == guard.EventRedirect {
					_ = rc.Flush()
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case <-changed:
			ctrl.Update(input())

		case sig, open := <-signals:
			if !open {
				return
			}
			switch sig.Kind {
			case visitor.SignalNavigate:
				ctrl.Close()
				_ = writeEvent(w, guard.Event{Type: guard.EventRedirect, Location: sig.Path})
				_ = rc.Flush()
				return
			case visitor.SignalGuest:
				if rule != nil && sig.Path == rule.Prefix {
					ctrl.ContinueAsGuest()
				}
			case visitor.SignalLoginNow:
				if rule != nil && sig.Path == rule.Prefix {
					ctrl.LoginNow()
				}
			}

		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// eventQueue はコントローラーからのイベントを書き込みまで保持する。
// pushは配信ループ自身から呼ばれても待たない。
type eventQueue struct {
	mu      sync.Mutex
	pending []guard.Event
	ready   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(e guard.Event) {
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain は溜まっているイベントを発生順に取り出す。
func (q *eventQueue) drain() []guard.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// writeEvent はイベントをSSEの形式で書き込む。
func writeEvent(w io.Writer, e guard.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
