package guard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/storefront/internal/model"
)

// Subject はリクエスト元の訪問者の認証状態。
type Subject struct {
	Loading       bool
	Authenticated bool
	Role          model.Role
	// Guest は指定したパスでゲストとして続行を選択済みかどうかを返す。
	Guest func(prefix string) bool
}

// SubjectFunc はリクエストからSubjectを取り出す。
type SubjectFunc func(r *http.Request) Subject

// Options はMiddlewareの設定。
type Options struct {
	Ticks        int
	Interval     time.Duration
	LoginPath    string
	FallbackPath string
	Observer     Observer
}

// Middleware は保護されたAPIグループの前段で判定を行う。
type Middleware struct {
	table   *AccessTable
	subject SubjectFunc
	opts    Options
}

// NewMiddleware はMiddlewareを生成する。
func NewMiddleware(table *AccessTable, subject SubjectFunc, opts Options) *Middleware {
	if opts.Ticks <= 0 {
		opts.Ticks = 5
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.FallbackPath == "" {
		opts.FallbackPath = "/unauthorized"
	}
	return &Middleware{table: table, subject: subject, opts: opts}
}

// Table は判定に使う対応表を返す。
func (m *Middleware) Table() *AccessTable { return m.table }

// Options は設定を返す。
func (m *Middleware) Options() Options { return m.opts }

// Check は画面パスに対する判定を行う。
func (m *Middleware) Check(r *http.Request, viewPath string) Decision {
	s := m.subject(r)
	in := Input{
		Loading:       s.Loading,
		Authenticated: s.Authenticated,
		Role:          s.Role,
	}
	if rule, ok := m.table.Match(viewPath); ok {
		in.Rule = &rule
		if s.Guest != nil {
			in.Guest = s.Guest(rule.Prefix)
		}
	}

	d := Evaluate(in)
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveGuardDecision(d.State.String())
	}
	return d
}

// Protect はviewPathの画面に対応するAPIを保護するミドルウェアを返す。
//   - 初期化中: 202 と loading
//   - 未ログイン: 401 とカウントダウン秒数、Refreshヘッダー
//   - ロール不一致: 403 と必要なロール・実際のロール
func (m *Middleware) Protect(viewPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := m.Check(r, viewPath)
			if d.State == StateAuthorized {
				next.ServeHTTP(w, r)
				return
			}
			m.WriteDecision(w, viewPath, d)
		})
	}
}

// View は判定結果を画面に返すためのレスポンス。
type View struct {
	Decision
	Message          string `json:"message,omitempty"`
	CountdownSeconds int    `json:"countdown_seconds,omitempty"`
	LoginURL         string `json:"login_url,omitempty"`
	RedirectTo       string `json:"redirect_to,omitempty"`
}

// NewView は判定結果から表示内容を組み立てる。
func (m *Middleware) NewView(viewPath string, d Decision) View {
	v := View{Decision: d}
	switch d.State {
	case StateLoading:
		v.Message = "認証状態を確認しています。"
	case StateUnauthenticated:
		seconds := int((time.Duration(m.opts.Ticks) * m.opts.Interval).Seconds())
		v.Message = fmt.Sprintf("このページを表示するにはログインが必要です。%d秒後にログイン画面へ移動します。", seconds)
		v.CountdownSeconds = seconds
		v.LoginURL = LoginLocation(m.opts.LoginPath, viewPath)
	case StateUnauthorized:
		v.Message = model.NewForbiddenError(d.Required, d.Actual).Message
		v.RedirectTo = m.opts.FallbackPath
	}
	return v
}

// WriteDecision は許可されなかった判定結果をレスポンスに書き込む。
func (m *Middleware) WriteDecision(w http.ResponseWriter, viewPath string, d Decision) {
	v := m.NewView(viewPath, d)

	status := http.StatusOK
	switch d.State {
	case StateLoading:
		status = http.StatusAccepted
	case StateUnauthenticated:
		status = http.StatusUnauthorized
		w.Header().Set("Refresh", fmt.Sprintf("%d; url=%s", v.CountdownSeconds, v.LoginURL))
	case StateUnauthorized:
		status = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
