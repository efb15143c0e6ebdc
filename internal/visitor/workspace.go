// Package visitor は訪問者ごとの状態（カート・ウィッシュリスト・認証）を管理する。
package visitor

import (
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/wishlist"
)

// navBuffer は通知チャネルのバッファ数。読み手が遅い場合は古い通知を捨てずに新しい通知を捨てる。
const navBuffer = 4

// SignalKind は画面への通知の種類。
type SignalKind string

const (
	// SignalNavigate はログアウト等による画面遷移。Pathは遷移先。
	SignalNavigate SignalKind = "navigate"
	// SignalGuest はゲスト続行の選択。Pathは対象のプレフィックス。
	SignalGuest SignalKind = "guest"
	// SignalLoginNow は「今すぐログイン」の選択。Pathは対象のプレフィックス。
	SignalLoginNow SignalKind = "login_now"
)

// Signal はWatchで配信される通知。
type Signal struct {
	Kind SignalKind
	Path string
}

// Workspace は1訪問者分の状態コンテナの集合。
type Workspace struct {
	ID       string
	Cart     *cart.Cart
	Wishlist *wishlist.Wishlist
	Auth     *auth.Container
	Actions  *form.ActionTracker

	ready chan struct{}

	mu       sync.Mutex
	coupon   string
	guest    map[string]bool
	authUser string
	lastSeen time.Time
	watchers map[int]chan Signal
	nextID   int
	closed   bool
}

func newWorkspace(id string, now time.Time) *Workspace {
	return &Workspace{
		ID:       id,
		Cart:     cart.New(),
		Actions:  form.NewActionTracker(),
		ready:    make(chan struct{}),
		guest:    make(map[string]bool),
		lastSeen: now,
		watchers: make(map[int]chan Signal),
	}
}

// Ready は認証状態の初期化が完了すると閉じられるチャネルを返す。
func (w *Workspace) Ready() <-chan struct{} {
	return w.ready
}

// Coupon は適用中のクーポンコードを返す。
func (w *Workspace) Coupon() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.coupon
}

// SetCoupon はクーポンコードを記録する。空文字列で解除する。
func (w *Workspace) SetCoupon(code string) {
	w.mu.Lock()
	w.coupon = code
	w.mu.Unlock()
}

// Guest はprefixの画面でゲストとして続行を選択済みかどうかを返す。
func (w *Workspace) Guest(prefix string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.guest[prefix]
}

// SetGuest はゲスト続行の選択を記録する。ログイン・ログアウトで消去される。
// 選択した場合は全てのWatchに通知する。
func (w *Workspace) SetGuest(prefix string, on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !on {
		delete(w.guest, prefix)
		return
	}
	w.guest[prefix] = true
	w.broadcastLocked(Signal{Kind: SignalGuest, Path: prefix})
}

// RequestLogin はprefixの画面を開いている全てのWatchに「今すぐログイン」を通知する。
func (w *Workspace) RequestLogin(prefix string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.broadcastLocked(Signal{Kind: SignalLoginNow, Path: prefix})
}

// onAuthChange はログインユーザーが変わった場合にゲスト続行の選択を消去する。
func (w *Workspace) onAuthChange(s model.AuthSession) {
	id := ""
	if s.User != nil {
		id = s.User.ID
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if id != w.authUser {
		w.authUser = id
		w.guest = make(map[string]bool)
	}
}

// Subject はガード判定に使う認証状態を返す。
func (w *Workspace) Subject() guard.Subject {
	s := guard.Subject{
		Loading:       w.Auth.Loading(),
		Authenticated: w.Auth.IsAuthenticated(),
		Guest:         w.Guest,
	}
	if u := w.Auth.Snapshot().User; u != nil {
		s.Role = u.Role
	}
	return s
}

// Watch は画面遷移とゲスト続行の通知を受け取るチャネルと、登録解除用の関数を返す。
// ワークスペースが破棄されるとチャネルは閉じられる。
func (w *Workspace) Watch() (<-chan Signal, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan Signal, navBuffer)
	if w.closed {
		close(ch)
		return ch, func() {}
	}
	id := w.nextID
	w.nextID++
	w.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if c, ok := w.watchers[id]; ok {
				delete(w.watchers, id)
				close(c)
			}
		})
	}
}

// navigate は遷移先を全てのWatchに通知する。
func (w *Workspace) navigate(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.broadcastLocked(Signal{Kind: SignalNavigate, Path: path})
}

func (w *Workspace) broadcastLocked(s Signal) {
	for _, ch := range w.watchers {
		select {
		case ch <- s:
		default:
		}
	}
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// idleSince は最後に使用されてからの経過時間を返す。
func (w *Workspace) idleSince(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastSeen)
}

// close は全てのWatchを閉じる。
func (w *Workspace) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for id, ch := range w.watchers {
		delete(w.watchers, id)
		close(ch)
	}
}
