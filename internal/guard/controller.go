package guard

import (
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/model"
)

// EventType はControllerが発行するイベントの種類。
type EventType string

const (
	// EventDecision は判定結果が変わったことを表す。
	EventDecision EventType = "decision"
	// EventTick はカウントダウンの残り秒数を表す。
	EventTick EventType = "tick"
	// EventRedirect は画面遷移を表す。
	EventRedirect EventType = "redirect"
)

// Event はControllerから画面へ送るイベント。
type Event struct {
	Type      EventType `json:"type"`
	Decision  *Decision `json:"decision,omitempty"`
	Remaining int       `json:"remaining,omitempty"`
	Location  string    `json:"location,omitempty"`
}

// Observer は判定とリダイレクトの発生を記録する。
type Observer interface {
	ObserveGuardDecision(state string)
	ObserveCountdownRedirect(reason string)
}

// ControllerConfig はControllerの設定。
type ControllerConfig struct {
	Path         string
	Rule         *model.RoleAccessRule
	Ticks        int
	Interval     time.Duration
	LoginPath    string
	FallbackPath string
	Emit         func(Event)
	Observer     Observer
	Logger       *slog.Logger
}

// Controller は1画面分の保護状態を管理する。
// 認証状態が変わるたびにUpdateで再評価し、未ログインの間だけカウントダウンを動かす。
// カウントダウンは画面を閉じたとき、条件が解消したとき、利用者が操作したときに必ず停止する。
type Controller struct {
	cfg ControllerConfig

	mu        sync.Mutex
	last      Input
	hasInput  bool
	guest     bool
	closed    bool
	state     State
	hasState  bool
	countdown *Countdown
}

// NewController はControllerを生成する。
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Ticks <= 0 {
		cfg.Ticks = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.FallbackPath == "" {
		cfg.FallbackPath = "/unauthorized"
	}
	if cfg.Emit == nil {
		cfg.Emit = func(Event) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{cfg: cfg}
}

// LoginLocation はログイン後に元の画面へ戻るためのログイン画面のURLを返す。
func LoginLocation(loginPath, returnTo string) string {
	if returnTo == "" {
		return loginPath
	}
	return loginPath + "?redirect=" + url.QueryEscape(returnTo)
}

// Update は入力で再評価し、判定結果を返す。
func (c *Controller) Update(in Input) Decision {
	if in.Rule == nil {
		in.Rule = c.cfg.Rule
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Evaluate(in)
	}
	c.last = in
	c.hasInput = true
	in.Guest = in.Guest || c.guest
	d := Evaluate(in)
	events := c.applyLocked(d)
	c.mu.Unlock()

	c.emit(events)
	return d
}

// applyLocked は判定結果に合わせてカウントダウンを開始・停止し、発行するイベントを返す。
func (c *Controller) applyLocked(d Decision) []Event {
	changed := !c.hasState || c.state != d.State
	c.state = d.State
	c.hasState = true

	var events []Event
	if changed {
		dd := d
		events = append(events, Event{Type: EventDecision, Decision: &dd})
		if c.cfg.Observer != nil {
			c.cfg.Observer.ObserveGuardDecision(d.State.String())
		}
	}

	switch d.State {
	case StateUnauthenticated:
		if c.countdown == nil {
			c.startCountdownLocked()
			events = append(events, Event{Type: EventTick, Remaining: c.cfg.Ticks})
		}
	case StateUnauthorized:
		c.cancelLocked()
		if changed {
			events = append(events, Event{Type: EventRedirect, Location: c.cfg.FallbackPath})
			if c.cfg.Observer != nil {
				c.cfg.Observer.ObserveCountdownRedirect("unauthorized")
			}
		}
	default:
		c.cancelLocked()
	}
	return events
}

func (c *Controller) startCountdownLocked() {
	var cd *Countdown
	cd = StartCountdown(c.cfg.Ticks, c.cfg.Interval,
		func(remaining int) {
			c.mu.Lock()
			current := c.countdown == cd && !c.closed
			c.mu.Unlock()
			if current {
				c.cfg.Emit(Event{Type: EventTick, Remaining: remaining})
			}
		},
		func() {
			c.mu.Lock()
			current := c.countdown == cd && !c.closed
			if current {
				c.countdown = nil
			}
			c.mu.Unlock()
			if !current {
				return
			}
			c.cfg.Logger.Info("カウントダウンが終了したためログイン画面へ遷移します",
				slog.String("path", c.cfg.Path),
			)
			if c.cfg.Observer != nil {
				c.cfg.Observer.ObserveCountdownRedirect("expired")
			}
			c.cfg.Emit(Event{Type: EventRedirect, Location: LoginLocation(c.cfg.LoginPath, c.cfg.Path)})
		},
	)
	c.countdown = cd
}

func (c *Controller) cancelLocked() {
	if c.countdown != nil {
		c.countdown.Cancel()
		c.countdown = nil
	}
}

// LoginNow はカウントダウンを止めて直ちにログイン画面へ遷移させる。
func (c *Controller) LoginNow() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
	c.mu.Unlock()

	if c.cfg.Observer != nil {
		c.cfg.Observer.ObserveCountdownRedirect("login_now")
	}
	c.cfg.Emit(Event{Type: EventRedirect, Location: LoginLocation(c.cfg.LoginPath, c.cfg.Path)})
}

// ContinueAsGuest はゲストとして表示を続ける。
// ゲストを許可しないパスではfalseを返し、状態を変えない。
func (c *Controller) ContinueAsGuest() bool {
	c.mu.Lock()
	rule := c.last.Rule
	if rule == nil {
		rule = c.cfg.Rule
	}
	if c.closed || rule == nil || !rule.AllowGuest {
		c.mu.Unlock()
		return false
	}
	c.guest = true
	c.cancelLocked()

	var events []Event
	if c.hasInput {
		in := c.last
		in.Guest = true
		events = c.applyLocked(Evaluate(in))
	}
	c.mu.Unlock()

	c.emit(events)
	return true
}

// Close は画面を閉じる。以降イベントは発行されない。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelLocked()
}

// State は最後の判定結果の状態を返す。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) emit(events []Event) {
	for _, e := range events {
		c.cfg.Emit(e)
	}
}
