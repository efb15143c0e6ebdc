package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/storage"
)

// Validator はリモートAPIでトークンの有効性を確認する。
type Validator interface {
	Validate(ctx context.Context, token string) error
}

// ValidatorFunc は関数をValidatorとして扱うためのアダプタ。
type ValidatorFunc func(ctx context.Context, token string) error

// Validate はf(ctx, token)を呼び出す。
func (f ValidatorFunc) Validate(ctx context.Context, token string) error {
	return f(ctx, token)
}

// Navigator はログアウト後の画面遷移を受け取る。
type Navigator func(path string)

// Config はContainerの依存関係。
type Config struct {
	Store     storage.Store
	Validator Validator
	Navigate  Navigator
	LoginPath string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Container は1訪問者分の認証状態を保持する。
// 生成直後はLoadingで、Initializeが完了するとLoadingが解除される。
type Container struct {
	mu sync.RWMutex
	// writeMu はストアへの書き込みと、それに対応する状態の確定を直列化する。
	writeMu   sync.Mutex
	store     storage.Store
	validator Validator
	navigate  Navigator
	loginPath string
	logger    *slog.Logger
	now       func() time.Time

	session model.AuthSession
	loading bool
	// gen は状態を変更するたびに増える。Initializeの検証中に
	// ログイン等が行われた場合に古い検証結果で上書きしないために使う。
	gen uint64

	subs   map[int]func(model.AuthSession)
	nextID int
}

// NewContainer はContainerを生成する。
func NewContainer(cfg Config) *Container {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Container{
		store:     cfg.Store,
		validator: cfg.Validator,
		navigate:  cfg.Navigate,
		loginPath: cfg.LoginPath,
		logger:    cfg.Logger,
		now:       cfg.Now,
		loading:   true,
		subs:      make(map[int]func(model.AuthSession)),
	}
}

// Initialize は保存済みトークンを読み込み、2段階で検証する。
// まずexpクレームで期限を確認し、期限内であればリモートで検証する。
// いずれかに失敗した場合は保存済みトークンを破棄する。
func (c *Container) Initialize(ctx context.Context) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	session, ok := c.restore(ctx)

	c.writeMu.Lock()
	c.mu.Lock()
	if c.gen != gen {
		// 検証中にログイン・ログアウトが行われた
		c.loading = false
		c.mu.Unlock()
		c.writeMu.Unlock()
		c.notify()
		return
	}
	if ok {
		c.session = session
	} else {
		c.session = model.AuthSession{}
	}
	c.loading = false
	c.gen++
	c.mu.Unlock()

	// 破棄が終わるまでLoginはストアに書き込めない
	if !ok {
		c.discardStored(ctx)
	}
	c.writeMu.Unlock()
	c.notify()
}

func (c *Container) restore(ctx context.Context) (model.AuthSession, bool) {
	token, found, err := c.store.GetItem(ctx, storage.KeyToken)
	if err != nil {
		c.logger.Warn("保存済みトークンの読み込みに失敗しました", slog.String("error", err.Error()))
		return model.AuthSession{}, false
	}
	if !found || token == "" {
		return model.AuthSession{}, false
	}

	claims, err := DecodeToken(token)
	if err != nil {
		c.logger.Info("保存済みトークンを破棄します", slog.String("reason", "malformed"))
		return model.AuthSession{}, false
	}
	if claims.Expired(c.now()) {
		c.logger.Info("保存済みトークンを破棄します", slog.String("reason", "expired"))
		return model.AuthSession{}, false
	}

	if c.validator != nil {
		if err := c.validator.Validate(ctx, token); err != nil {
			c.logger.Info("保存済みトークンを破棄します",
				slog.String("reason", "remote_validation_failed"),
				slog.String("error", err.Error()),
			)
			return model.AuthSession{}, false
		}
	}

	refresh, _, err := c.store.GetItem(ctx, storage.KeyRefreshToken)
	if err != nil {
		refresh = ""
	}

	return model.AuthSession{
		Token:        token,
		RefreshToken: refresh,
		User:         claims.User(),
		ExpiresAt:    claims.ExpiresAt,
	}, true
}

// Login はトークンを保存し、ペイロードからユーザーを復元する。
// ペイロードが読み取れない場合もトークンは保存するが、ユーザーはnilになり未認証として扱う。
// リフレッシュトークンが空の場合は以前のセッションのものを削除する。
func (c *Container) Login(ctx context.Context, token, refreshToken string) error {
	c.writeMu.Lock()
	if err := c.storeTokens(ctx, token, refreshToken); err != nil {
		c.writeMu.Unlock()
		return err
	}

	session := model.AuthSession{Token: token, RefreshToken: refreshToken}
	if claims, err := DecodeToken(token); err == nil {
		session.User = claims.User()
		session.ExpiresAt = claims.ExpiresAt
	} else {
		c.logger.Warn("ログイン時のトークンを解析できませんでした", slog.String("error", err.Error()))
	}

	c.mu.Lock()
	c.session = session
	c.loading = false
	c.gen++
	c.mu.Unlock()
	c.writeMu.Unlock()

	c.notify()
	return nil
}

func (c *Container) storeTokens(ctx context.Context, token, refreshToken string) error {
	if err := c.store.SetItem(ctx, storage.KeyToken, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if refreshToken == "" {
		if err := c.store.RemoveItem(ctx, storage.KeyRefreshToken); err != nil {
			return fmt.Errorf("failed to remove refresh token: %w", err)
		}
		return nil
	}
	if err := c.store.SetItem(ctx, storage.KeyRefreshToken, refreshToken); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// Logout は保存済みトークンとメモリ上のセッションを消去し、ログイン画面へ遷移させる。
func (c *Container) Logout(ctx context.Context) {
	c.writeMu.Lock()
	c.discardStored(ctx)

	c.mu.Lock()
	c.session = model.AuthSession{}
	c.loading = false
	c.gen++
	c.mu.Unlock()
	c.writeMu.Unlock()

	c.notify()
	if c.navigate != nil {
		c.navigate(c.loginPath)
	}
}

// SetToken はトークンのみを差し替える。空文字列はトークンの削除を意味する。
func (c *Container) SetToken(ctx context.Context, token string) error {
	c.writeMu.Lock()
	var err error
	if token == "" {
		err = c.store.RemoveItem(ctx, storage.KeyToken)
	} else {
		err = c.store.SetItem(ctx, storage.KeyToken, token)
	}
	if err != nil {
		c.writeMu.Unlock()
		return fmt.Errorf("failed to save token: %w", err)
	}

	c.mu.Lock()
	c.session.Token = token
	c.session.ExpiresAt = nil
	if claims, derr := DecodeToken(token); derr == nil {
		c.session.ExpiresAt = claims.ExpiresAt
	}
	c.gen++
	c.mu.Unlock()
	c.writeMu.Unlock()

	c.notify()
	return nil
}

// SetUser はユーザーを差し替える。nilはユーザーの削除を意味する。
func (c *Container) SetUser(user *model.User) {
	c.mu.Lock()
	if user != nil {
		u := *user
		user = &u
	}
	c.session.User = user
	c.gen++
	c.mu.Unlock()

	c.notify()
}

// UpdateUser はユーザーが存在する場合のみパッチを適用する。
// 適用した場合はtrueを返す。
func (c *Container) UpdateUser(patch model.UserPatch) bool {
	c.mu.Lock()
	if c.session.User == nil {
		c.mu.Unlock()
		return false
	}
	u := patch.Apply(*c.session.User)
	c.session.User = &u
	c.gen++
	c.mu.Unlock()

	c.notify()
	return true
}

// IsAuthenticated はトークンとユーザーが揃い、期限切れでない場合にtrueを返す。
func (c *Container) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Authenticated(c.now())
}

// Loading は起動時の検証が完了していない間trueを返す。
func (c *Container) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Token は現在のトークンを返す。
func (c *Container) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Token
}

// Snapshot は現在のセッションのコピーを返す。
func (c *Container) Snapshot() model.AuthSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Subscribe は状態変更の通知を受け取る関数を登録し、登録解除用の関数を返す。
func (c *Container) Subscribe(fn func(model.AuthSession)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Now は判定に使う現在時刻を返す。
func (c *Container) Now() time.Time {
	return c.now()
}

func (c *Container) snapshotLocked() model.AuthSession {
	s := c.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (c *Container) notify() {
	c.mu.RLock()
	s := c.snapshotLocked()
	fns := make([]func(model.AuthSession), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (c *Container) discardStored(ctx context.Context) {
	err := errors.Join(
		c.store.RemoveItem(ctx, storage.KeyToken),
		c.store.RemoveItem(ctx, storage.KeyRefreshToken),
	)
	if err != nil {
		c.logger.Warn("保存済みトークンの削除に失敗しました", slog.String("error", err.Error()))
	}
}
