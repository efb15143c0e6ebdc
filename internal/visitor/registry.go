package visitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/storage"
	"github.com/hitoshi/storefront/internal/wishlist"
)

// DefaultIdleTTL は未使用のワークスペースを破棄するまでの時間のデフォルト値。
const DefaultIdleTTL = 30 * time.Minute

// defaultInitTimeout は生成時の認証状態の初期化に許す時間。
const defaultInitTimeout = 10 * time.Second

// Config はRegistryの依存関係と設定。
type Config struct {
	Store       storage.Store
	Validator   auth.Validator
	Sanitizer   security.Sanitizer
	LoginPath   string
	IdleTTL     time.Duration
	InitTimeout time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// Registry は訪問者IDごとのWorkspaceを保持する。
type Registry struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	workspaces map[string]*Workspace
	// creating は同じ訪問者IDのWorkspace生成を1回にまとめる。
	creating singleflight.Group
}

// NewRegistry はRegistryを生成する。
func NewRegistry(cfg Config) *Registry {
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = security.NewSanitizer()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = defaultInitTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		workspaces: make(map[string]*Workspace),
	}
}

// Get は訪問者のWorkspaceを返す。存在しない場合は生成し、
// 保存済みトークンの検証をバックグラウンドで開始する。
// 生成時のストア読み込みはレジストリのロックの外で行う。
func (r *Registry) Get(ctx context.Context, id string) *Workspace {
	now := r.cfg.Now()

	if ws, ok := r.Lookup(id); ok {
		ws.touch(now)
		return ws
	}

	v, _, _ := r.creating.Do(id, func() (any, error) {
		if ws, ok := r.Lookup(id); ok {
			return ws, nil
		}
		ws := r.build(ctx, id, now)

		r.mu.Lock()
		r.workspaces[id] = ws
		r.mu.Unlock()

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer close(ws.ready)
			initCtx, cancel := context.WithTimeout(r.ctx, r.cfg.InitTimeout)
			defer cancel()
			ws.Auth.Initialize(initCtx)
		}()
		return ws, nil
	})

	ws := v.(*Workspace)
	ws.touch(now)
	return ws
}

// build はWorkspaceを組み立て、永続化されたウィッシュリストを読み込む。
func (r *Registry) build(ctx context.Context, id string, now time.Time) *Workspace {
	ws := newWorkspace(id, now)
	store := storage.Scoped(r.cfg.Store, id)
	logger := r.cfg.Logger.With(slog.String("visitor_id", id))

	ws.Wishlist = wishlist.New(ctx, store, r.cfg.Sanitizer, logger)
	ws.Auth = auth.NewContainer(auth.Config{
		Store:     store,
		Validator: r.cfg.Validator,
		Navigate:  ws.navigate,
		LoginPath: r.cfg.LoginPath,
		Logger:    logger,
		Now:       r.cfg.Now,
	})
	ws.Auth.Subscribe(ws.onAuthChange)
	return ws
}

// Lookup は生成済みのWorkspaceを返す。
func (r *Registry) Lookup(id string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[id]
	return ws, ok
}

// Len は保持しているWorkspaceの数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Evict はIdleTTL以上使用されていないWorkspaceを破棄し、破棄した数を返す。
// 永続化されたウィッシュリストとトークンはストアに残る。
func (r *Registry) Evict() int {
	now := r.cfg.Now()

	r.mu.Lock()
	var idle []*Workspace
	for id, ws := range r.workspaces {
		if ws.idleSince(now) >= r.cfg.IdleTTL {
			idle = append(idle, ws)
			delete(r.workspaces, id)
		}
	}
	r.mu.Unlock()

	for _, ws := range idle {
		ws.close()
	}
	if len(idle) > 0 {
		r.cfg.Logger.Info("未使用のワークスペースを破棄しました",
			slog.Int("evicted", len(idle)),
			slog.Int("remaining", r.Len()),
		)
	}
	return len(idle)
}

// Run はctxが終了するまで定期的にEvictを実行する。
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict()
		}
	}
}

// ListenUnauthorized はAPIクライアントの401通知を購読し、
// 拒否されたトークンを保持するWorkspaceをログアウトさせる。
func (r *Registry) ListenUnauthorized(b *apiclient.Broadcaster) (unsubscribe func()) {
	return b.Subscribe(func(e apiclient.UnauthorizedEvent) {
		if e.Token == "" {
			return
		}

		r.mu.Lock()
		var targets []*Workspace
		for _, ws := range r.workspaces {
			if ws.Auth.Token() == e.Token {
				targets = append(targets, ws)
			}
		}
		r.mu.Unlock()

		for _, ws := range targets {
			r.cfg.Logger.Warn("認証が拒否されたためログアウトします",
				slog.String("visitor_id", ws.ID),
				slog.String("method", e.Method),
				slog.String("path", e.Path),
			)
			ws.Auth.Logout(r.ctx)
		}
	})
}

// Close は初期化中の処理を中断し、全てのWorkspaceを破棄する。
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	all := r.workspaces
	r.workspaces = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range all {
		ws.close()
	}
}
