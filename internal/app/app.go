package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/backend"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/config"
	"github.com/hitoshi/storefront/internal/database"
	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/handler"
	"github.com/hitoshi/storefront/internal/logger"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/storage"
	"github.com/hitoshi/storefront/internal/visitor"
	"github.com/hitoshi/storefront/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd.Standalone() {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := cmd.Check(cfg); err != nil {
		return err
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
		slog.String("store", cfg.StoreDriver),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// stateStore はクライアント状態の保存先と、その死活監視・後始末をまとめたもの。
type stateStore struct {
	store  storage.Store
	health handler.HealthChecker
	// db はpostgresドライバーの場合のみ設定される。
	db    *sql.DB
	close func()
}

// openStateStore はSTORE_DRIVERに応じて保存先を開く。
func openStateStore(ctx context.Context, cfg *config.Config) (*stateStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return &stateStore{
			store:  storage.NewPostgresStore(db),
			health: handler.HealthCheckFunc(db.PingContext),
			db:     db,
			close:  func() { db.Close() },
		}, nil

	case config.StoreRedis:
		client, err := storage.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		slog.Info("redis connection established")
		return &stateStore{
			store: storage.NewRedisStore(client, cfg.RedisStateTTL),
			health: handler.HealthCheckFunc(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}),
			close: func() { client.Close() },
		}, nil

	default:
		return &stateStore{
			store: storage.NewMemoryStore(),
			close: func() {},
		}, nil
	}
}

// newHandler は全依存関係をワイヤリングしたHTTPハンドラーを構築する。
// 戻り値のshutdownはバックグラウンド処理を停止し、訪問者の状態を破棄する。
func newHandler(ctx context.Context, cfg *config.Config, st *stateStore) (http.Handler, func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	// 1. メトリクス
	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)

	// 2. リモートAPIクライアント
	burst := int(math.Ceil(cfg.APIRateLimit))
	if burst < 1 {
		burst = 1
	}
	client, err := apiclient.New(apiclient.Config{
		BaseURL:    cfg.APIBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
		Logger:     slog.Default(),
		Limiter:    rate.NewLimiter(rate.Limit(cfg.APIRateLimit), burst),
		Metrics:    collector,
	})
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create API client: %w", err)
	}

	// 3. ドメインサービス
	sanitizer := security.NewSanitizer()
	api := backend.New(client, sanitizer)
	validator := form.NewValidator()
	checkoutService := checkout.NewService(api, validator, cart.Pricing{
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
		DeliveryFee:           cfg.DeliveryFee,
	}, slog.Default())

	// 4. 訪問者ごとの状態
	workspaces := visitor.NewRegistry(visitor.Config{
		Store:     st.store,
		Validator: api,
		Sanitizer: sanitizer,
		LoginPath: cfg.LoginPath,
		IdleTTL:   cfg.VisitorIdleTTL,
		Logger:    slog.Default(),
	})
	unsubscribe := workspaces.ListenUnauthorized(client.Broadcaster())
	go workspaces.Run(ctx)
	metrics.RegisterActiveVisitors(promReg, workspaces.Len)

	// 5. 画面保護
	guardMiddleware := guard.NewMiddleware(
		guard.DefaultAccessTable(),
		handler.SubjectFromWorkspaces(workspaces),
		guard.Options{
			Ticks:        cfg.GuardCountdownSeconds,
			Interval:     time.Second,
			LoginPath:    cfg.LoginPath,
			FallbackPath: cfg.GuardFallbackPath,
			Observer:     collector,
		},
	)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Visitor: middleware.VisitorConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Logger:      slog.Default(),

		HealthChecker: st.health,
		Metrics:       metrics.Handler(promReg),

		Workspaces: workspaces,
		Guard:      guardMiddleware,
		Validator:  validator,

		AuthService:      api,
		AuthConfig:       handler.AuthHandlerConfig{LoginPath: cfg.LoginPath, HomePath: "/"},
		CatalogService:   api,
		DashboardService: api,
		CheckoutService:  checkoutService,
	})

	shutdown := func() {
		cancel()
		unsubscribe()
		rateLimiter.Stop()
		workspaces.Close()
	}
	return router, shutdown, nil
}

// runServe はAPIサーバーモードで起動する。
// 状態の保存先を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	// 1. 状態の保存先
	st, err := openStateStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// 2. postgresの場合は保持期間を過ぎた状態を日次で削除する
	if st.db != nil {
		job := cleanup.NewStateCleanupJob(st.db, slog.Default(), cfg.StateRetentionDays)
		go job.RunDaily(ctx)
	}

	// 3. ハンドラーの構築
	router, shutdown, err := newHandler(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer shutdown()

	// 4. HTTPサーバーの起動
	// SSEのハンドラーは自身の書き込み期限を解除する。
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// client_stateの保持期間クリーンアップを日次で実行する。postgresドライバー専用。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job := cleanup.NewStateCleanupJob(db, slog.Default(), cfg.StateRetentionDays)
	slog.Info("worker starting",
		slog.Int("retention_days", cfg.StateRetentionDays),
	)
	job.RunDaily(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
