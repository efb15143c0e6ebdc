package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/middleware"
)

// HealthChecker はストアへの疎通を確認する。
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc は関数をHealthCheckerとして扱うためのアダプタ。
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck はf(ctx)を呼び出す。
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	Visitor           middleware.VisitorConfig
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用
	HealthChecker HealthChecker
	Metrics       http.Handler

	// 訪問者の状態と画面保護
	Workspaces Workspaces
	Guard      *guard.Middleware
	Validator  *form.Validator

	// リモートAPI
	AuthService      AuthServiceInterface
	AuthConfig       AuthHandlerConfig
	CatalogService   CatalogServiceInterface
	DashboardService DashboardServiceInterface
	CheckoutService  CheckoutServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Visitor → RateLimit(General) → CSRF
//
// /health と /metrics は訪問者Cookieを発行しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validator := deps.Validator
	if validator == nil {
		validator = form.NewValidator()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Workspaces, validator, deps.AuthConfig)
	cartHandler := NewCartHandler(deps.Workspaces, deps.CheckoutService, validator)
	wishlistHandler := NewWishlistHandler(deps.Workspaces, validator)
	catalogHandler := NewCatalogHandler(deps.CatalogService)
	checkoutHandler := NewCheckoutHandler(deps.Workspaces, deps.CheckoutService)
	guardHandler := NewGuardHandler(deps.Guard, deps.Workspaces, logger)
	dashboardHandler := NewDashboardHandler(deps.DashboardService, deps.Workspaces, validator)

	// --- 運用 ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- 訪問者単位のルート ---
	// ミドルウェアスタック: Visitor → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewVisitorMiddleware(deps.Visitor))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		// 認証
		r.Route("/auth", func(r chi.Router) {
			// ログイン・会員登録は専用のレート制限を追加
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Patch("/me", authHandler.UpdateMe)

			// ソーシャルログイン
			r.Get("/oauth/config", authHandler.OAuthConfig)
			r.Get("/oauth/{provider}", authHandler.OAuthStart)
			r.Get("/callback", authHandler.Callback)
		})

		// カート
		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Get("/summary", cartHandler.Summary)
			r.Post("/coupon", cartHandler.ApplyCoupon)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{id}", cartHandler.UpdateItem)
			r.Delete("/items/{id}", cartHandler.RemoveItem)
		})

		// ウィッシュリスト
		r.Route("/api/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.List)
			r.Post("/", wishlistHandler.Add)
			r.Get("/{id}", wishlistHandler.Status)
			r.Delete("/{id}", wishlistHandler.Remove)
		})

		// 公開カタログ
		r.Get("/api/restaurants", catalogHandler.ListRestaurants)
		r.Get("/api/restaurants/{id}", catalogHandler.GetRestaurant)
		r.Get("/api/categories", catalogHandler.ListCategories)
		r.Get("/api/hero-slides", catalogHandler.ListHeroSlides)

		// チェックアウト（ゲスト続行可）
		r.With(deps.Guard.Protect("/checkout")).Post("/api/checkout", checkoutHandler.PlaceOrder)
		r.Get("/api/actions/{action}", checkoutHandler.ActionState)

		// 画面保護
		r.Route("/api/guard", func(r chi.Router) {
			r.Get("/check", guardHandler.Check)
			r.Get("/watch", guardHandler.Watch)
			r.Post("/override", guardHandler.Override)
			r.Post("/login-now", guardHandler.LoginNow)
		})

		// 顧客
		r.Route("/api/customer", func(r chi.Router) {
			r.Use(deps.Guard.Protect("/customer"))
			r.Get("/orders", dashboardHandler.MyOrders)
		})

		// 管理者
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(deps.Guard.Protect("/admin"))
			r.Get("/restaurants", dashboardHandler.AdminListRestaurants)
			r.Patch("/restaurants/{id}/approve", dashboardHandler.ApproveRestaurant)
			r.Delete("/restaurants/{id}", dashboardHandler.DeleteRestaurant)

			r.Get("/categories", dashboardHandler.ListCategories)
			r.Post("/categories", dashboardHandler.CreateCategory)
			r.Put("/categories/{id}", dashboardHandler.UpdateCategory)
			r.Delete("/categories/{id}", dashboardHandler.DeleteCategory)
		})

		// 特権管理者
		r.Route("/api/super-admin", func(r chi.Router) {
			r.Use(deps.Guard.Protect("/super-admin"))
			r.Get("/hero-slides", dashboardHandler.ListHeroSlides)
			r.Post("/hero-slides", dashboardHandler.CreateHeroSlide)
			r.Put("/hero-slides/{id}", dashboardHandler.UpdateHeroSlide)
			r.Delete("/hero-slides/{id}", dashboardHandler.DeleteHeroSlide)
		})

		// 店舗オーナー
		r.Route("/api/restaurant-owner", func(r chi.Router) {
			r.Use(deps.Guard.Protect("/restaurant-owner"))
			r.Get("/restaurants", dashboardHandler.MyRestaurants)
			r.Put("/restaurants/{id}", dashboardHandler.UpdateRestaurant)
			r.Get("/restaurants/{id}/menu-items", dashboardHandler.ListMenuItems)
			r.Get("/restaurants/{id}/orders", dashboardHandler.ListRestaurantOrders)

			r.Post("/menu-items", dashboardHandler.CreateMenuItem)
			r.Put("/menu-items/{id}", dashboardHandler.UpdateMenuItem)
			r.Delete("/menu-items/{id}", dashboardHandler.DeleteMenuItem)

			r.Patch("/orders/{id}/status", dashboardHandler.UpdateOrderStatus)
		})
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}

// healthHandler はストアへの疎通を確認し、失敗した場合は503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.HealthCheck(r.Context()); err != nil {
				slog.Warn("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
