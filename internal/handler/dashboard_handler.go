package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/backend"
	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/model"
)

// DashboardServiceInterface は顧客・管理者・店舗オーナー画面が使うリモートAPIのインターフェース。
// 全ての呼び出しにログイン中のトークンを付与する。
type DashboardServiceInterface interface {
	// 顧客
	MyOrders(ctx context.Context, token string) ([]model.Order, error)

	// 管理者
	AdminListRestaurants(ctx context.Context, token string) ([]model.Restaurant, error)
	ApproveRestaurant(ctx context.Context, token, id string) error
	DeleteRestaurant(ctx context.Context, token, id string) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, token string, c model.Category) (*model.Category, error)
	UpdateCategory(ctx context.Context, token, id string, c model.Category) (*model.Category, error)
	DeleteCategory(ctx context.Context, token, id string) error

	// 特権管理者
	ListHeroSlides(ctx context.Context) ([]model.HeroSlide, error)
	CreateHeroSlide(ctx context.Context, token string, s model.HeroSlide) (*model.HeroSlide, error)
	UpdateHeroSlide(ctx context.Context, token, id string, s model.HeroSlide) (*model.HeroSlide, error)
	DeleteHeroSlide(ctx context.Context, token, id string) error

	// 店舗オーナー
	MyRestaurants(ctx context.Context, token string) ([]model.Restaurant, error)
	UpdateRestaurant(ctx context.Context, token, id string, update backend.RestaurantUpdate) (*model.Restaurant, error)
	ListMenuItems(ctx context.Context, restaurantID string) ([]model.MenuItem, error)
	CreateMenuItem(ctx context.Context, token string, in backend.MenuItemInput) (*model.MenuItem, error)
	UpdateMenuItem(ctx context.Context, token, id string, in backend.MenuItemInput) (*model.MenuItem, error)
	DeleteMenuItem(ctx context.Context, token, id string) error
	ListRestaurantOrders(ctx context.Context, token, restaurantID string) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, token, id string, status model.OrderStatus) (*model.Order, error)
}

// DashboardHandler はロールで保護された画面のHTTPハンドラー。
// ロールの判定はルーターでguard.Middleware.Protectが行う。
type DashboardHandler struct {
	service    DashboardServiceInterface
	workspaces Workspaces
	validator  *form.Validator
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface, workspaces Workspaces, validator *form.Validator) *DashboardHandler {
	return &DashboardHandler{
		service:    service,
		workspaces: workspaces,
		validator:  validator,
	}
}

// token はログイン中のトークンを返す。取得できない場合はエラーレスポンスを書き込み空文字列を返す。
func (h *DashboardHandler) token(w http.ResponseWriter, r *http.Request) string {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return ""
	}
	return requireToken(w, ws)
}

// bind はボディを読み込んで検証する。失敗した場合はエラーレスポンスを書き込みfalseを返す。
func (h *DashboardHandler) bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if err := h.validator.Struct(v); err != nil {
		handleServiceError(w, err)
		return false
	}
	return true
}

// respond はエラーがあれば変換して書き込み、なければvを書き込む。
func respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if v == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, status, v)
}

// --- 顧客 ---

// MyOrders は注文履歴を返す。
// GET /api/customer/orders
func (h *DashboardHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	list, err := h.service.MyOrders(r.Context(), token)
	respond(w, http.StatusOK, list, err)
}

// --- 管理者 ---

// AdminListRestaurants は承認待ちを含む全レストランを返す。
// GET /api/admin/restaurants
func (h *DashboardHandler) AdminListRestaurants(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	list, err := h.service.AdminListRestaurants(r.Context(), token)
	respond(w, http.StatusOK, list, err)
}

// ApproveRestaurant はレストランを承認する。
// PATCH /api/admin/restaurants/{id}/approve
func (h *DashboardHandler) ApproveRestaurant(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	respond(w, http.StatusNoContent, nil, h.service.ApproveRestaurant(r.Context(), token, chi.URLParam(r, "id")))
}

// DeleteRestaurant はレストランを削除する。
// DELETE /api/admin/restaurants/{id}
func (h *DashboardHandler) DeleteRestaurant(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	respond(w, http.StatusNoContent, nil, h.service.DeleteRestaurant(r.Context(), token, chi.URLParam(r, "id")))
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/admin/categories
func (h *DashboardHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListCategories(r.Context())
	respond(w, http.StatusOK, list, err)
}

func categoryFromForm(f form.CategoryForm) model.Category {
	return model.Category{Name: f.Name, Description: f.Description, Image: f.Image}
}

// CreateCategory はカテゴリを作成する。
// POST /api/admin/categories
func (h *DashboardHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	var req form.CategoryForm
	if !h.bind(w, r, &req) {
		return
	}
	c, err := h.service.CreateCategory(r.Context(), token, categoryFromForm(req))
	respond(w, http.StatusCreated, c, err)
}

// UpdateCategory はカテゴリを更新する。
// PUT /api/admin/categories/{id}
func (h *DashboardHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	var req form.CategoryForm
	if !h.bind(w, r, &req) {
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), token, chi.URLParam(r, "id"), categoryFromForm(req))
	respond(w, http.StatusOK, c, err)
}

// DeleteCategory はカテゴリを削除する。
// DELETE /api/admin/categories/{id}
func (h *DashboardHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	respond(w, http.StatusNoContent, nil, h.service.DeleteCategory(r.Context(), token, chi.URLParam(r, "id")))
}

// --- 特権管理者 ---

// ListHeroSlides はスライド一覧を返す。
// GET /api/super-admin/hero-slides
func (h *DashboardHandler) ListHeroSlides(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListHeroSlides(r.Context())
	respond(w, http.StatusOK, list, err)
}

func heroSlideFromForm(f form.HeroSlideForm) model.HeroSlide {
	return model.HeroSlide{
		Title:    f.Title,
		Subtitle: f.Subtitle,
		Image:    f.Image,
		LinkURL:  f.LinkURL,
		Position: f.Position,
		Active:   f.Active,
	}
}

// CreateHeroSlide はスライドを作成する。
// POST /api/super-admin/hero-slides
func (h *DashboardHandler) CreateHeroSlide(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	var req form.HeroSlideForm
	if !h.bind(w, r, &req) {
		return
	}
	s, err := h.service.CreateHeroSlide(r.Context(), token, heroSlideFromForm(req))
	respond(w, http.StatusCreated, s, err)
}

// UpdateHeroSlide はスライドを更新する。
// PUT /api/super-admin/hero-slides/{id}
func (h *DashboardHandler) UpdateHeroSlide(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	var req form.HeroSlideForm
	if !h.bind(w, r, &req) {
		return
	}
	s, err := h.service.UpdateHeroSlide(r.Context(), token, chi.URLParam(r, "id"), heroSlideFromForm(req))
	respond(w, http.StatusOK, s, err)
}

// DeleteHeroSlide はスライドを削除する。
// DELETE /api/super-admin/hero-slides/{id}
func (h *DashboardHandler) DeleteHeroSlide(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	respond(w, http.StatusNoContent, nil, h.service.DeleteHeroSlide(r.Context(), token, chi.URLParam(r, "id")))
}

// --- 店舗オーナー ---

// MyRestaurants は自分のレストランを返す。
// GET /api/restaurant-owner/restaurants
func (h *DashboardHandler) MyRestaurants(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	list, err := h.service.MyRestaurants(r.Context(), token)
	respond(w, http.StatusOK, list, err)
}

// UpdateRestaurant はレストラン情報を更新する。指定されなかった項目は変更しない。
// PUT /api/restaurant-owner/restaurants/{id}
func (h *DashboardHandler) UpdateRestaurant(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	var req form.RestaurantForm
	if !h.bind(w, r, &req) {
		return
	}
	rest, err := h.service.UpdateRestaurant(r.Context(), token, chi.URLParam(r, "id"), backend.RestaurantUpdate{
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		Phone:       req.Phone,
		Image:       req.Image,
		CategoryID:  req.CategoryID,
	})
	respond(w, http.StatusOK, rest, err)
}

// ListMenuItems はレストランのメニューを返す。
// GET /api/restaurant-owner/restaurants/{id}/menu-items
func (h *DashboardHandler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListMenuItems(r.Context(), chi.URLParam(r, "id"))
	respond(w, http.StatusOK, list, err)
}

func menuItemFromForm(f form.MenuItemForm) backend.MenuItemInput {
	return backend.MenuItemInput{
		RestaurantID: f.RestaurantID,
		Name:         f.Name,
		Description:  f.Description,
		Price:        f.Price,
		Image:        f.Image,
		CategoryID:   f.CategoryID,
		Available:    f.Available,
	}
}

// CreateMenuItem はメニュー項目を作成する。
// POST /api/restaurant-owner/menu-items
func (h *DashboardHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	var req form.MenuItemForm
	if !h.bind(w, r, &req) {
		return
	}
	item, err := h.service.CreateMenuItem(r.Context(), token, menuItemFromForm(req))
	respond(w, http.StatusCreated, item, err)
}

// UpdateMenuItem はメニュー項目を更新する。
// PUT /api/restaurant-owner/menu-items/{id}
func (h *DashboardHandler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	var req form.MenuItemForm
	if !h.bind(w, r, &req) {
		return
	}
	item, err := h.service.UpdateMenuItem(r.Context(), token, chi.URLParam(r, "id"), menuItemFromForm(req))
	respond(w, http.StatusOK, item, err)
}

// DeleteMenuItem はメニュー項目を削除する。
// DELETE /api/restaurant-owner/menu-items/{id}
func (h *DashboardHandler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	respond(w, http.StatusNoContent, nil, h.service.DeleteMenuItem(r.Context(), token, chi.URLParam(r, "id")))
}

// ListRestaurantOrders は店舗宛の注文を返す。
// GET /api/restaurant-owner/restaurants/{id}/orders
func (h *DashboardHandler) ListRestaurantOrders(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	list, err := h.service.ListRestaurantOrders(r.Context(), token, chi.URLParam(r, "id"))
	respond(w, http.StatusOK, list, err)
}

// UpdateOrderStatus は注文の状態を更新する。
// PATCH /api/restaurant-owner/orders/{id}/status
func (h *DashboardHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	token := h.token(w, r)
	if token == "" {
		return
	}
	var req form.OrderStatusForm
	if !h.bind(w, r, &req) {
		return
	}
	order, err := h.service.UpdateOrderStatus(r.Context(), token, chi.URLParam(r, "id"), model.OrderStatus(req.Status))
	respond(w, http.StatusOK, order, err)
}
