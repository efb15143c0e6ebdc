package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/backend"
	"github.com/hitoshi/storefront/internal/model"
)

// CatalogServiceInterface は公開カタログの取得に必要なインターフェース。
type CatalogServiceInterface interface {
	ListRestaurants(ctx context.Context, q backend.RestaurantQuery) ([]model.Restaurant, error)
	LoadRestaurantPage(ctx context.Context, id string) (*model.RestaurantPage, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListHeroSlides(ctx context.Context) ([]model.HeroSlide, error)
}

// CatalogHandler はログイン不要のカタログのHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListRestaurants はレストラン一覧を返す。categoryとsearchで絞り込める。
// GET /api/restaurants
func (h *CatalogHandler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	q := backend.RestaurantQuery{
		CategoryID: r.URL.Query().Get("category"),
		Search:     r.URL.Query().Get("search"),
	}
	list, err := h.service.ListRestaurants(r.Context(), q)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetRestaurant はレストランの詳細とメニューを返す。
// GET /api/restaurants/{id}
func (h *CatalogHandler) GetRestaurant(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.LoadRestaurantPage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListCategories はカテゴリ一覧を返す。
// GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListCategories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListHeroSlides はトップページのスライド一覧を返す。
// GET /api/hero-slides
func (h *CatalogHandler) ListHeroSlides(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListHeroSlides(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
