package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/backend"
	"github.com/hitoshi/storefront/internal/model"
)

func TestCatalogHandler_ListRestaurants_PassesFilters(t *testing.T) {
	var got backend.RestaurantQuery
	svc := &mockCatalogService{
		listRestaurantsFn: func(ctx context.Context, q backend.RestaurantQuery) ([]model.Restaurant, error) {
			got = q
			return []model.Restaurant{{ID: "r1", Name: "Trattoria"}}, nil
		},
	}
	h := NewCatalogHandler(svc)

	w := httptest.NewRecorder()
	h.ListRestaurants(w, httptest.NewRequest(http.MethodGet, "/api/restaurants?category=c1&search=pizza", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.CategoryID != "c1" || got.Search != "pizza" {
		t.Errorf("query = %+v", got)
	}
	var list []model.Restaurant
	decodeBody(t, w, &list)
	if len(list) != 1 || list[0].ID != "r1" {
		t.Errorf("list = %+v", list)
	}
}

func TestCatalogHandler_GetRestaurant(t *testing.T) {
	svc := &mockCatalogService{
		loadRestaurantPageFn: func(ctx context.Context, id string) (*model.RestaurantPage, error) {
			if id != "r1" {
				return nil, &apiclient.Error{Status: http.StatusNotFound, Message: "not found"}
			}
			return &model.RestaurantPage{
				Restaurant: &model.Restaurant{ID: "r1"},
				MenuItems:  []model.MenuItem{{ID: "m1", RestaurantID: "r1"}},
			}, nil
		},
	}
	h := NewCatalogHandler(svc)

	w := httptest.NewRecorder()
	h.GetRestaurant(w, newRequest(t, http.MethodGet, "/api/restaurants/r1", nil, "", map[string]string{"id": "r1"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var page model.RestaurantPage
	decodeBody(t, w, &page)
	if page.Restaurant == nil || len(page.MenuItems) != 1 {
		t.Errorf("page = %+v", page)
	}

	w = httptest.NewRecorder()
	h.GetRestaurant(w, newRequest(t, http.MethodGet, "/api/restaurants/zz", nil, "", map[string]string{"id": "zz"}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing restaurant status = %d, want 404", w.Code)
	}
}

func TestCatalogHandler_ListCategories(t *testing.T) {
	h := NewCatalogHandler(&mockCatalogService{})

	w := httptest.NewRecorder()
	h.ListCategories(w, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	var list []model.Category
	decodeBody(t, w, &list)
	if len(list) != 1 || list[0].Name != "Pizza" {
		t.Errorf("categories = %+v", list)
	}
}
