package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/visitor"
)

func newTestDashboardHandler(t *testing.T, svc *mockDashboardService, role model.Role) (*DashboardHandler, *visitor.Workspace, string) {
	t.Helper()
	reg := newTestRegistry(t)
	ws := readyWorkspace(t, reg, "v1")
	token := ""
	if role != "" {
		token = loginAs(t, ws, "u1", role)
	}
	return NewDashboardHandler(svc, reg, form.NewValidator()), ws, token
}

func TestDashboardHandler_RequiresToken(t *testing.T) {
	svc := &mockDashboardService{}
	h, _, _ := newTestDashboardHandler(t, svc, "")

	w := httptest.NewRecorder()
	h.MyOrders(w, newRequest(t, http.MethodGet, "/api/customer/orders", nil, "v1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if code := errorCode(t, w); code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q", code)
	}
}

func TestDashboardHandler_MyOrders(t *testing.T) {
	svc := &mockDashboardService{}
	h, _, token := newTestDashboardHandler(t, svc, model.RoleCustomer)

	w := httptest.NewRecorder()
	h.MyOrders(w, newRequest(t, http.MethodGet, "/api/customer/orders", nil, "v1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.lastToken != token {
		t.Error("request should carry the bearer token")
	}
	var orders []model.Order
	decodeBody(t, w, &orders)
	if len(orders) != 1 || orders[0].ID != "o1" {
		t.Errorf("orders = %+v", orders)
	}
}

func TestDashboardHandler_CreateCategory(t *testing.T) {
	svc := &mockDashboardService{}
	h, _, _ := newTestDashboardHandler(t, svc, model.RoleAdmin)

	w := httptest.NewRecorder()
	h.CreateCategory(w, newRequest(t, http.MethodPost, "/api/admin/categories", map[string]string{}, "v1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty category status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	h.CreateCategory(w, newRequest(t, http.MethodPost, "/api/admin/categories", map[string]string{"name": "Sushi"}, "v1", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", w.Code, w.Body.String())
	}
	var c model.Category
	decodeBody(t, w, &c)
	if c.ID != "new" || c.Name != "Sushi" {
		t.Errorf("category = %+v", c)
	}
}

func TestDashboardHandler_DeleteReturnsNoContent(t *testing.T) {
	svc := &mockDashboardService{}
	h, _, _ := newTestDashboardHandler(t, svc, model.RoleRestaurant)

	w := httptest.NewRecorder()
	h.DeleteMenuItem(w, newRequest(t, http.MethodDelete, "/api/restaurant-owner/menu-items/m1", nil, "v1", map[string]string{"id": "m1"}))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	svc.deleteMenuItemFn = func(ctx context.Context, token, id string) error {
		return &apiclient.Error{Status: http.StatusForbidden, Message: "not your restaurant"}
	}
	w = httptest.NewRecorder()
	h.DeleteMenuItem(w, newRequest(t, http.MethodDelete, "/api/restaurant-owner/menu-items/m2", nil, "v1", map[string]string{"id": "m2"}))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestDashboardHandler_UpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus int
	}{
		{"valid status", "delivered", http.StatusOK},
		{"unknown status", "teleported", http.StatusBadRequest},
		{"missing status", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.OrderStatus
			svc := &mockDashboardService{
				updateOrderStatusFn: func(ctx context.Context, token, id string, status model.OrderStatus) (*model.Order, error) {
					got = status
					return &model.Order{ID: id, Status: status}, nil
				},
			}
			h, _, _ := newTestDashboardHandler(t, svc, model.RoleRestaurant)

			w := httptest.NewRecorder()
			h.UpdateOrderStatus(w, newRequest(t, http.MethodPatch, "/api/restaurant-owner/orders/o1/status",
				map[string]string{"status": tt.status}, "v1", map[string]string{"id": "o1"}))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && got != model.OrderStatus(tt.status) {
				t.Errorf("status sent = %q, want %q", got, tt.status)
			}
		})
	}
}

func TestDashboardHandler_CreateMenuItem_RejectsNonPositivePrice(t *testing.T) {
	svc := &mockDashboardService{}
	h, _, _ := newTestDashboardHandler(t, svc, model.RoleRestaurant)

	w := httptest.NewRecorder()
	h.CreateMenuItem(w, newRequest(t, http.MethodPost, "/api/restaurant-owner/menu-items",
		map[string]any{"restaurant_id": "r1", "name": "Free lunch", "price": "0"}, "v1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	h.CreateMenuItem(w, newRequest(t, http.MethodPost, "/api/restaurant-owner/menu-items",
		map[string]any{"restaurant_id": "r1", "name": "Lunch", "price": "9.90"}, "v1", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", w.Code, w.Body.String())
	}
	var item model.MenuItem
	decodeBody(t, w, &item)
	if item.ID != "m-new" || !item.Price.Equal(mustDecimal(t, "9.90")) {
		t.Errorf("item = %+v", item)
	}
}

func TestDashboardHandler_UpdateRestaurant_PartialUpdate(t *testing.T) {
	svc := &mockDashboardService{}
	h, _, _ := newTestDashboardHandler(t, svc, model.RoleRestaurant)

	w := httptest.NewRecorder()
	h.UpdateRestaurant(w, newRequest(t, http.MethodPut, "/api/restaurant-owner/restaurants/r1",
		map[string]string{"name": "Trattoria Nuova"}, "v1", map[string]string{"id": "r1"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
	}
	var r model.Restaurant
	decodeBody(t, w, &r)
	if r.ID != "r1" || r.Name != "Trattoria Nuova" {
		t.Errorf("restaurant = %+v", r)
	}
}
