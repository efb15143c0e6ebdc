package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/visitor"
)

func newTestCartHandler(t *testing.T) (*CartHandler, *visitor.Registry) {
	t.Helper()
	reg := newTestRegistry(t)
	return NewCartHandler(reg, newTestCheckout(&mockOrderCreator{}), form.NewValidator()), reg
}

func pizza(quantity int) map[string]any {
	body := map[string]any{
		"id":            "m1",
		"restaurant_id": "r1",
		"name":          "Margherita",
		"price":         "12.50",
	}
	if quantity > 0 {
		body["quantity"] = quantity
	}
	return body
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestCartHandler_AddItem_MergesExistingLine(t *testing.T) {
	h, reg := newTestCartHandler(t)
	readyWorkspace(t, reg, "v1")

	for _, q := range []int{0, 0, 5} {
		w := httptest.NewRecorder()
		h.AddItem(w, newRequest(t, http.MethodPost, "/api/cart/items", pizza(q), "v1", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200; body = %s", w.Code, w.Body.String())
		}
	}

	w := httptest.NewRecorder()
	h.Get(w, newRequest(t, http.MethodGet, "/api/cart", nil, "v1", nil))
	var resp cartResponse
	decodeBody(t, w, &resp)

	// 数量指定なしの追加は1ずつ増え、数量指定はその値で置き換える
	if len(resp.Items) != 1 || resp.Items[0].Quantity != 5 || resp.Count != 5 {
		t.Fatalf("cart = %+v, want one line with quantity 5", resp)
	}
	if !resp.Totals.Subtotal.Equal(mustDecimal(t, "62.50")) {
		t.Errorf("subtotal = %s, want 62.50", resp.Totals.Subtotal)
	}
	if !resp.Totals.Delivery.IsZero() {
		t.Errorf("delivery = %s, want free delivery", resp.Totals.Delivery)
	}
	if !resp.Totals.Total.Equal(mustDecimal(t, "62.50")) {
		t.Errorf("total = %s, want 62.50", resp.Totals.Total)
	}
}

func TestCartHandler_AddItem_RejectsInvalidItem(t *testing.T) {
	h, reg := newTestCartHandler(t)
	readyWorkspace(t, reg, "v1")

	w := httptest.NewRecorder()
	h.AddItem(w, newRequest(t, http.MethodPost, "/api/cart/items", map[string]any{"name": "x"}, "v1", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCartHandler_UpdateItem(t *testing.T) {
	h, reg := newTestCartHandler(t)
	ws := readyWorkspace(t, reg, "v1")
	ws.Cart.Add(model.CartLineItem{ID: "m1", RestaurantID: "r1", Name: "Margherita", Price: mustDecimal(t, "10")}, nil)

	tests := []struct {
		name       string
		id         string
		body       any
		wantStatus int
		wantCount  int
	}{
		{"missing quantity", "m1", map[string]any{}, http.StatusBadRequest, 1},
		{"unknown item", "nope", map[string]any{"quantity": 2}, http.StatusNotFound, 1},
		{"set quantity", "m1", map[string]any{"quantity": 4}, http.StatusOK, 4},
		{"zero removes", "m1", map[string]any{"quantity": 0}, http.StatusOK, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.UpdateItem(w, newRequest(t, http.MethodPut, "/api/cart/items/"+tt.id, tt.body, "v1", map[string]string{"id": tt.id}))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusNotFound {
				if code := errorCode(t, w); code != model.ErrCodeItemNotInCart {
					t.Errorf("code = %q, want %q", code, model.ErrCodeItemNotInCart)
				}
			}
			if got := ws.Cart.Count(); got != tt.wantCount {
				t.Errorf("count = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestCartHandler_RemoveAndClear(t *testing.T) {
	h, reg := newTestCartHandler(t)
	ws := readyWorkspace(t, reg, "v1")
	ws.Cart.Add(model.CartLineItem{ID: "m1", RestaurantID: "r1", Price: mustDecimal(t, "10")}, nil)
	ws.Cart.Add(model.CartLineItem{ID: "m2", RestaurantID: "r1", Price: mustDecimal(t, "5")}, nil)
	ws.SetCoupon("SAVE10")

	w := httptest.NewRecorder()
	h.RemoveItem(w, newRequest(t, http.MethodDelete, "/api/cart/items/m1", nil, "v1", map[string]string{"id": "m1"}))
	if w.Code != http.StatusOK || ws.Cart.Count() != 1 {
		t.Fatalf("remove: status = %d, count = %d", w.Code, ws.Cart.Count())
	}

	w = httptest.NewRecorder()
	h.Clear(w, newRequest(t, http.MethodDelete, "/api/cart", nil, "v1", nil))
	var resp cartResponse
	decodeBody(t, w, &resp)
	if resp.Count != 0 || resp.Coupon != "" {
		t.Errorf("after clear = %+v, want empty cart without coupon", resp)
	}
	if !resp.Totals.Delivery.IsZero() || !resp.Totals.Total.IsZero() {
		t.Errorf("empty cart totals = %+v, want zero", resp.Totals)
	}
}

func TestCartHandler_ApplyCoupon(t *testing.T) {
	h, reg := newTestCartHandler(t)
	ws := readyWorkspace(t, reg, "v1")
	ws.Cart.Add(model.CartLineItem{ID: "m1", RestaurantID: "r1", Price: mustDecimal(t, "20")}, nil)

	w := httptest.NewRecorder()
	h.ApplyCoupon(w, newRequest(t, http.MethodPost, "/api/cart/coupon", map[string]string{"code": " save10 "}, "v1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp cartResponse
	decodeBody(t, w, &resp)
	if resp.Coupon != "SAVE10" || !resp.Totals.Discount.Equal(mustDecimal(t, "2")) {
		t.Errorf("response = %+v, want SAVE10 with discount 2", resp)
	}

	w = httptest.NewRecorder()
	h.ApplyCoupon(w, newRequest(t, http.MethodPost, "/api/cart/coupon", map[string]string{"code": "BOGUS"}, "v1", nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown coupon status = %d, want 422", w.Code)
	}
	if ws.Coupon() != "SAVE10" {
		t.Errorf("coupon = %q, unknown code must not replace the applied coupon", ws.Coupon())
	}

	w = httptest.NewRecorder()
	h.ApplyCoupon(w, newRequest(t, http.MethodPost, "/api/cart/coupon", map[string]string{"code": ""}, "v1", nil))
	if w.Code != http.StatusOK || ws.Coupon() != "" {
		t.Errorf("empty code should clear the coupon; status = %d, coupon = %q", w.Code, ws.Coupon())
	}
}

func TestCartHandler_Summary_FreeDeliveryAtThreshold(t *testing.T) {
	h, reg := newTestCartHandler(t)
	ws := readyWorkspace(t, reg, "v1")
	ws.Cart.Add(model.CartLineItem{ID: "m1", RestaurantID: "r1", Price: mustDecimal(t, "25")}, nil)
	ws.Cart.UpdateQuantity("m1", 2)

	w := httptest.NewRecorder()
	h.Summary(w, newRequest(t, http.MethodGet, "/api/cart/summary", nil, "v1", nil))

	var totals struct {
		Subtotal decimal.Decimal `json:"subtotal"`
		Delivery decimal.Decimal `json:"delivery"`
		Total    decimal.Decimal `json:"total"`
	}
	decodeBody(t, w, &totals)
	if !totals.Delivery.IsZero() || !totals.Total.Equal(mustDecimal(t, "50")) {
		t.Errorf("totals = %+v, want free delivery and total 50", totals)
	}
}
