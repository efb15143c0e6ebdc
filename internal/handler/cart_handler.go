package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/visitor"
)

// CheckoutServiceInterface は金額計算と注文確定のインターフェース。
type CheckoutServiceInterface interface {
	Quote(items []model.CartLineItem, couponCode string) (cart.Totals, error)
	PlaceOrder(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// CartHandler はカートのHTTPハンドラー。
type CartHandler struct {
	workspaces Workspaces
	checkout   CheckoutServiceInterface
	validator  *form.Validator
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(workspaces Workspaces, checkout CheckoutServiceInterface, validator *form.Validator) *CartHandler {
	return &CartHandler{
		workspaces: workspaces,
		checkout:   checkout,
		validator:  validator,
	}
}

// cartResponse はカートのAPIレスポンス。
type cartResponse struct {
	Items  []model.CartLineItem `json:"items"`
	Count  int                  `json:"count"`
	Coupon string               `json:"coupon,omitempty"`
	Totals cart.Totals          `json:"totals"`
}

// updateQuantityRequest は数量変更リクエストのボディ。
type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// couponRequest はクーポン適用リクエストのボディ。空のコードは解除を意味する。
type couponRequest struct {
	Code string `json:"code"`
}

// view はカートの内容と金額内訳を組み立てる。
// 適用中のクーポンが計算できない場合はクーポンなしの金額を返す。
func (h *CartHandler) view(ws *visitor.Workspace) cartResponse {
	items := ws.Cart.Items()
	coupon := ws.Coupon()
	totals, err := h.checkout.Quote(items, coupon)
	if err != nil {
		coupon = ""
		totals, _ = h.checkout.Quote(items, "")
	}
	return cartResponse{
		Items:  items,
		Count:  ws.Cart.Count(),
		Coupon: coupon,
		Totals: totals,
	}
}

// Get はカートの内容を返す。
// GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view(ws))
}

// Summary は金額内訳のみを返す。
// GET /api/cart/summary
func (h *CartHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.view(ws).Totals)
}

// AddItem は商品をカートに追加する。既にある商品は数量を加算する。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	var req form.CartItemForm
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		handleServiceError(w, err)
		return
	}

	ws.Cart.Add(req.LineItem(), req.Quantity)
	writeJSON(w, http.StatusOK, h.view(ws))
}

// UpdateItem は数量を変更する。0以下の数量は明細を削除する。
// PUT /api/cart/items/{id}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req updateQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		handleServiceError(w, model.NewValidationError(map[string]string{"quantity": "必須項目です。"}))
		return
	}

	if !ws.Cart.UpdateQuantity(id, *req.Quantity) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewItemNotInCartError(id))
		return
	}
	writeJSON(w, http.StatusOK, h.view(ws))
}

// RemoveItem は明細を削除する。存在しない明細の削除は何もしない。
// DELETE /api/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	ws.Cart.Remove(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, h.view(ws))
}

// Clear はカートを空にし、クーポンも解除する。
// DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	ws.Cart.Clear()
	ws.SetCoupon("")
	writeJSON(w, http.StatusOK, h.view(ws))
}

// ApplyCoupon はクーポンを適用する。未知のコードは422を返し、適用中のクーポンは変更しない。
// POST /api/cart/coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	var req couponRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	code := cart.NormalizeCouponCode(req.Code)
	if code != "" {
		if _, err := h.checkout.Quote(ws.Cart.Items(), code); err != nil {
			handleServiceError(w, err)
			return
		}
	}
	ws.SetCoupon(code)
	writeJSON(w, http.StatusOK, h.view(ws))
}
