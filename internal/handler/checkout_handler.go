package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/form"
)

// CheckoutHandler は注文確定のHTTPハンドラー。
type CheckoutHandler struct {
	workspaces Workspaces
	service    CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(workspaces Workspaces, service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{workspaces: workspaces, service: service}
}

type checkoutResponse struct {
	*checkout.Result
	Message string `json:"message"`
}

// PlaceOrder はカートの内容で注文を確定する。
// ログインしていればトークンを付与し、ゲストの場合はトークンなしで送信する。
// クーポンが指定されていなければカートに適用中のクーポンを使う。
// POST /api/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}

	var req form.CheckoutForm
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CouponCode == "" {
		req.CouponCode = ws.Coupon()
	}

	in := checkout.Request{Cart: ws.Cart, Form: req}
	if ws.Auth.IsAuthenticated() {
		in.Token = ws.Auth.Token()
		in.User = ws.Auth.Snapshot().User
	}

	var result *checkout.Result
	err := ws.Actions.Run(r.Context(), actionCheckout, "ご注文を受け付けました。", func(ctx context.Context) error {
		var err error
		result, err = h.service.PlaceOrder(ctx, in)
		return err
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ws.SetCoupon("")
	writeJSON(w, http.StatusCreated, checkoutResponse{
		Result:  result,
		Message: ws.Actions.State(actionCheckout).Message,
	})
}

// ActionState は送信操作の進行状態を返す。未実行の操作はidleになる。
// GET /api/actions/{action}
func (h *CheckoutHandler) ActionState(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Actions.State(chi.URLParam(r, "action")))
}
