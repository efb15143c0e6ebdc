package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/model"
)

// WishlistHandler はウィッシュリストのHTTPハンドラー。
type WishlistHandler struct {
	workspaces Workspaces
	validator  *form.Validator
}

// NewWishlistHandler はWishlistHandlerを生成する。
func NewWishlistHandler(workspaces Workspaces, validator *form.Validator) *WishlistHandler {
	return &WishlistHandler{workspaces: workspaces, validator: validator}
}

type wishlistResponse struct {
	Items []model.WishlistEntry `json:"items"`
	Count int                   `json:"count"`
}

type wishlistStatusResponse struct {
	ID    string `json:"id"`
	Saved bool   `json:"saved"`
}

// List は登録済みの商品を追加順で返す。
// GET /api/wishlist
func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	items := ws.Wishlist.Items()
	writeJSON(w, http.StatusOK, wishlistResponse{Items: items, Count: len(items)})
}

// Add は商品を登録する。新規なら201、登録済みなら200を返す。
// POST /api/wishlist
func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request) {
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

	status := http.StatusOK
	if ws.Wishlist.Add(r.Context(), req.WishlistEntry()) {
		status = http.StatusCreated
	}
	items := ws.Wishlist.Items()
	writeJSON(w, status, wishlistResponse{Items: items, Count: len(items)})
}

// Remove は商品の登録を解除する。未登録でも204を返す。
// DELETE /api/wishlist/{id}
func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	ws.Wishlist.Remove(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// Status は商品が登録済みかどうかを返す。
// GET /api/wishlist/{id}
func (h *WishlistHandler) Status(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFor(h.workspaces, w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	writeJSON(w, http.StatusOK, wishlistStatusResponse{ID: id, Saved: ws.Wishlist.Contains(id)})
}
