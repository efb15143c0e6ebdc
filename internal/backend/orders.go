package backend

import (
	"context"

	"github.com/hitoshi/storefront/internal/model"
)

// CreateOrder はPOST /orders で注文を作成する。ゲスト注文ではtokenは空。
func (b *Backend) CreateOrder(ctx context.Context, token string, order model.Order) (*model.Order, error) {
	var out model.Order
	if err := b.client.Post(ctx, "/orders", order, &out, bearer(token)); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRestaurantOrders はGET /orders/restaurant/{id} で店舗宛の注文を取得する。
func (b *Backend) ListRestaurantOrders(ctx context.Context, token, restaurantID string) ([]model.Order, error) {
	return getList[model.Order](ctx, b.client, "/orders/restaurant/"+seg(restaurantID), bearer(token))
}

// UpdateOrderStatus はPATCH /orders/{id}/status で注文の状態を更新する。
func (b *Backend) UpdateOrderStatus(ctx context.Context, token, id string, status model.OrderStatus) (*model.Order, error) {
	body := struct {
		Status model.OrderStatus `json:"status"`
	}{Status: status}

	var out model.Order
	if err := b.client.Patch(ctx, "/orders/"+seg(id)+"/status", body, &out, bearer(token)); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyOrders はGET /orders/my-orders でログイン中の顧客の注文履歴を取得する。
func (b *Backend) MyOrders(ctx context.Context, token string) ([]model.Order, error) {
	return getList[model.Order](ctx, b.client, "/orders/my-orders", bearer(token))
}
