// Package checkout はカートから注文を作成するドメインロジックを提供する。
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/form"
	"github.com/hitoshi/storefront/internal/model"
)

// OrderCreator はリモートAPIへの注文作成を抽象化する。
type OrderCreator interface {
	CreateOrder(ctx context.Context, token string, order model.Order) (*model.Order, error)
}

// Service はチェックアウトのサービス層。
// 入力検証 → カート検証 → 金額計算 → 注文作成 → カートのクリア の流れを統括する。
type Service struct {
	orders    OrderCreator
	validator *form.Validator
	pricing   cart.Pricing
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(orders OrderCreator, validator *form.Validator, pricing cart.Pricing, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orders:    orders,
		validator: validator,
		pricing:   pricing,
		logger:    logger,
	}
}

// Pricing は使用している配送料設定を返す。
func (s *Service) Pricing() cart.Pricing {
	return s.pricing
}

// Request は1回の注文確定の入力。ゲスト注文ではTokenとUserは空。
type Request struct {
	Cart  *cart.Cart
	Token string
	User  *model.User
	Form  form.CheckoutForm
}

// Result は作成された注文と確定時の金額内訳。
type Result struct {
	Order  *model.Order `json:"order"`
	Totals cart.Totals  `json:"totals"`
}

// Quote は明細とクーポンから金額内訳を計算する。
// 未知のクーポンはUNKNOWN_COUPONのエラーになる。
func (s *Service) Quote(items []model.CartLineItem, couponCode string) (cart.Totals, error) {
	totals, err := s.pricing.Summarize(items, couponCode)
	if errors.Is(err, cart.ErrUnknownCoupon) {
		return totals, model.NewUnknownCouponError(cart.NormalizeCouponCode(couponCode))
	}
	return totals, err
}

// PlaceOrder は注文を確定する。成功した場合のみカートを空にする。
func (s *Service) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	// 1. 入力検証
	if err := s.validator.Struct(req.Form); err != nil {
		return nil, err
	}

	// 2. カート検証
	items := req.Cart.Items()
	if len(items) == 0 {
		return nil, model.NewEmptyCartError()
	}
	restaurantID := items[0].RestaurantID
	for _, li := range items[1:] {
		if li.RestaurantID != restaurantID {
			return nil, model.NewMixedRestaurantsError()
		}
	}

	// 3. 金額計算
	totals, err := s.Quote(items, req.Form.CouponCode)
	if err != nil {
		return nil, err
	}

	// 4. 注文作成
	order := model.Order{
		RestaurantID:   restaurantID,
		Items:          orderItems(items),
		Address:        req.Form.Address(),
		PaymentMethod:  req.Form.PaymentMethod,
		CouponCode:     cart.NormalizeCouponCode(req.Form.CouponCode),
		Subtotal:       totals.Subtotal,
		DeliveryCharge: totals.Delivery,
		Discount:       totals.Discount,
		Total:          totals.Total,
		CustomerEmail:  req.Form.Email,
	}
	if req.User != nil {
		order.CustomerID = req.User.ID
		if req.User.Email != "" {
			order.CustomerEmail = req.User.Email
		}
	}

	created, err := s.orders.CreateOrder(ctx, req.Token, order)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// 5. カートのクリア
	req.Cart.Clear()

	s.logger.Info("注文を作成しました",
		slog.String("order_id", created.ID),
		slog.String("restaurant_id", restaurantID),
		slog.Int("items", len(items)),
		slog.String("total", totals.Total.StringFixed(2)),
		slog.Bool("guest", req.User == nil),
	)

	return &Result{Order: created, Totals: totals}, nil
}

func orderItems(items []model.CartLineItem) []model.OrderItem {
	out := make([]model.OrderItem, 0, len(items))
	for _, li := range items {
		out = append(out, model.OrderItem{
			MenuItemID: li.ID,
			Name:       li.Name,
			Price:      li.Price,
			Quantity:   li.Quantity,
		})
	}
	return out
}
