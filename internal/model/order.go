package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus は注文の状態を表す。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusOnTheWay  OrderStatus = "on_the_way"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ValidOrderStatus は既知の注文状態かどうかを返す。
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusOnTheWay, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// OrderItem は注文明細。
type OrderItem struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

// DeliveryAddress は配送先情報。
type DeliveryAddress struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// Order はリモートAPI上の注文。
type Order struct {
	ID             string          `json:"id,omitempty"`
	RestaurantID   string          `json:"restaurant_id"`
	CustomerID     string          `json:"customer_id,omitempty"`
	CustomerEmail  string          `json:"customer_email,omitempty"`
	Items          []OrderItem     `json:"items"`
	Address        DeliveryAddress `json:"delivery_address"`
	PaymentMethod  string          `json:"payment_method"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	Status         OrderStatus     `json:"status,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}
