package form

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/model"
)

// LoginForm はログイン画面の入力。
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Normalize はメールアドレスの前後の空白を除き小文字にする。
func (f *LoginForm) Normalize() {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
}

// RegisterForm は会員登録画面の入力。
// 店舗オーナーとして登録する場合は店舗名が必須になる。
type RegisterForm struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,oneof=customer restaurant"`
	Phone           string `json:"phone" validate:"omitempty,max=30"`
	RestaurantName  string `json:"restaurant_name" validate:"required_if=Role restaurant,max=100"`
	Address         string `json:"address" validate:"omitempty,max=200"`
}

// Normalize はメールアドレスと名前の前後の空白を除く。
func (f *RegisterForm) Normalize() {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Name = strings.TrimSpace(f.Name)
	f.RestaurantName = strings.TrimSpace(f.RestaurantName)
}

// CheckoutForm はチェックアウト画面の入力。
type CheckoutForm struct {
	FullName      string `json:"full_name" validate:"required,max=100"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"required,max=30"`
	Street        string `json:"street" validate:"required,max=200"`
	City          string `json:"city" validate:"required,max=100"`
	PostalCode    string `json:"postal_code" validate:"omitempty,max=20"`
	Notes         string `json:"notes" validate:"omitempty,max=500"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash card"`
	CouponCode    string `json:"coupon_code" validate:"omitempty,max=32"`
}

// Address は配送先を返す。
func (f CheckoutForm) Address() model.DeliveryAddress {
	return model.DeliveryAddress{
		FullName:   strings.TrimSpace(f.FullName),
		Phone:      strings.TrimSpace(f.Phone),
		Street:     strings.TrimSpace(f.Street),
		City:       strings.TrimSpace(f.City),
		PostalCode: strings.TrimSpace(f.PostalCode),
		Notes:      strings.TrimSpace(f.Notes),
	}
}

// ProfileForm はプロフィール編集の入力。空の項目は変更しない。
type ProfileForm struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// Patch はユーザー更新用のパッチに変換する。ロールは変更できない。
func (f ProfileForm) Patch() model.UserPatch {
	return model.UserPatch{Name: f.Name, Email: f.Email}
}

// CartItemForm はカートへの追加の入力。
type CartItemForm struct {
	MenuItemID   string          `json:"id" validate:"required"`
	RestaurantID string          `json:"restaurant_id" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	Price        decimal.Decimal `json:"price" validate:"gte=0"`
	Image        string          `json:"image"`
	Description  string          `json:"description"`
	Quantity     *int            `json:"quantity"`
}

// LineItem はカート明細に変換する。
func (f CartItemForm) LineItem() model.CartLineItem {
	return model.CartLineItem{
		ID:           f.MenuItemID,
		RestaurantID: f.RestaurantID,
		Name:         f.Name,
		Price:        f.Price,
		Image:        f.Image,
		Description:  f.Description,
	}
}

// WishlistEntry はウィッシュリストのエントリに変換する。
func (f CartItemForm) WishlistEntry() model.WishlistEntry {
	return model.WishlistEntry{
		ID:           f.MenuItemID,
		RestaurantID: f.RestaurantID,
		Name:         f.Name,
		Price:        f.Price,
		Image:        f.Image,
		Description:  f.Description,
	}
}

// MenuItemForm はメニュー項目の作成・更新の入力。
type MenuItemForm struct {
	RestaurantID string          `json:"restaurant_id" validate:"required"`
	Name         string          `json:"name" validate:"required,max=100"`
	Description  string          `json:"description" validate:"omitempty,max=1000"`
	Price        decimal.Decimal `json:"price" validate:"gt=0"`
	Image        string          `json:"image" validate:"omitempty,url"`
	CategoryID   string          `json:"category_id"`
	Available    bool            `json:"available"`
}

// CategoryForm はカテゴリの作成・更新の入力。
type CategoryForm struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Image       string `json:"image" validate:"omitempty,url"`
}

// HeroSlideForm はスライドの作成・更新の入力。
type HeroSlideForm struct {
	Title    string `json:"title" validate:"required,max=100"`
	Subtitle string `json:"subtitle" validate:"omitempty,max=200"`
	Image    string `json:"image" validate:"required,url"`
	LinkURL  string `json:"link_url" validate:"omitempty"`
	Position int    `json:"position" validate:"gte=0"`
	Active   bool   `json:"active"`
}

// OrderStatusForm は注文状態の更新の入力。
type OrderStatusForm struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing on_the_way delivered cancelled"`
}

// RestaurantForm はレストラン情報の更新の入力。
type RestaurantForm struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Address     *string `json:"address" validate:"omitempty,max=200"`
	Phone       *string `json:"phone" validate:"omitempty,max=30"`
	Image       *string `json:"image" validate:"omitempty,url"`
	CategoryID  *string `json:"category_id"`
}
