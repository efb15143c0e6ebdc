package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Restaurant はリモートAPIが返すレストラン情報。
type Restaurant struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Address     string     `json:"address,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Image       string     `json:"image,omitempty"`
	CategoryID  string     `json:"category_id,omitempty"`
	Approved    bool       `json:"approved"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// MenuItem はレストランのメニュー項目。
type MenuItem struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	CategoryID   string          `json:"category_id,omitempty"`
	Available    bool            `json:"available"`
}

// Category は料理カテゴリ。
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// HeroSlide はトップページのスライダーに表示するコンテンツ。
type HeroSlide struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Image    string `json:"image,omitempty"`
	LinkURL  string `json:"link_url,omitempty"`
	Position int    `json:"position"`
	Active   bool   `json:"active"`
}

// RestaurantPage はレストラン詳細画面に必要なデータをまとめたもの。
type RestaurantPage struct {
	Restaurant *Restaurant `json:"restaurant"`
	MenuItems  []MenuItem  `json:"menu_items"`
}

// OAuthProviderConfig はソーシャルログインプロバイダー1件分の設定。
type OAuthProviderConfig struct {
	Enabled  bool   `json:"enabled"`
	LoginURL string `json:"login_url"`
}

// OAuthConfig はリモートAPIが公開するソーシャルログイン設定。
type OAuthConfig struct {
	Google   OAuthProviderConfig `json:"google"`
	Facebook OAuthProviderConfig `json:"facebook"`
}

// Provider は名前でプロバイダー設定を引く。未知の名前はfalseを返す。
func (c OAuthConfig) Provider(name string) (OAuthProviderConfig, bool) {
	switch name {
	case "google":
		return c.Google, true
	case "facebook":
		return c.Facebook, true
	default:
		return OAuthProviderConfig{}, false
	}
}
