package backend

import (
	"context"

	"github.com/hitoshi/storefront/internal/model"
)

// LoginRequest はメールアドレスとパスワードによるログインの入力。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest は会員登録の入力。ロールによって必要な項目が異なる。
type RegisterRequest struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Password       string     `json:"password"`
	Role           model.Role `json:"role"`
	Phone          string     `json:"phone,omitempty"`
	RestaurantName string     `json:"restaurant_name,omitempty"`
	Address        string     `json:"address,omitempty"`
}

// AuthResult はログイン・会員登録のレスポンス。
type AuthResult struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         *model.User `json:"user,omitempty"`
}

// Login はPOST /auth/login を呼び出す。
func (b *Backend) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	var out AuthResult
	if err := b.client.Post(ctx, "/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register はPOST /auth/register を呼び出す。
func (b *Backend) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var out AuthResult
	if err := b.client.Post(ctx, "/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OAuthConfig はGET /auth/oauth/config でソーシャルログインの設定を取得する。
func (b *Backend) OAuthConfig(ctx context.Context) (*model.OAuthConfig, error) {
	var out model.OAuthConfig
	if err := b.client.Get(ctx, "/auth/oauth/config", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate はGET /auth/validate でトークンの有効性を確認する。
// 起動時のトークン検証に使用する。
func (b *Backend) Validate(ctx context.Context, token string) error {
	return b.client.Get(ctx, "/auth/validate", nil, bearer(token))
}

// UpdateProfile はPATCH /auth/profile でプロフィールを更新する。
func (b *Backend) UpdateProfile(ctx context.Context, token string, patch model.UserPatch) (*model.User, error) {
	var out model.User
	if err := b.client.Patch(ctx, "/auth/profile", patch, &out, bearer(token)); err != nil {
		return nil, err
	}
	return &out, nil
}
