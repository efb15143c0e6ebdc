// Package auth はベアラートークンとそこから導出したユーザーを保持する状態コンテナを提供する。
// トークンの署名検証はリモートAPIの責務であり、ここではペイロードの読み取りのみを行う。
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/storefront/internal/model"
)

// ErrMalformedToken はトークンのペイロードを読み取れない場合に返される。
var ErrMalformedToken = errors.New("malformed token")

// Claims はトークンのペイロードから取り出したユーザー情報。
type Claims struct {
	ID        string
	Email     string
	Role      model.Role
	Name      string
	ExpiresAt *time.Time // expクレームがない場合はnil
}

// User はClaimsをユーザーレコードに変換する。
func (c *Claims) User() *model.User {
	return &model.User{
		ID:    c.ID,
		Email: c.Email,
		Role:  c.Role,
		Name:  c.Name,
	}
}

// Expired は now 時点で期限切れかどうかを返す。
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

var parser = jwt.NewParser()

// DecodeToken はトークンのペイロードを署名検証なしでデコードする。
// 失敗時のエラーは常にErrMalformedTokenをラップする。
func DecodeToken(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	mc := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	id := claimString(mc, "id")
	if id == "" {
		id = claimString(mc, "sub")
	}
	if id == "" {
		return nil, fmt.Errorf("%w: missing id claim", ErrMalformedToken)
	}

	claims := &Claims{
		ID:    id,
		Email: claimString(mc, "email"),
		Role:  model.ParseRole(claimString(mc, "role")),
		Name:  claimString(mc, "name"),
	}

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if exp != nil {
		t := exp.Time
		claims.ExpiresAt = &t
	}

	return claims, nil
}

// claimString は文字列または数値のクレームを文字列として返す。
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
