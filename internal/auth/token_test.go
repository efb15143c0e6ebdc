package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/storefront/internal/model"
)

// signToken はテスト用にHS256で署名したトークンを生成する。
// デコードは署名を検証しないため鍵は任意。
func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestDecodeToken_ExtractsClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, jwt.MapClaims{
		"id":    "u-1",
		"email": "taro@example.com",
		"role":  "restaurant",
		"name":  "Taro",
		"exp":   exp.Unix(),
	})

	claims, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if claims.ID != "u-1" || claims.Email != "taro@example.com" || claims.Name != "Taro" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Role != model.RoleRestaurant {
		t.Errorf("Role = %q, want %q", claims.Role, model.RoleRestaurant)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, exp)
	}
}

func TestDecodeToken_NumericIDAndSubFallback(t *testing.T) {
	claims, err := DecodeToken(signToken(t, jwt.MapClaims{"id": 42, "role": "customer"}))
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if claims.ID != "42" {
		t.Errorf("ID = %q, want %q", claims.ID, "42")
	}

	claims, err = DecodeToken(signToken(t, jwt.MapClaims{"sub": "u-9"}))
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if claims.ID != "u-9" {
		t.Errorf("ID = %q, want %q", claims.ID, "u-9")
	}
}

func TestDecodeToken_WithoutExp_NeverExpires(t *testing.T) {
	claims, err := DecodeToken(signToken(t, jwt.MapClaims{"id": "u-1"}))
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", claims.ExpiresAt)
	}
	if claims.Expired(time.Now().Add(100 * 365 * 24 * time.Hour)) {
		t.Error("token without exp should never expire")
	}
}

func TestDecodeToken_UnknownRole(t *testing.T) {
	claims, err := DecodeToken(signToken(t, jwt.MapClaims{"id": "u-1", "role": "root"}))
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if claims.Role != model.RoleUnknown {
		t.Errorf("Role = %q, want RoleUnknown", claims.Role)
	}
}

func TestDecodeToken_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"空文字列", ""},
		{"セグメント不足", "abc.def"},
		{"base64でない", "a.!!!.c"},
		{"JSONでない", "eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.sig"},
		{"idなし", signToken(t, jwt.MapClaims{"email": "x@example.com"})},
		{"expが文字列", signToken(t, jwt.MapClaims{"id": "u-1", "exp": "tomorrow"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := DecodeToken(tt.token)
			if !errors.Is(err, ErrMalformedToken) {
				t.Errorf("err = %v, want ErrMalformedToken", err)
			}
			if claims != nil {
				t.Errorf("claims = %+v, want nil", claims)
			}
		})
	}
}
