// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const visitorCookieName = "visitor_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// visitorIDContextKey はリクエストコンテキストに訪問者IDを格納するためのキー。
var visitorIDContextKey = contextKey("visitor_id")

// VisitorConfig は訪問者Cookieの設定。
type VisitorConfig struct {
	CookieSecure bool
	CookieDomain string
	// MaxAge はCookieの有効期間。0の場合は1年。
	MaxAge time.Duration
}

// NewVisitorMiddleware はHTTP Only Cookieから訪問者IDを読み取るミドルウェアを返す。
// Cookieがない、またはUUIDとして不正な場合は新しいIDを発行してCookieに設定する。
// 訪問者IDはリクエストコンテキストに注入される。
func NewVisitorMiddleware(config VisitorConfig) func(next http.Handler) http.Handler {
	maxAge := config.MaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cookie, err := r.Cookie(visitorCookieName); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}

			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     visitorCookieName,
					Value:    id,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithVisitorID(r.Context(), id)))
		})
	}
}

// VisitorIDFromContext はリクエストコンテキストから訪問者IDを取得する。
// 訪問者ミドルウェアを通過したリクエストでのみ有効。
func VisitorIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(visitorIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("visitor ID not found in context")
	}
	return id, nil
}

// ContextWithVisitorID はコンテキストに訪問者IDを注入する。
func ContextWithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorIDContextKey, id)
}
