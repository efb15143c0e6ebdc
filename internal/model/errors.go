// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"slices"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, authorization, validation, network, not_found, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // フィールドごとの入力エラー（validationのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeOAuthDenied        = "OAUTH_DENIED"
	ErrCodeUnknownCoupon      = "UNKNOWN_COUPON"
	ErrCodeEmptyCart          = "EMPTY_CART"
	ErrCodeMixedRestaurants   = "MIXED_RESTAURANTS"
	ErrCodeItemNotInCart      = "ITEM_NOT_IN_CART"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeActionInProgress   = "ACTION_IN_PROGRESS"
	ErrCodeUpstream           = "UPSTREAM_ERROR"
	ErrCodeNetwork            = "NETWORK_ERROR"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRF               = "CSRF_VALIDATION_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(fields map[string]string) *APIError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", strings.Join(names, ", ")),
		Category: "validation",
		Action:   "各項目のエラーを確認して再度送信してください。",
		Fields:   fields,
	}
}

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError はロール不一致エラーを生成する。
// 必要なロールと実際のロールをメッセージに含める。
func NewForbiddenError(required []Role, actual Role) *APIError {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = r.String()
	}
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("このページへのアクセス権限がありません（必要なロール: %s / 現在のロール: %s）", strings.Join(names, ", "), actual.String()),
		Category: "authorization",
		Action:   "ホームに戻るか、権限のあるアカウントでログインし直してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError(message string) *APIError {
	if message == "" {
		message = "メールアドレスまたはパスワードが正しくありません。"
	}
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  message,
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewSessionExpiredError はセッション期限切れエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewOAuthDeniedError はソーシャルログイン失敗エラーを生成する。
func NewOAuthDeniedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeOAuthDenied,
		Message:  message,
		Category: "auth",
		Action:   "別のログイン方法を試すか、しばらく待ってから再度お試しください。",
	}
}

// NewUnknownCouponError は未知のクーポンコードエラーを生成する。
func NewUnknownCouponError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownCoupon,
		Message:  fmt.Sprintf("無効なクーポンコードです: %s", code),
		Category: "validation",
		Action:   "クーポンコードを確認してください。",
	}
}

// NewEmptyCartError は空カートで注文しようとした場合のエラーを生成する。
func NewEmptyCartError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyCart,
		Message:  "カートが空です。",
		Category: "validation",
		Action:   "メニューから商品を追加してください。",
	}
}

// NewMixedRestaurantsError は複数店舗の商品が混在する場合のエラーを生成する。
func NewMixedRestaurantsError() *APIError {
	return &APIError{
		Code:     ErrCodeMixedRestaurants,
		Message:  "1回の注文に含められるのは1店舗の商品のみです。",
		Category: "validation",
		Action:   "店舗ごとに分けて注文してください。",
	}
}

// NewItemNotInCartError はカートに存在しない明細を操作した場合のエラーを生成する。
func NewItemNotInCartError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotInCart,
		Message:  fmt.Sprintf("カートに商品がありません: %s", itemID),
		Category: "not_found",
		Action:   "カートの内容を再読み込みしてください。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%sが見つかりません。", resource),
		Category: "not_found",
		Action:   "一覧に戻って選択し直してください。",
	}
}

// NewActionInProgressError は同じ操作が処理中の場合のエラーを生成する。
func NewActionInProgressError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeActionInProgress,
		Message:  fmt.Sprintf("処理中です: %s", action),
		Category: "validation",
		Action:   "完了するまでお待ちください。",
	}
}

// NewUpstreamError はリモートAPIのエラーを生成する。
func NewUpstreamError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  message,
		Category: "network",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNetworkError はリモートAPIに到達できない場合のエラーを生成する。
func NewNetworkError() *APIError {
	return &APIError{
		Code:     ErrCodeNetwork,
		Message:  "サーバーに接続できませんでした。",
		Category: "network",
		Action:   "通信環境を確認して再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークン検証エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "リクエストを検証できませんでした。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
