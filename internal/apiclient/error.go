package apiclient

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// DefaultErrorMessage はサーバーがメッセージを返さなかった場合のメッセージ。
const DefaultErrorMessage = "予期しないエラーが発生しました。"

// CodeNetwork はリモートAPIに到達できなかったことを表すコード。
const CodeNetwork = "NETWORK_ERROR"

// Error はリモートAPI呼び出しの失敗を正規化したエラー。
// 転送層のエラーも含め、クライアントが返すエラーは全てこの型になる。
type Error struct {
	// Status はHTTPステータス。レスポンスを受け取れなかった場合は0。
	Status int `json:"status,omitempty"`
	// Message はサーバーが返したメッセージ。なければDefaultErrorMessage。
	Message string `json:"message"`
	// Code はサーバーが返した機械可読なエラーコード。
	Code string `json:"code,omitempty"`

	err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s", e.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// Unwrap は元になった転送層のエラーを返す。
func (e *Error) Unwrap() error {
	return e.err
}

// AsError はerrが*Errorであれば取り出す。
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsStatus はerrが指定したHTTPステータスの*Errorかどうかを返す。
func IsStatus(err error, status int) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == status
}

// networkError は転送層のエラーを正規化する。
func networkError(err error) *Error {
	return &Error{
		Message: DefaultErrorMessage,
		Code:    CodeNetwork,
		err:     err,
	}
}

// responseError はエラーレスポンスのボディからメッセージとコードを取り出す。
// {"message": ...}、{"error": "..."}、{"error": {"message": ..., "code": ...}} の形に対応する。
func responseError(status int, body []byte) *Error {
	e := &Error{Status: status, Message: DefaultErrorMessage}
	if !gjson.ValidBytes(body) {
		return e
	}

	res := gjson.ParseBytes(body)
	for _, path := range []string{"message", "error.message", "error", "msg"} {
		if v := res.Get(path); v.Type == gjson.String && v.String() != "" {
			e.Message = v.String()
			break
		}
	}
	for _, path := range []string{"code", "error.code", "error_code"} {
		if v := res.Get(path); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			e.Code = v.String()
			break
		}
	}
	return e
}
