package auth

import (
	"context"
	"net/url"
	"strconv"

	"github.com/hitoshi/storefront/internal/model"
)

// CallbackParams はソーシャルログインのコールバックURLに含まれるパラメータ。
type CallbackParams struct {
	Token        string
	RefreshToken string
	IsNewUser    bool
	Error        string
}

// ParseCallback はコールバックのクエリ文字列を読み取る。
func ParseCallback(q url.Values) CallbackParams {
	isNew, _ := strconv.ParseBool(q.Get("is_new_user"))
	return CallbackParams{
		Token:        q.Get("token"),
		RefreshToken: q.Get("refresh_token"),
		IsNewUser:    isNew,
		Error:        q.Get("error"),
	}
}

// oauthErrorMessages はプロバイダーのエラーコードと表示用メッセージの対応。
var oauthErrorMessages = map[string]string{
	"access_denied":        "ログインがキャンセルされました。",
	"oauth_failed":         "ソーシャルログインに失敗しました。",
	"invalid_state":        "ログイン要求の有効期限が切れました。もう一度お試しください。",
	"email_exists":         "このメールアドレスは別のログイン方法で登録済みです。",
	"email_not_provided":   "プロバイダーからメールアドレスを取得できませんでした。",
	"account_disabled":     "このアカウントは無効化されています。",
	"provider_unavailable": "ログインプロバイダーに接続できませんでした。",
}

// DefaultOAuthErrorMessage は未知のエラーコードに対するメッセージ。
const DefaultOAuthErrorMessage = "ログイン中にエラーが発生しました。もう一度お試しください。"

// OAuthErrorMessage はエラーコードを表示用メッセージに変換する。
func OAuthErrorMessage(code string) string {
	if msg, ok := oauthErrorMessages[code]; ok {
		return msg
	}
	return DefaultOAuthErrorMessage
}

// CompleteOAuth はコールバックの結果でログインする。
// プロバイダーがエラーを返した場合やトークンがない場合はOAUTH_DENIEDのAPIErrorを返す。
func (c *Container) CompleteOAuth(ctx context.Context, p CallbackParams) error {
	if p.Error != "" {
		return model.NewOAuthDeniedError(OAuthErrorMessage(p.Error))
	}
	if p.Token == "" {
		return model.NewOAuthDeniedError(DefaultOAuthErrorMessage)
	}
	return c.Login(ctx, p.Token, p.RefreshToken)
}
