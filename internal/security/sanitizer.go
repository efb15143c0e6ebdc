// Package security はアプリケーションのセキュリティ機能を提供する。
//
// Sanitizer はリモートAPIや利用者から受け取った文字列を無害化し、
// 画面に埋め込まれる商品名や説明文からのXSSを防ぐ。
// bluemondayの許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は表示用文字列のサニタイズ機能のインターフェースを定義する。
type Sanitizer interface {
	// Text は全てのタグを除去したプレーンテキストを返す。
	// 商品名やレストラン名など、HTMLを含まないはずのフィールドに使用する。
	Text(raw string) string

	// Rich は説明文用に限られたタグのみを通過させる。
	// 許可タグ: p, br, ul, ol, li, strong, em, img（srcはhttpsのみ）
	Rich(raw string) string
}

type sanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewSanitizer はSanitizerの新しいインスタンスを生成する。
// ポリシーは生成時に1回だけ構築し、以降はスレッドセーフに共有する。
func NewSanitizer() *sanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	rich.AllowAttrs("src", "alt").OnElements("img")
	rich.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &sanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// Text はタグを除去し、エスケープされた実体参照を元の文字に戻して前後の空白を除く。
// 戻り値はJSONとして返すため、HTMLエスケープは行わない。
func (s *sanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// Rich は説明文のHTMLを無害化する。
func (s *sanitizer) Rich(raw string) string {
	if raw == "" {
		return ""
	}
	return s.rich.Sanitize(raw)
}
