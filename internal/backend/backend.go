// Package backend はリモートREST APIのエンドポイントを型付きで呼び出す。
// 通信とエラーの正規化はapiclientに任せ、ここではパスとリクエスト・レスポンスの形を定義する。
package backend

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/hitoshi/storefront/internal/apiclient"
	"github.com/hitoshi/storefront/internal/security"
)

// Backend はリモートAPIのエンドポイント群。
type Backend struct {
	client    *apiclient.Client
	sanitizer security.Sanitizer
}

// New はBackendを生成する。
func New(client *apiclient.Client, sanitizer security.Sanitizer) *Backend {
	return &Backend{client: client, sanitizer: sanitizer}
}

// Client は内部で使用しているAPIクライアントを返す。
func (b *Backend) Client() *apiclient.Client {
	return b.client
}

func bearer(token string) apiclient.RequestOption {
	return apiclient.WithBearer(token)
}

func seg(id string) string {
	return url.PathEscape(id)
}

// getList はGETのレスポンスを配列として読み取る。
func getList[T any](ctx context.Context, c *apiclient.Client, path string, opts ...apiclient.RequestOption) ([]T, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, &raw, opts...); err != nil {
		return nil, err
	}
	return apiclient.DecodeList[T](raw)
}
