// Package storage はクライアント状態を永続化するキーバリューストアを提供する。
// ブラウザのlocalStorageに相当し、値は文字列またはJSONとして保存する。
// ストアはドメインの意味を持たず、キーごとのスナップショットのみを扱う。
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// 各状態コンテナが所有するキー。コンテナ同士でキーを共有しない。
const (
	// KeyToken はベアラートークンのキー。トークンの保存先はこのキーに統一する。
	KeyToken = "token"
	// KeyRefreshToken はリフレッシュトークンのキー。
	KeyRefreshToken = "refresh_token"
	// KeyWishlist はウィッシュリストのスナップショットのキー。
	KeyWishlist = "wishlist"
)

// Store は文字列キーと文字列値を保存するストアのインターフェース。
type Store interface {
	// GetItem はキーの値を返す。存在しない場合はokがfalseになる。
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	// SetItem はキーに値を保存する。既存の値は上書きされる。
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem はキーを削除する。存在しないキーの削除はエラーにならない。
	RemoveItem(ctx context.Context, key string) error
}

// LoadJSON はキーの値をJSONとしてvにデコードする。
// キーが存在しない場合はfalseを返し、vは変更しない。
func LoadJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.GetItem(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// SaveJSON はvをJSONにエンコードしてキーに保存する。
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.SetItem(ctx, key, string(b))
}

// scopedStore は名前空間付きのキーで委譲するStore。
type scopedStore struct {
	inner     Store
	namespace string
}

// Scoped はキーをnamespaceで区切ったStoreを返す。
// 訪問者ごとにlocalStorageを分離するために使用する。
func Scoped(inner Store, namespace string) Store {
	return &scopedStore{inner: inner, namespace: namespace}
}

func (s *scopedStore) key(k string) string {
	return s.namespace + "/" + k
}

func (s *scopedStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	return s.inner.GetItem(ctx, s.key(key))
}

func (s *scopedStore) SetItem(ctx context.Context, key, value string) error {
	return s.inner.SetItem(ctx, s.key(key), value)
}

func (s *scopedStore) RemoveItem(ctx context.Context, key string) error {
	return s.inner.RemoveItem(ctx, s.key(key))
}
