// Package wishlist はウィッシュリストの状態コンテナを提供する。
// 変更のたびに全件のスナップショットをストアへ書き込み、生成時に読み戻す。
package wishlist

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/storage"
)

// Wishlist は1訪問者分のウィッシュリスト。IDの重複を持たない集合として振る舞う。
type Wishlist struct {
	mu        sync.Mutex
	store     storage.Store
	sanitizer security.Sanitizer
	logger    *slog.Logger
	entries   []model.WishlistEntry
	index     map[string]int
}

// New はストアのスナップショットからウィッシュリストを復元する。
// スナップショットが存在しない、または壊れている場合は空のリストで開始する。
func New(ctx context.Context, store storage.Store, sanitizer security.Sanitizer, logger *slog.Logger) *Wishlist {
	w := &Wishlist{
		store:     store,
		sanitizer: sanitizer,
		logger:    logger,
		index:     make(map[string]int),
	}

	var snapshot []model.WishlistEntry
	if _, err := storage.LoadJSON(ctx, store, storage.KeyWishlist, &snapshot); err != nil {
		logger.Warn("ウィッシュリストの復元に失敗したため空のリストで開始します",
			slog.String("error", err.Error()),
		)
		return w
	}

	for _, e := range snapshot {
		if e.ID == "" {
			continue
		}
		if _, dup := w.index[e.ID]; dup {
			continue
		}
		w.index[e.ID] = len(w.entries)
		w.entries = append(w.entries, e)
	}
	return w
}

// Add は未登録のIDであれば末尾に追加する。登録済みなら何もしない。
// 追加した場合はtrueを返す。
func (w *Wishlist) Add(ctx context.Context, entry model.WishlistEntry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.index[entry.ID]; ok {
		return false
	}

	entry.Name = w.sanitizer.Text(entry.Name)
	entry.Description = w.sanitizer.Text(entry.Description)

	w.index[entry.ID] = len(w.entries)
	w.entries = append(w.entries, entry)
	w.persistLocked(ctx)
	return true
}

// Remove はIDのエントリを削除する。存在しない場合は何もしない。
func (w *Wishlist) Remove(ctx context.Context, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i, ok := w.index[id]
	if !ok {
		return false
	}

	w.entries = append(w.entries[:i], w.entries[i+1:]...)
	delete(w.index, id)
	for j := i; j < len(w.entries); j++ {
		w.index[w.entries[j].ID] = j
	}
	w.persistLocked(ctx)
	return true
}

// Contains はIDが登録済みかどうかを返す。
func (w *Wishlist) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.index[id]
	return ok
}

// Items はエントリのコピーを追加順で返す。
func (w *Wishlist) Items() []model.WishlistEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.WishlistEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Count は登録件数を返す。
func (w *Wishlist) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// persistLocked はスナップショットを書き込む。
// 書き込みに失敗してもメモリ上の状態は維持し、ログのみ残す。
func (w *Wishlist) persistLocked(ctx context.Context) {
	snapshot := w.entries
	if snapshot == nil {
		snapshot = []model.WishlistEntry{}
	}
	if err := storage.SaveJSON(ctx, w.store, storage.KeyWishlist, snapshot); err != nil {
		w.logger.Error("ウィッシュリストの保存に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("count", len(snapshot)),
		)
	}
}
