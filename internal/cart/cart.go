// Package cart はカートの状態コンテナと価格計算を提供する。
// カートは訪問者のワークスペースのメモリ上にのみ存在し、永続化しない。
package cart

import (
	"sync"

	"github.com/hitoshi/storefront/internal/model"
)

// Cart は1訪問者分のカート。
// 同じIDの明細は最大1件で、数量は常に1以上に保たれる。
type Cart struct {
	mu    sync.Mutex
	items []model.CartLineItem
}

// New は空のカートを生成する。
func New() *Cart {
	return &Cart{}
}

// Add は商品をカートに追加する。
// 既存の明細がある場合、quantityが指定されていればその値で置き換え、なければ1増やす。
// 新規の場合はquantity（未指定なら1）で末尾に追加する。
// 0以下の数量を指定した場合は明細を削除する。
func (c *Cart) Add(item model.CartLineItem, quantity *int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity != nil && *quantity <= 0 {
		c.removeLocked(item.ID)
		return
	}

	if i := c.indexLocked(item.ID); i >= 0 {
		if quantity != nil {
			c.items[i].Quantity = *quantity
		} else {
			c.items[i].Quantity++
		}
		return
	}

	item.Quantity = 1
	if quantity != nil {
		item.Quantity = *quantity
	}
	c.items = append(c.items, item)
}

// UpdateQuantity は既存明細の数量を変更する。0以下なら削除する。
// 明細が存在しない場合はfalseを返す。
func (c *Cart) UpdateQuantity(id string, quantity int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		c.removeLocked(id)
		return true
	}
	c.items[i].Quantity = quantity
	return true
}

// Remove は明細を削除する。存在しない場合は何もしない。
func (c *Cart) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
}

// Clear はカートを空にする。
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items は明細のコピーを追加順で返す。
func (c *Cart) Items() []model.CartLineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.CartLineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Count は数量の合計を返す。
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, li := range c.items {
		n += li.Quantity
	}
	return n
}

func (c *Cart) indexLocked(id string) int {
	for i, li := range c.items {
		if li.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) removeLocked(id string) {
	if i := c.indexLocked(id); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}
