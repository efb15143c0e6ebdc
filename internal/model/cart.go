package model

import "github.com/shopspring/decimal"

// CartLineItem はカート内の1明細を表す。
// 同じIDの明細はカート内に最大1件で、Quantityは常に1以上。
type CartLineItem struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	Description  string          `json:"description,omitempty"`
	Quantity     int             `json:"quantity"`
}

// LineTotal は単価×数量を返す。
func (li CartLineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// WishlistEntry はウィッシュリストに保存された商品を表す。
type WishlistEntry struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// CartLineItemFromMenuItem はメニュー項目からカート明細を組み立てる。
func CartLineItemFromMenuItem(m MenuItem) CartLineItem {
	return CartLineItem{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Price:        m.Price,
		Image:        m.Image,
		Description:  m.Description,
	}
}
