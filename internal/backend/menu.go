package backend

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/storefront/internal/model"
)

// MenuItemInput はメニュー項目の作成・更新内容。
type MenuItemInput struct {
	RestaurantID string          `json:"restaurant_id,omitempty"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	CategoryID   string          `json:"category_id,omitempty"`
	Available    bool            `json:"available"`
}

// ListMenuItems はGET /restaurants/{id}/menu-items でメニューを取得する。
func (b *Backend) ListMenuItems(ctx context.Context, restaurantID string) ([]model.MenuItem, error) {
	list, err := getList[model.MenuItem](ctx, b.client, "/restaurants/"+seg(restaurantID)+"/menu-items")
	if err != nil {
		return nil, err
	}
	for i := range list {
		b.cleanMenuItem(&list[i])
	}
	return list, nil
}

// CreateMenuItem はPOST /menu-items でメニュー項目を作成する。
func (b *Backend) CreateMenuItem(ctx context.Context, token string, in MenuItemInput) (*model.MenuItem, error) {
	var out model.MenuItem
	if err := b.client.Post(ctx, "/menu-items", in, &out, bearer(token)); err != nil {
		return nil, err
	}
	b.cleanMenuItem(&out)
	return &out, nil
}

// UpdateMenuItem はPUT /menu-items/{id} でメニュー項目を更新する。
func (b *Backend) UpdateMenuItem(ctx context.Context, token, id string, in MenuItemInput) (*model.MenuItem, error) {
	var out model.MenuItem
	if err := b.client.Put(ctx, "/menu-items/"+seg(id), in, &out, bearer(token)); err != nil {
		return nil, err
	}
	b.cleanMenuItem(&out)
	return &out, nil
}

// DeleteMenuItem はDELETE /menu-items/{id} でメニュー項目を削除する。
func (b *Backend) DeleteMenuItem(ctx context.Context, token, id string) error {
	return b.client.Delete(ctx, "/menu-items/"+seg(id), nil, bearer(token))
}

func (b *Backend) cleanMenuItem(m *model.MenuItem) {
	m.Name = b.sanitizer.Text(m.Name)
	m.Description = b.sanitizer.Text(m.Description)
}
