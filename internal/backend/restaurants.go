package backend

import (
	"context"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/storefront/internal/model"
)

// RestaurantUpdate はレストラン情報の更新内容。
type RestaurantUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Address     *string `json:"address,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Image       *string `json:"image,omitempty"`
	CategoryID  *string `json:"category_id,omitempty"`
}

// RestaurantQuery は一覧取得の絞り込み条件。
type RestaurantQuery struct {
	CategoryID string
	Search     string
}

func (q RestaurantQuery) values() url.Values {
	v := url.Values{}
	if q.CategoryID != "" {
		v.Set("category", q.CategoryID)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// ListRestaurants はGET /restaurants で公開中のレストラン一覧を取得する。
func (b *Backend) ListRestaurants(ctx context.Context, q RestaurantQuery) ([]model.Restaurant, error) {
	path := "/restaurants"
	if enc := q.values().Encode(); enc != "" {
		path += "?" + enc
	}
	list, err := getList[model.Restaurant](ctx, b.client, path)
	if err != nil {
		return nil, err
	}
	return b.cleanRestaurants(list), nil
}

// GetRestaurant はGET /restaurants/{id} でレストランを取得する。
func (b *Backend) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	var out model.Restaurant
	if err := b.client.Get(ctx, "/restaurants/"+seg(id), &out); err != nil {
		return nil, err
	}
	b.cleanRestaurant(&out)
	return &out, nil
}

// MyRestaurants はGET /restaurants/my でログイン中のオーナーのレストランを取得する。
func (b *Backend) MyRestaurants(ctx context.Context, token string) ([]model.Restaurant, error) {
	list, err := getList[model.Restaurant](ctx, b.client, "/restaurants/my", bearer(token))
	if err != nil {
		return nil, err
	}
	return b.cleanRestaurants(list), nil
}

// UpdateRestaurant はPUT /restaurants/{id} でレストラン情報を更新する。
func (b *Backend) UpdateRestaurant(ctx context.Context, token, id string, update RestaurantUpdate) (*model.Restaurant, error) {
	var out model.Restaurant
	if err := b.client.Put(ctx, "/restaurants/"+seg(id), update, &out, bearer(token)); err != nil {
		return nil, err
	}
	b.cleanRestaurant(&out)
	return &out, nil
}

// AdminListRestaurants はGET /admin/restaurants で承認待ちを含む全レストランを取得する。
func (b *Backend) AdminListRestaurants(ctx context.Context, token string) ([]model.Restaurant, error) {
	list, err := getList[model.Restaurant](ctx, b.client, "/admin/restaurants", bearer(token))
	if err != nil {
		return nil, err
	}
	return b.cleanRestaurants(list), nil
}

// ApproveRestaurant はPATCH /admin/restaurants/{id}/approve でレストランを承認する。
func (b *Backend) ApproveRestaurant(ctx context.Context, token, id string) error {
	return b.client.Patch(ctx, "/admin/restaurants/"+seg(id)+"/approve", struct{}{}, nil, bearer(token))
}

// DeleteRestaurant はDELETE /admin/restaurants/{id} でレストランを削除する。
func (b *Backend) DeleteRestaurant(ctx context.Context, token, id string) error {
	return b.client.Delete(ctx, "/admin/restaurants/"+seg(id), nil, bearer(token))
}

// LoadRestaurantPage はレストラン詳細とメニューを並行して取得する。
// いずれかが失敗した場合はもう一方をキャンセルしてエラーを返す。
func (b *Backend) LoadRestaurantPage(ctx context.Context, id string) (*model.RestaurantPage, error) {
	g, gctx := errgroup.WithContext(ctx)

	page := &model.RestaurantPage{}
	g.Go(func() error {
		r, err := b.GetRestaurant(gctx, id)
		if err != nil {
			return err
		}
		page.Restaurant = r
		return nil
	})
	g.Go(func() error {
		items, err := b.ListMenuItems(gctx, id)
		if err != nil {
			return err
		}
		page.MenuItems = items
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func (b *Backend) cleanRestaurant(r *model.Restaurant) {
	r.Name = b.sanitizer.Text(r.Name)
	r.Description = b.sanitizer.Rich(r.Description)
	r.Address = b.sanitizer.Text(r.Address)
}

func (b *Backend) cleanRestaurants(list []model.Restaurant) []model.Restaurant {
	for i := range list {
		b.cleanRestaurant(&list[i])
	}
	return list
}
