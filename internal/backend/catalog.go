package backend

import (
	"context"

	"github.com/hitoshi/storefront/internal/model"
)

// ListCategories はGET /categories でカテゴリ一覧を取得する。
func (b *Backend) ListCategories(ctx context.Context) ([]model.Category, error) {
	list, err := getList[model.Category](ctx, b.client, "/categories")
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Name = b.sanitizer.Text(list[i].Name)
		list[i].Description = b.sanitizer.Text(list[i].Description)
	}
	return list, nil
}

// CreateCategory はPOST /categories でカテゴリを作成する。
func (b *Backend) CreateCategory(ctx context.Context, token string, c model.Category) (*model.Category, error) {
	var out model.Category
	if err := b.client.Post(ctx, "/categories", c, &out, bearer(token)); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCategory はPUT /categories/{id} でカテゴリを更新する。
func (b *Backend) UpdateCategory(ctx context.Context, token, id string, c model.Category) (*model.Category, error) {
	var out model.Category
	if err := b.client.Put(ctx, "/categories/"+seg(id), c, &out, bearer(token)); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCategory はDELETE /categories/{id} でカテゴリを削除する。
func (b *Backend) DeleteCategory(ctx context.Context, token, id string) error {
	return b.client.Delete(ctx, "/categories/"+seg(id), nil, bearer(token))
}

// ListHeroSlides はGET /hero-slides でトップページのスライドを取得する。
func (b *Backend) ListHeroSlides(ctx context.Context) ([]model.HeroSlide, error) {
	list, err := getList[model.HeroSlide](ctx, b.client, "/hero-slides")
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Title = b.sanitizer.Text(list[i].Title)
		list[i].Subtitle = b.sanitizer.Text(list[i].Subtitle)
	}
	return list, nil
}

// CreateHeroSlide はPOST /hero-slides でスライドを作成する。
func (b *Backend) CreateHeroSlide(ctx context.Context, token string, s model.HeroSlide) (*model.HeroSlide, error) {
	var out model.HeroSlide
	if err := b.client.Post(ctx, "/hero-slides", s, &out, bearer(token)); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateHeroSlide はPUT /hero-slides/{id} でスライドを更新する。
func (b *Backend) UpdateHeroSlide(ctx context.Context, token, id string, s model.HeroSlide) (*model.HeroSlide, error) {
	var out model.HeroSlide
	if err := b.client.Put(ctx, "/hero-slides/"+seg(id), s, &out, bearer(token)); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteHeroSlide はDELETE /hero-slides/{id} でスライドを削除する。
func (b *Backend) DeleteHeroSlide(ctx context.Context, token, id string) error {
	return b.client.Delete(ctx, "/hero-slides/"+seg(id), nil, bearer(token))
}
