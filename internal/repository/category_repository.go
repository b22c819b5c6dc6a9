package repository

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"clawd-connector/internal/domain"
)

// CategoryRepository はカテゴリのデータアクセスを提供する。
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository は新しいCategoryRepositoryを生成する。
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// FindAll は投稿が無いものも含めて全カテゴリを名前順に取得する。
// Count は公開済み投稿の件数。
func (r *CategoryRepository) FindAll(ctx context.Context) ([]*domain.Category, error) {
	var rows []struct {
		ID    uint64
		Name  string
		Slug  string
		Count int64
	}
	err := r.db.WithContext(ctx).
		Table("categories").
		Select("categories.id, categories.name, categories.slug, COUNT(posts.id) AS count").
		Joins("LEFT JOIN post_categories ON post_categories.category_id = categories.id").
		Joins("LEFT JOIN posts ON posts.id = post_categories.post_id AND posts.status = ?", domain.DefaultPostStatus).
		Group("categories.id, categories.name, categories.slug").
		Order("categories.name ASC").
		Scan(&rows).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find categories",
			"operation", "find_all",
			"error", err,
		)
		return nil, err
	}

	categories := make([]*domain.Category, len(rows))
	for i, row := range rows {
		categories[i] = &domain.Category{
			ID:    row.ID,
			Name:  row.Name,
			Slug:  row.Slug,
			Count: row.Count,
		}
	}
	return categories, nil
}

// Create はカテゴリを作成する。スラッグが空の場合は名前から生成する。
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	model := &CategoryModel{
		Name: category.Name,
		Slug: category.Slug,
	}
	if model.Slug == "" {
		model.Slug = Slugify(category.Name)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create category",
			"operation", "create",
			"name", category.Name,
			"error", err,
		)
		return err
	}
	category.ID = model.ID
	category.Slug = model.Slug
	return nil
}
