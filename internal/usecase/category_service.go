package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clawd-connector/internal/domain"
)

// CategoryRepository はカテゴリのデータアクセスのインターフェース。
type CategoryRepository interface {
	FindAll(ctx context.Context) ([]*domain.Category, error)
	Create(ctx context.Context, category *domain.Category) error
}

// CategoryService はカテゴリの一覧と作成を提供する。
type CategoryService struct {
	repo CategoryRepository
}

// NewCategoryService は新しいCategoryServiceを生成する。
func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

// List は投稿の無いカテゴリも含めてすべて返す。
func (s *CategoryService) List(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return categories, nil
}

// Create はカテゴリを作成する。slug が空なら名前から生成される。
func (s *CategoryService) Create(ctx context.Context, name, slug string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("category name is required")
	}
	category := &domain.Category{Name: name, Slug: strings.TrimSpace(slug)}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return category, nil
}
