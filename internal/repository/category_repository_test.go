package repository

import (
	"context"
	"testing"

	"clawd-connector/internal/domain"
)

func TestCategoryRepository_FindAll(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewCategoryRepository(db)
	posts := NewPostRepository(db)

	tech := &domain.Category{Name: "Tech"}
	if err := repo.Create(ctx, tech); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	empty := &domain.Category{Name: "Empty Category"}
	if err := repo.Create(ctx, empty); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if empty.Slug != "empty-category" {
		t.Errorf("expected generated slug, got %s", empty.Slug)
	}

	for _, status := range []string{"publish", "publish", "draft"} {
		post := newTestPost("post")
		post.Status = status
		post.CategoryIDs = []uint64{tech.ID}
		if err := posts.Create(ctx, post); err != nil {
			t.Fatalf("Create post failed: %v", err)
		}
	}

	categories, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	// 既定カテゴリ + 2件。空のカテゴリも含む
	if len(categories) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(categories))
	}

	counts := make(map[string]int64)
	for _, c := range categories {
		counts[c.Slug] = c.Count
	}
	if counts["tech"] != 2 {
		t.Errorf("expected tech count 2 (published only), got %d", counts["tech"])
	}
	if counts["empty-category"] != 0 {
		t.Errorf("expected empty count 0, got %d", counts["empty-category"])
	}
	if _, ok := counts["uncategorized"]; !ok {
		t.Error("expected seeded uncategorized category")
	}
}
