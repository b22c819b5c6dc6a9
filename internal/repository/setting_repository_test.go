package repository

import (
	"context"
	"testing"
)

func TestSettingRepository_GetSet(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingRepository(setupTestDB(t))

	// 未設定の場合
	value, err := repo.Get(ctx, "clawd_api_key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != nil {
		t.Errorf("expected nil, got %q", value)
	}

	if err := repo.Set(ctx, "clawd_api_key", []byte("first")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := repo.Set(ctx, "clawd_api_key", []byte("second")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err = repo.Get(ctx, "clawd_api_key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "second" {
		t.Errorf("expected overwritten value, got %q", value)
	}

	var count int64
	if err := repo.db.Model(&SettingModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}
