package repository

import (
	"context"
	"testing"
	"time"
)

func TestMigrationRepository_Apply(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	if err := repo.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable failed: %v", err)
	}

	stmts := []string{
		"CREATE TABLE extras (id INTEGER PRIMARY KEY, label TEXT);",
		"INSERT INTO extras (id, label) VALUES (1, 'one');",
	}
	if err := repo.Apply(ctx, "010", stmts); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	var rows int64
	db.Raw("SELECT COUNT(*) FROM extras").Scan(&rows)
	if rows != 1 {
		t.Errorf("expected 1 row in extras, got %d", rows)
	}

	applied, err := repo.FindAllApplied(ctx)
	if err != nil {
		t.Fatalf("FindAllApplied failed: %v", err)
	}
	if len(applied) != 1 {
		t.Fatalf("expected 1 applied migration, got %d", len(applied))
	}
	if applied[0].Version != "010" {
		t.Errorf("want version 010, got %s", applied[0].Version)
	}
	if applied[0].AppliedAt == nil || !applied[0].AppliedAt.Equal(fixed) {
		t.Errorf("want applied_at %v, got %v", fixed, applied[0].AppliedAt)
	}
}

func TestMigrationRepository_Apply_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)

	stmts := []string{
		"INSERT INTO categories (name, slug) VALUES ('News', 'news');",
		"INVALID SQL SYNTAX;",
	}
	if err := repo.Apply(ctx, "011", stmts); err == nil {
		t.Fatal("expected error, got nil")
	}

	var news int64
	db.Raw("SELECT COUNT(*) FROM categories WHERE slug = 'news'").Scan(&news)
	if news != 0 {
		t.Errorf("expected insert to be rolled back, found %d rows", news)
	}

	applied, err := repo.FindAllApplied(ctx)
	if err != nil {
		t.Fatalf("FindAllApplied failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected no applied migrations, got %d", len(applied))
	}
}
