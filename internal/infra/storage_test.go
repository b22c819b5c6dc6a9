package infra

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestFileStorage_SaveAndRemove(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStorage(dir, "https://example.com")
	s.now = func() time.Time { return time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC) }

	rel, url, err := s.Save(context.Background(), "cat.png", []byte("data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pathPattern := regexp.MustCompile(`^2025/03/[0-9a-f-]{36}-cat\.png$`)
	if !pathPattern.MatchString(rel) {
		t.Errorf("unexpected relative path: %s", rel)
	}
	if url != "https://example.com/uploads/"+rel {
		t.Errorf("unexpected url: %s", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("want data, got %s", data)
	}

	if err := s.Remove(rel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); !os.IsNotExist(err) {
		t.Errorf("want file removed, stat err = %v", err)
	}

	// 存在しないファイルの削除はエラーにしない
	if err := s.Remove(rel); err != nil {
		t.Errorf("want nil for missing file, got %v", err)
	}
}

func TestFileStorage_Remove_OutsideDir(t *testing.T) {
	s := NewFileStorage(t.TempDir(), "https://example.com")

	for _, rel := range []string{"../etc/passwd", "/etc/passwd"} {
		if err := s.Remove(rel); err == nil {
			t.Errorf("want error for %s", rel)
		}
	}
}
