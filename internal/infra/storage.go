package infra

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// FileStorage はアップロードディレクトリへのメディア保存を提供する。
type FileStorage struct {
	baseDir string
	baseURL string
	now     func() time.Time
}

// NewFileStorage は新しいFileStorageを生成する。URLは SITE_URL/uploads 配下になる。
func NewFileStorage(baseDir, siteURL string) *FileStorage {
	return &FileStorage{
		baseDir: baseDir,
		baseURL: siteURL + "/uploads",
		now:     time.Now,
	}
}

// Save はファイルを YYYY/MM/<uuid>-<name> に原子的に書き込み、相対パスと公開URLを返す。
func (s *FileStorage) Save(_ context.Context, fileName string, data []byte) (string, string, error) {
	now := s.now()
	rel := filepath.Join(now.Format("2006"), now.Format("01"), uuid.NewString()+"-"+fileName)
	full := filepath.Join(s.baseDir, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", "", fmt.Errorf("creating upload directory: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(full, renameio.WithPermissions(0o644))
	if err != nil {
		return "", "", fmt.Errorf("create pending media file: %w", err)
	}
	defer pendingFile.Cleanup() //nolint:errcheck // コミット後は何もしない

	if _, err := pendingFile.Write(data); err != nil {
		return "", "", fmt.Errorf("write media data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return "", "", fmt.Errorf("atomically replace media file: %w", err)
	}

	return filepath.ToSlash(rel), s.baseURL + "/" + filepath.ToSlash(rel), nil
}

// Remove は保存済みファイルを削除する。存在しない場合は何もしない。
func (s *FileStorage) Remove(rel string) error {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return fmt.Errorf("refusing to remove %q outside upload directory", rel)
	}
	if err := os.Remove(filepath.Join(s.baseDir, local)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing media file: %w", err)
	}
	return nil
}

// Dir はアップロードディレクトリを返す。
func (s *FileStorage) Dir() string {
	return s.baseDir
}
