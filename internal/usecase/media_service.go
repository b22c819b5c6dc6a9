package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"clawd-connector/internal/domain"
)

// MediaFetcher は外部URLから画像を取得する。
type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*domain.FetchedMedia, error)
}

// MediaStorage は取得した画像を保存する。
type MediaStorage interface {
	Save(ctx context.Context, fileName string, data []byte) (path, url string, err error)
	Remove(path string) error
}

// MediaRepository はメディア行を投稿に紐づけて保存する。
type MediaRepository interface {
	AttachFeaturedMedia(ctx context.Context, media *domain.Media) error
}

// MediaService はアイキャッチ画像の取り込みを提供する。
type MediaService struct {
	enabled bool
	fetcher MediaFetcher
	storage MediaStorage
	repo    MediaRepository
}

// NewMediaService は新しいMediaServiceを生成する。enabled が false の場合は取り込みを行わない。
func NewMediaService(enabled bool, fetcher MediaFetcher, storage MediaStorage, repo MediaRepository) *MediaService {
	return &MediaService{
		enabled: enabled,
		fetcher: fetcher,
		storage: storage,
		repo:    repo,
	}
}

// Import は画像を取得・保存し、投稿のアイキャッチとして登録する。
func (s *MediaService) Import(ctx context.Context, postID uint64, rawURL string) (*domain.Media, error) {
	if !s.enabled {
		return nil, domain.ErrMediaFetchDisabled
	}

	fetched, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	path, url, err := s.storage.Save(ctx, fetched.FileName, fetched.Data)
	if err != nil {
		return nil, fmt.Errorf("saving media: %w", err)
	}

	media := &domain.Media{
		PostID:   postID,
		FileName: fetched.FileName,
		MIMEType: fetched.MIMEType,
		Path:     path,
		URL:      url,
	}
	if err := s.repo.AttachFeaturedMedia(ctx, media); err != nil {
		if rmErr := s.storage.Remove(path); rmErr != nil {
			slog.WarnContext(ctx, "failed to remove orphaned media file",
				"operation", "import_media",
				"path", path,
				"error", rmErr,
			)
		}
		return nil, fmt.Errorf("attaching media: %w", err)
	}

	slog.InfoContext(ctx, "featured image imported",
		"operation", "import_media",
		"post_id", postID,
		"mime_type", media.MIMEType,
		"path", media.Path,
	)
	return media, nil
}

// RemoveFiles は削除済み投稿の画像ファイルを消す。失敗はログのみ。
func (s *MediaService) RemoveFiles(ctx context.Context, media []*domain.Media) {
	for _, m := range media {
		if err := s.storage.Remove(m.Path); err != nil {
			slog.WarnContext(ctx, "failed to remove media file",
				"operation", "remove_media",
				"post_id", m.PostID,
				"path", m.Path,
				"error", err,
			)
		}
	}
}
