package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clawd-connector/internal/domain"
)

// PostRepository は投稿のデータアクセスのインターフェース。
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	FindByID(ctx context.Context, id uint64) (*domain.Post, error)
	Update(ctx context.Context, post *domain.Post, replaceCategories, replaceTags bool) error
	Delete(ctx context.Context, id uint64) (bool, error)
	Find(ctx context.Context, q domain.PostQuery) ([]*domain.Post, error)
	UpsertMeta(ctx context.Context, postID uint64, meta map[string]string) error
	FindMediaByPostID(ctx context.Context, postID uint64) ([]*domain.Media, error)
}

// Sanitizer は入力値からマークアップを除去する。
type Sanitizer interface {
	Text(in string) string
	HTML(in string) string
}

// FeaturedMediaImporter は外部画像を取り込み、投稿のアイキャッチとして登録する。
type FeaturedMediaImporter interface {
	Import(ctx context.Context, postID uint64, rawURL string) (*domain.Media, error)
	RemoveFiles(ctx context.Context, media []*domain.Media)
}

// PostService は投稿の作成・更新・削除・一覧を提供する。
type PostService struct {
	repo      PostRepository
	sanitizer Sanitizer
	media     FeaturedMediaImporter
	author    string
}

// NewPostService は新しいPostServiceを生成する。author は作成する投稿の投稿者名。
func NewPostService(repo PostRepository, sanitizer Sanitizer, media FeaturedMediaImporter, author string) *PostService {
	return &PostService{
		repo:      repo,
		sanitizer: sanitizer,
		media:     media,
		author:    author,
	}
}

// Create は投稿を作成する。状態と種別の既定値は publish / post。
// カテゴリ未指定なら Uncategorized に紐付ける。
func (s *PostService) Create(ctx context.Context, in *domain.PostInput) (*domain.Post, error) {
	post := &domain.Post{
		Status:      domain.DefaultPostStatus,
		Type:        domain.DefaultPostType,
		Author:      s.author,
		CategoryIDs: []uint64{domain.DefaultCategoryID},
	}
	s.apply(post, in)

	if post.IsEmpty() {
		return nil, domain.ErrEmptyPost
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.afterSave(ctx, post, in)
	return post, nil
}

// Update は指定された項目だけを上書きする。投稿が無ければ domain.ErrPostNotFound。
func (s *PostService) Update(ctx context.Context, id uint64, in *domain.PostInput) (*domain.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding post: %w", err)
	}
	if post == nil {
		return nil, domain.ErrPostNotFound
	}

	s.apply(post, in)
	if err := s.repo.Update(ctx, post, in.CategoryID != nil, in.TagsSet); err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}

	s.afterSave(ctx, post, in)
	return post, nil
}

// Delete は投稿を完全に削除し、取り込んだ画像ファイルも消す。
func (s *PostService) Delete(ctx context.Context, id uint64) error {
	media, err := s.repo.FindMediaByPostID(ctx, id)
	if err != nil {
		return fmt.Errorf("finding post media: %w", err)
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if !deleted {
		return domain.ErrPostNotFound
	}

	s.media.RemoveFiles(ctx, media)
	return nil
}

// List は条件に合う投稿を新しい順に返す。
func (s *PostService) List(ctx context.Context, q domain.PostQuery) ([]*domain.Post, error) {
	if q.PerPage == 0 {
		q.PerPage = domain.DefaultPerPage
	}
	if q.PerPage < 0 {
		q.PerPage = -1
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Type == "" {
		q.Type = domain.DefaultPostType
	}
	if q.Status == "" {
		q.Status = domain.DefaultPostStatus
	}

	posts, err := s.repo.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

// apply は入力のうち指定された項目を無害化して投稿に反映する。
func (s *PostService) apply(post *domain.Post, in *domain.PostInput) {
	if in.Title != nil {
		post.Title = s.sanitizer.Text(*in.Title)
	}
	if in.Content != nil {
		post.Content = s.sanitizer.HTML(*in.Content)
	}
	if in.Excerpt != nil {
		post.Excerpt = s.sanitizer.Text(*in.Excerpt)
	}
	if in.Status != nil {
		if status := s.sanitizer.Text(*in.Status); status != "" {
			post.Status = status
		}
	}
	if in.Type != nil {
		if typ := s.sanitizer.Text(*in.Type); typ != "" {
			post.Type = typ
		}
	}
	if in.CategoryID != nil {
		post.CategoryIDs = []uint64{*in.CategoryID}
	}
	if in.TagsSet {
		tags := make([]string, 0, len(in.Tags))
		for _, tag := range in.Tags {
			if tag = s.sanitizer.Text(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		post.Tags = tags
	}
}

// afterSave はメタ情報とアイキャッチを反映する。ここでの失敗は投稿の保存結果を変えない。
func (s *PostService) afterSave(ctx context.Context, post *domain.Post, in *domain.PostInput) {
	if len(in.MetaFields) > 0 {
		meta := make(map[string]string, len(in.MetaFields))
		for k, v := range in.MetaFields {
			if key := s.sanitizer.Text(k); key != "" {
				meta[key] = v
			}
		}
		if err := s.repo.UpsertMeta(ctx, post.ID, meta); err != nil {
			slog.WarnContext(ctx, "failed to save post meta",
				"operation", "save_meta",
				"post_id", post.ID,
				"error", err,
			)
		}
	}

	if in.FeaturedImageURL == "" {
		return
	}
	media, err := s.media.Import(ctx, post.ID, in.FeaturedImageURL)
	switch {
	case errors.Is(err, domain.ErrMediaFetchDisabled):
		slog.WarnContext(ctx, "featured image ignored because media fetch is disabled",
			"operation", "import_featured_image",
			"post_id", post.ID,
		)
	case err != nil:
		slog.WarnContext(ctx, "failed to import featured image",
			"operation", "import_featured_image",
			"post_id", post.ID,
			"error", err,
		)
	default:
		post.FeaturedMedia = media
	}
}
