package repository

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clawd-connector/internal/domain"
)

// PostRepository は投稿のデータアクセスを提供する。
type PostRepository struct {
	db *gorm.DB
}

// NewPostRepository は新しいPostRepositoryを生成する。
func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create は投稿を保存し、カテゴリとタグを関連付ける。
func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	model := &PostModel{
		Title:   post.Title,
		Content: post.Content,
		Excerpt: post.Excerpt,
		Status:  post.Status,
		Type:    post.Type,
		Author:  post.Author,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if err := setCategories(tx, model, post.CategoryIDs); err != nil {
			return err
		}
		return setTags(tx, model, post.Tags)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create post",
			"operation", "create",
			"title", post.Title,
			"error", err,
		)
		return err
	}

	// gormで設定された値をドメインエンティティに反映
	post.ID = model.ID
	post.CreatedAt = model.CreatedAt
	post.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID は指定されたIDの投稿を取得する。存在しない場合は nil を返す。
func (r *PostRepository) FindByID(ctx context.Context, id uint64) (*domain.Post, error) {
	var model PostModel
	err := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("Tags").
		Preload("FeaturedMedia").
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find post",
			"operation", "find_by_id",
			"post_id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// Update は投稿の本文系フィールドを更新する。
// replaceCategories / replaceTags が true の場合は関連も置き換える。
func (r *PostRepository) Update(ctx context.Context, post *domain.Post, replaceCategories, replaceTags bool) error {
	model := &PostModel{ID: post.ID}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(model).
			Select("title", "content", "excerpt", "status", "type", "updated_at").
			Updates(&PostModel{
				Title:     post.Title,
				Content:   post.Content,
				Excerpt:   post.Excerpt,
				Status:    post.Status,
				Type:      post.Type,
				UpdatedAt: time.Now(),
			}).Error
		if err != nil {
			return err
		}
		if replaceCategories {
			if err := setCategories(tx, model, post.CategoryIDs); err != nil {
				return err
			}
		}
		if replaceTags {
			if err := setTags(tx, model, post.Tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to update post",
			"operation", "update",
			"post_id", post.ID,
			"error", err,
		)
		return err
	}
	return nil
}

// Delete は投稿と付随するメタ情報・関連・メディア行を完全に削除する。
// 削除した投稿が存在しなかった場合は false を返す。
func (r *PostRepository) Delete(ctx context.Context, id uint64) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := &PostModel{ID: id}
		if err := tx.Model(model).Association("Categories").Clear(); err != nil {
			return err
		}
		if err := tx.Model(model).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&PostMetaModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&PostModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return tx.Where("post_id = ?", id).Delete(&MediaModel{}).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete post",
			"operation", "delete",
			"post_id", id,
			"error", err,
		)
		return false, err
	}
	return deleted, nil
}

// Find は検索条件に一致する投稿を新しい順に取得する。
func (r *PostRepository) Find(ctx context.Context, q domain.PostQuery) ([]*domain.Post, error) {
	tx := r.db.WithContext(ctx).
		Model(&PostModel{}).
		Preload("FeaturedMedia").
		Where("posts.type = ? AND posts.status = ?", q.Type, q.Status)

	if q.CategoryID != nil {
		tx = tx.Where("posts.id IN (?)",
			r.db.Table("post_categories").Select("post_id").Where("category_id = ?", *q.CategoryID))
	}
	if q.Search != "" {
		like := "%" + escapeLike(q.Search) + "%"
		tx = tx.Where("(posts.title LIKE ? ESCAPE '!' OR posts.content LIKE ? ESCAPE '!' OR posts.excerpt LIKE ? ESCAPE '!')", like, like, like)
	}
	switch {
	case q.PerPage >= 0:
		tx = tx.Limit(q.PerPage)
	case q.Offset > 0:
		// LIMIT無しのOFFSETはMySQL・SQLiteともに構文エラーになる
		tx = tx.Limit(math.MaxInt32)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var models []PostModel
	if err := tx.Order("posts.created_at DESC").Order("posts.id DESC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find posts",
			"operation", "find",
			"type", q.Type,
			"status", q.Status,
			"error", err,
		)
		return nil, err
	}

	posts := make([]*domain.Post, len(models))
	for i := range models {
		posts[i] = models[i].toDomain()
	}
	return posts, nil
}

// UpsertMeta は投稿メタを追加または上書きする。
func (r *PostRepository) UpsertMeta(ctx context.Context, postID uint64, meta map[string]string) error {
	if len(meta) == 0 {
		return nil
	}
	rows := make([]PostMetaModel, 0, len(meta))
	for k, v := range meta {
		rows = append(rows, PostMetaModel{PostID: postID, MetaKey: k, MetaValue: v})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
	}).Create(&rows).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert post meta",
			"operation", "upsert_meta",
			"post_id", postID,
			"error", err,
		)
		return err
	}
	return nil
}

// FindMeta は投稿メタをすべて取得する。
func (r *PostRepository) FindMeta(ctx context.Context, postID uint64) (map[string]string, error) {
	var rows []PostMetaModel
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Find(&rows).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find post meta",
			"operation", "find_meta",
			"post_id", postID,
			"error", err,
		)
		return nil, err
	}
	meta := make(map[string]string, len(rows))
	for _, row := range rows {
		meta[row.MetaKey] = row.MetaValue
	}
	return meta, nil
}

// AttachFeaturedMedia はメディア行を作成し、投稿のアイキャッチとして設定する。
func (r *PostRepository) AttachFeaturedMedia(ctx context.Context, media *domain.Media) error {
	model := &MediaModel{
		PostID:   media.PostID,
		FileName: media.FileName,
		MIMEType: media.MIMEType,
		Path:     media.Path,
		URL:      media.URL,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return tx.Model(&PostModel{ID: media.PostID}).Update("featured_media_id", model.ID).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to attach featured media",
			"operation", "attach_featured_media",
			"post_id", media.PostID,
			"error", err,
		)
		return err
	}
	media.ID = model.ID
	media.CreatedAt = model.CreatedAt
	return nil
}

// FindMediaByPostID は投稿に紐づくメディアをすべて取得する。
func (r *PostRepository) FindMediaByPostID(ctx context.Context, postID uint64) ([]*domain.Media, error) {
	var models []MediaModel
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("id ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find media",
			"operation", "find_media_by_post_id",
			"post_id", postID,
			"error", err,
		)
		return nil, err
	}
	media := make([]*domain.Media, len(models))
	for i := range models {
		media[i] = models[i].toDomain()
	}
	return media, nil
}

// setCategories は存在するカテゴリのみを関連付ける。
func setCategories(tx *gorm.DB, post *PostModel, ids []uint64) error {
	var categories []CategoryModel
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&categories).Error; err != nil {
			return err
		}
	}
	return tx.Model(post).Association("Categories").Replace(categories)
}

// setTags はタグ名から必要に応じてタグを作成し、関連を置き換える。
func setTags(tx *gorm.DB, post *PostModel, names []string) error {
	tags := make([]TagModel, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		slug := Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		tag := TagModel{Name: name, Slug: slug}
		if err := tx.Where(TagModel{Slug: slug}).FirstOrCreate(&tag).Error; err != nil {
			return err
		}
		tags = append(tags, tag)
	}
	return tx.Model(post).Association("Tags").Replace(tags)
}

// Slugify は名前からURL用のスラッグを生成する。文字と数字以外はハイフンにまとめる。
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
