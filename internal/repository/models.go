// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"time"

	"gorm.io/gorm"

	"clawd-connector/internal/domain"
)

// PostModel はpostsテーブルのモデル。
type PostModel struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	Title           string          `gorm:"type:text;not null"`
	Content         string          `gorm:"type:longtext;not null"`
	Excerpt         string          `gorm:"type:text;not null"`
	Status          string          `gorm:"type:varchar(20);not null;default:'publish';index:idx_type_status_created,priority:2"`
	Type            string          `gorm:"type:varchar(20);not null;default:'post';index:idx_type_status_created,priority:1"`
	Author          string          `gorm:"type:varchar(250);not null"`
	FeaturedMediaID *uint64         `gorm:"index"`
	FeaturedMedia   *MediaModel     `gorm:"foreignKey:FeaturedMediaID"`
	Categories      []CategoryModel `gorm:"many2many:post_categories;joinForeignKey:PostID;joinReferences:CategoryID"`
	Tags            []TagModel      `gorm:"many2many:post_tags;joinForeignKey:PostID;joinReferences:TagID"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime;index:idx_type_status_created,priority:3"`
	UpdatedAt       time.Time       `gorm:"not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (PostModel) TableName() string {
	return "posts"
}

// toDomain はモデルをドメインエンティティに変換する。
func (m *PostModel) toDomain() *domain.Post {
	post := &domain.Post{
		ID:        m.ID,
		Title:     m.Title,
		Content:   m.Content,
		Excerpt:   m.Excerpt,
		Status:    m.Status,
		Type:      m.Type,
		Author:    m.Author,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, c := range m.Categories {
		post.CategoryIDs = append(post.CategoryIDs, c.ID)
	}
	for _, t := range m.Tags {
		post.Tags = append(post.Tags, t.Name)
	}
	if m.FeaturedMedia != nil {
		post.FeaturedMedia = m.FeaturedMedia.toDomain()
	}
	return post
}

// CategoryModel はcategoriesテーブルのモデル。
type CategoryModel struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(200);not null"`
	Slug string `gorm:"type:varchar(200);not null;uniqueIndex:uk_category_slug"`
}

// TableName はテーブル名を返す。
func (CategoryModel) TableName() string {
	return "categories"
}

// TagModel はtagsテーブルのモデル。
type TagModel struct {
	ID   uint64 `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(200);not null"`
	Slug string `gorm:"type:varchar(200);not null;uniqueIndex:uk_tag_slug"`
}

// TableName はテーブル名を返す。
func (TagModel) TableName() string {
	return "tags"
}

// PostMetaModel はpost_metaテーブルのモデル。
type PostMetaModel struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	PostID    uint64 `gorm:"not null;uniqueIndex:uk_post_meta_key"`
	MetaKey   string `gorm:"type:varchar(191);not null;uniqueIndex:uk_post_meta_key"`
	MetaValue string `gorm:"type:longtext;not null"`
}

// TableName はテーブル名を返す。
func (PostMetaModel) TableName() string {
	return "post_meta"
}

// MediaModel はmediaテーブルのモデル。
type MediaModel struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	PostID    uint64    `gorm:"not null;index:idx_media_post_id"`
	FileName  string    `gorm:"type:varchar(255);not null"`
	MIMEType  string    `gorm:"column:mime_type;type:varchar(100);not null"`
	Path      string    `gorm:"type:varchar(512);not null"`
	URL       string    `gorm:"column:url;type:varchar(1024);not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

// TableName はテーブル名を返す。
func (MediaModel) TableName() string {
	return "media"
}

func (m *MediaModel) toDomain() *domain.Media {
	return &domain.Media{
		ID:        m.ID,
		PostID:    m.PostID,
		FileName:  m.FileName,
		MIMEType:  m.MIMEType,
		Path:      m.Path,
		URL:       m.URL,
		CreatedAt: m.CreatedAt,
	}
}

// SettingModel はsettingsテーブルのモデル。
type SettingModel struct {
	Name      string    `gorm:"type:varchar(191);primaryKey"`
	Value     []byte    `gorm:"type:blob;not null"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (SettingModel) TableName() string {
	return "settings"
}

// AutoMigrate はSQLite等の開発用データベースにスキーマを作成し、既定カテゴリを投入する。
// 本番のMySQLではmigrationsディレクトリのSQLを使う。
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&SettingModel{},
		&CategoryModel{},
		&TagModel{},
		&MediaModel{},
		&PostModel{},
		&PostMetaModel{},
		&SchemaMigrationModel{},
	); err != nil {
		return err
	}

	var count int64
	if err := db.Model(&CategoryModel{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return db.Create(&CategoryModel{Name: "Uncategorized", Slug: "uncategorized"}).Error
	}
	return nil
}
