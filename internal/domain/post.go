package domain

import "time"

const (
	// DefaultPostStatus は状態が指定されなかった投稿の状態。
	DefaultPostStatus = "publish"
	// DefaultPostType は種別が指定されなかった投稿の種別。
	DefaultPostType = "post"
	// DefaultPerPage は一覧取得時の既定件数。
	DefaultPerPage = 10
	// DefaultCategoryID はカテゴリ未指定の投稿が属する Uncategorized のID。
	DefaultCategoryID uint64 = 1
)

// Post は投稿エンティティを表す。
type Post struct {
	ID            uint64
	Title         string
	Content       string
	Excerpt       string
	Status        string
	Type          string
	Author        string
	CategoryIDs   []uint64
	Tags          []string
	FeaturedMedia *Media
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsEmpty はタイトル・本文・抜粋がすべて空かを返す。
func (p *Post) IsEmpty() bool {
	return p.Title == "" && p.Content == "" && p.Excerpt == ""
}

// PostInput は作成・更新リクエストの入力値。nil のフィールドは未指定を表す。
type PostInput struct {
	Title            *string
	Content          *string
	Excerpt          *string
	Status           *string
	Type             *string
	CategoryID       *uint64
	Tags             []string
	TagsSet          bool
	MetaFields       map[string]string
	FeaturedImageURL string
}

// PostQuery は投稿一覧の検索条件。
type PostQuery struct {
	// PerPage が負の場合は件数制限なし
	PerPage    int
	Offset     int
	Type       string
	Status     string
	CategoryID *uint64
	Search     string
}

// Category はカテゴリを表す。Count は公開済み投稿の件数。
type Category struct {
	ID    uint64
	Name  string
	Slug  string
	Count int64
}

// Media は投稿に添付されたメディアを表す。
type Media struct {
	ID        uint64
	PostID    uint64
	FileName  string
	MIMEType  string
	Path      string
	URL       string
	CreatedAt time.Time
}

// FetchedMedia は外部URLから取得したメディアの内容。
type FetchedMedia struct {
	FileName string
	MIMEType string
	Data     []byte
}
