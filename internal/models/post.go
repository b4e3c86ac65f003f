package models

import "time"

// PostStatus — статус публикации.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusArchived  PostStatus = "archived"
)

// Valid сообщает, входит ли статус в допустимый набор.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	default:
		return false
	}
}

// Post — внутренняя доменная модель поста.
// Важно:
//   - Excerpt и PublishedAt вычисляются derive.Post один раз и далее не перезаписываются;
//   - CategoryID пуст, если пост без категории;
//   - Likes — множество ID пользователей (уникальность обеспечивает хранилище через $addToSet);
//   - Author/Category заполняются сервисом при чтении и в хранилище не пишутся.
type Post struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	Excerpt     string           `json:"excerpt"`
	AuthorID    string           `json:"authorId"`
	CategoryID  string           `json:"categoryId,omitempty"`
	Tags        []string         `json:"tags"`
	Status      PostStatus       `json:"status"`
	ViewCount   int64            `json:"viewCount"`
	Likes       []string         `json:"likes"`
	PublishedAt *time.Time       `json:"publishedAt"`
	Featured    bool             `json:"featured"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Author      *UserSummary     `json:"author,omitempty"`
	Category    *CategorySummary `json:"category,omitempty"`
}

// IsPublished возвращает true, если пост опубликован.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// TrendingPost — пост с вычисленным рейтингом популярности.
type TrendingPost struct {
	Post
	LikesCount int64   `json:"likesCount"`
	Score      float64 `json:"score"`
}

// Summary возвращает представление поста для вложения в комментарий (title author category).
func (p *Post) Summary() *PostSummary {
	return &PostSummary{ID: p.ID, Title: p.Title, Author: p.Author, Category: p.Category}
}

// PostSummary — пост, «подтянутый» в комментарий.
type PostSummary struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Author   *UserSummary     `json:"author,omitempty"`
	Category *CategorySummary `json:"category,omitempty"`
}
