package mongo

import (
	"time"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Документы коллекций. Доменные модели не несут bson-тегов, поэтому
// конвертация выполняется здесь; идентификаторы — hex-строки ObjectID.

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	FirstName    string             `bson:"first_name"`
	LastName     string             `bson:"last_name"`
	Age          *int               `bson:"age,omitempty"`
	Bio          string             `bson:"bio"`
	Avatar       string             `bson:"avatar"`
	Role         string             `bson:"role"`
	IsActive     bool               `bson:"is_active"`
	LastLogin    *time.Time         `bson:"last_login"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

type categoryDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Slug        string             `bson:"slug"`
	Description string             `bson:"description"`
	Color       string             `bson:"color,omitempty"`
	Icon        string             `bson:"icon,omitempty"`
	PostCount   int64              `bson:"post_count"`
}

type postDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	Title       string               `bson:"title"`
	Content     string               `bson:"content"`
	Excerpt     string               `bson:"excerpt"`
	Author      primitive.ObjectID   `bson:"author"`
	Category    *primitive.ObjectID  `bson:"category"`
	Tags        []string             `bson:"tags"`
	Status      string               `bson:"status"`
	ViewCount   int64                `bson:"view_count"`
	Likes       []primitive.ObjectID `bson:"likes"`
	PublishedAt *time.Time           `bson:"published_at"`
	Featured    bool                 `bson:"featured"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

// trendingDoc — результат агрегации популярных постов.
type trendingDoc struct {
	Post       postDoc `bson:",inline"`
	LikesCount int64   `bson:"likes_count"`
	Score      float64 `bson:"score"`
}

type commentDoc struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Content       string               `bson:"content"`
	Author        primitive.ObjectID   `bson:"author"`
	Post          primitive.ObjectID   `bson:"post"`
	ParentComment *primitive.ObjectID  `bson:"parent_comment"`
	Likes         []primitive.ObjectID `bson:"likes"`
	IsEdited      bool                 `bson:"is_edited"`
	IsDeleted     bool                 `bson:"is_deleted"`
	CreatedAt     time.Time            `bson:"created_at"`
	UpdatedAt     time.Time            `bson:"updated_at"`
}

func hexOrEmpty(oid *primitive.ObjectID) string {
	if oid == nil || oid.IsZero() {
		return ""
	}

	return oid.Hex()
}

func optionalOID(id string) *primitive.ObjectID {
	if id == "" {
		return nil
	}

	oid, ok := parseOID(id)
	if !ok {
		return nil
	}

	return &oid
}

func hexList(oids []primitive.ObjectID) []string {
	out := make([]string, 0, len(oids))
	for _, oid := range oids {
		out = append(out, oid.Hex())
	}

	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()

	return &u
}

func (d userDoc) model() models.User {
	return models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Age:          d.Age,
		Bio:          d.Bio,
		Avatar:       d.Avatar,
		Role:         models.Role(d.Role),
		IsActive:     d.IsActive,
		LastLogin:    utcPtr(d.LastLogin),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func newUserDoc(u models.User) userDoc {
	d := userDoc{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Age:          u.Age,
		Bio:          u.Bio,
		Avatar:       u.Avatar,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		LastLogin:    u.LastLogin,
		CreatedAt:    toMS(u.CreatedAt),
		UpdatedAt:    toMS(u.UpdatedAt),
	}
	if oid, ok := parseOID(u.ID); ok {
		d.ID = oid
	}

	return d
}

func (d categoryDoc) model() models.Category {
	return models.Category{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		Color:       d.Color,
		Icon:        d.Icon,
		PostCount:   d.PostCount,
	}
}

func newCategoryDoc(c models.Category) categoryDoc {
	d := categoryDoc{
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Color:       c.Color,
		Icon:        c.Icon,
		PostCount:   c.PostCount,
	}
	if oid, ok := parseOID(c.ID); ok {
		d.ID = oid
	}

	return d
}

func (d postDoc) model() models.Post {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}

	return models.Post{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Content:     d.Content,
		Excerpt:     d.Excerpt,
		AuthorID:    d.Author.Hex(),
		CategoryID:  hexOrEmpty(d.Category),
		Tags:        tags,
		Status:      models.PostStatus(d.Status),
		ViewCount:   d.ViewCount,
		Likes:       hexList(d.Likes),
		PublishedAt: utcPtr(d.PublishedAt),
		Featured:    d.Featured,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

// newPostDoc конвертирует модель; ok=false, если автор задан некорректным идентификатором.
func newPostDoc(p models.Post) (postDoc, bool) {
	author, ok := parseOID(p.AuthorID)
	if !ok {
		return postDoc{}, false
	}

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	d := postDoc{
		Title:       p.Title,
		Content:     p.Content,
		Excerpt:     p.Excerpt,
		Author:      author,
		Category:    optionalOID(p.CategoryID),
		Tags:        tags,
		Status:      string(p.Status),
		ViewCount:   p.ViewCount,
		Likes:       parseOIDs(p.Likes),
		PublishedAt: p.PublishedAt,
		Featured:    p.Featured,
		CreatedAt:   toMS(p.CreatedAt),
		UpdatedAt:   toMS(p.UpdatedAt),
	}
	if d.PublishedAt != nil {
		at := toMS(*d.PublishedAt)
		d.PublishedAt = &at
	}
	if oid, ok := parseOID(p.ID); ok {
		d.ID = oid
	}

	return d, true
}

func (d trendingDoc) model() models.TrendingPost {
	return models.TrendingPost{
		Post:       d.Post.model(),
		LikesCount: d.LikesCount,
		Score:      d.Score,
	}
}

func (d commentDoc) model() models.Comment {
	return models.Comment{
		ID:        d.ID.Hex(),
		Content:   d.Content,
		AuthorID:  d.Author.Hex(),
		PostID:    d.Post.Hex(),
		ParentID:  hexOrEmpty(d.ParentComment),
		Likes:     hexList(d.Likes),
		IsEdited:  d.IsEdited,
		IsDeleted: d.IsDeleted,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// newCommentDoc конвертирует модель; ok=false при некорректных author/post.
func newCommentDoc(c models.Comment) (commentDoc, bool) {
	author, ok := parseOID(c.AuthorID)
	if !ok {
		return commentDoc{}, false
	}

	post, ok := parseOID(c.PostID)
	if !ok {
		return commentDoc{}, false
	}

	d := commentDoc{
		Content:       c.Content,
		Author:        author,
		Post:          post,
		ParentComment: optionalOID(c.ParentID),
		Likes:         parseOIDs(c.Likes),
		IsEdited:      c.IsEdited,
		IsDeleted:     c.IsDeleted,
		CreatedAt:     toMS(c.CreatedAt),
		UpdatedAt:     toMS(c.UpdatedAt),
	}
	if oid, ok := parseOID(c.ID); ok {
		d.ID = oid
	}

	return d, true
}
