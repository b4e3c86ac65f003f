// storage описывает контракты хранилища content-сервиса.
// Реализация — internal/storage/mongo.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/models"
)

var (
	// ErrNotFound — сущность отсутствует в хранилище (включая неверный формат идентификатора).
	ErrNotFound = errors.New("not found")
	// ErrConflict — конфликт уникальности (username/email/name/slug).
	ErrConflict = errors.New("conflict")
)

// UserSort — допустимые сортировки списка пользователей.
type UserSort string

const (
	UserSortCreatedAt UserSort = "createdAt"
	UserSortUsername  UserSort = "username"
	UserSortLastLogin UserSort = "lastLogin"
)

// UserFilter — фильтр списка пользователей.
// Desc=true — сортировка по убыванию.
type UserFilter struct {
	Role models.Role
	Sort UserSort
	Desc bool
}

// PostSort — допустимые сортировки списка постов.
type PostSort string

const (
	PostSortDate      PostSort = "date"
	PostSortViewCount PostSort = "viewCount"
	PostSortLikes     PostSort = "likes"
)

// PostFilter — фильтр списка постов. Пустые поля не участвуют в выборке.
type PostFilter struct {
	Status     models.PostStatus
	AuthorID   string
	CategoryID string
	Sort       PostSort
}

// CommentQuery — выборка комментариев.
// IncludeDeleted=false (по умолчанию) скрывает мягко удалённые записи.
type CommentQuery struct {
	PostID         string
	AuthorID       string
	IncludeDeleted bool
}

// Users — операции над пользователями.
type Users interface {
	// CreateUser вставляет пользователя. ID/CreatedAt/UpdatedAt выставляет хранилище.
	// Возможные ошибки: ErrConflict.
	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	// UserByID возвращает пользователя или ErrNotFound.
	UserByID(ctx context.Context, id string) (*models.User, error)
	// UserByEmail ищет по email (в нижнем регистре) или ErrNotFound.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByUsername ищет по username или ErrNotFound.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UsersByIDs возвращает найденных пользователей; отсутствующие id пропускаются.
	UsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	// ListUsers возвращает страницу пользователей и общее число подходящих записей.
	ListUsers(ctx context.Context, f UserFilter, p models.ListParams) ([]models.User, int64, error)
	// UpdateUser перезаписывает изменяемые поля профиля. Возможные ошибки: ErrNotFound, ErrConflict.
	UpdateUser(ctx context.Context, u models.User) (*models.User, error)
	// SetUserActive выставляет isActive. Возможные ошибки: ErrNotFound.
	SetUserActive(ctx context.Context, id string, active bool) (*models.User, error)
	// TouchLastLogin выставляет lastLogin. Возможные ошибки: ErrNotFound.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	// DeleteUser физически удаляет пользователя. Возможные ошибки: ErrNotFound.
	DeleteUser(ctx context.Context, id string) error
}

// Categories — операции над категориями.
type Categories interface {
	// CreateCategory вставляет категорию с postCount=0. Возможные ошибки: ErrConflict.
	CreateCategory(ctx context.Context, c models.Category) (*models.Category, error)
	// CategoryByID возвращает категорию или ErrNotFound.
	CategoryByID(ctx context.Context, id string) (*models.Category, error)
	// CategoriesByIDs возвращает найденные категории; отсутствующие id пропускаются.
	CategoriesByIDs(ctx context.Context, ids []string) ([]models.Category, error)
	// ListCategories возвращает все категории по имени.
	ListCategories(ctx context.Context) ([]models.Category, error)
	// IncPostCount атомарно прибавляет delta к postCount. Возможные ошибки: ErrNotFound.
	IncPostCount(ctx context.Context, id string, delta int64) error
	// SetPostCount перезаписывает postCount (явный пересчёт). Возможные ошибки: ErrNotFound.
	SetPostCount(ctx context.Context, id string, n int64) error
}

// Posts — операции над постами.
type Posts interface {
	// CreatePost вставляет пост. ID/CreatedAt/UpdatedAt выставляет хранилище.
	CreatePost(ctx context.Context, p models.Post) (*models.Post, error)
	// PostByID возвращает пост или ErrNotFound.
	PostByID(ctx context.Context, id string) (*models.Post, error)
	// ListPosts возвращает страницу постов и общее число подходящих записей.
	ListPosts(ctx context.Context, f PostFilter, p models.ListParams) ([]models.Post, int64, error)
	// CountPosts возвращает число постов, подходящих под фильтр (Sort игнорируется).
	CountPosts(ctx context.Context, f PostFilter) (int64, error)
	// SearchPosts ищет подстроку (без учёта регистра) в title, content и tags.
	SearchPosts(ctx context.Context, q string, p models.ListParams) ([]models.Post, int64, error)
	// TrendingPosts — опубликованные после since посты по убыванию score = viewCount*0.3 + likes*0.7.
	TrendingPosts(ctx context.Context, since time.Time, limit int64) ([]models.TrendingPost, error)
	// ReplacePost атомарно заменяет документ и возвращает его предыдущую версию.
	// Возможные ошибки: ErrNotFound.
	ReplacePost(ctx context.Context, p models.Post) (*models.Post, error)
	// DeletePost физически удаляет пост и возвращает удалённый документ.
	// Возможные ошибки: ErrNotFound.
	DeletePost(ctx context.Context, id string) (*models.Post, error)
	// IncViewCount атомарно увеличивает viewCount и возвращает новую версию. Возможные ошибки: ErrNotFound.
	IncViewCount(ctx context.Context, id string) (*models.Post, error)
	// SetPostLike добавляет (liked=true) или убирает userID из likes и возвращает новую версию.
	// Возможные ошибки: ErrNotFound.
	SetPostLike(ctx context.Context, id, userID string, liked bool) (*models.Post, error)
	// ReassignPosts переводит все посты автора from на автора to и возвращает число изменённых.
	ReassignPosts(ctx context.Context, from, to string) (int64, error)
	// UserStats агрегирует статистику постов автора.
	UserStats(ctx context.Context, authorID string) (*models.UserStats, error)
}

// Comments — операции над комментариями. Чтение учитывает CommentQuery.IncludeDeleted.
type Comments interface {
	// CreateComment вставляет комментарий.
	CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error)
	// CommentByID возвращает комментарий или ErrNotFound (в том числе для скрытых).
	CommentByID(ctx context.Context, id string, q CommentQuery) (*models.Comment, error)
	// ListComments возвращает комментарии по запросу.
	// newestFirst=false — по возрастанию created_at (порядок для дерева). limit<=0 — без ограничения.
	ListComments(ctx context.Context, q CommentQuery, newestFirst bool, limit int64) ([]models.Comment, error)
	// UpdateCommentContent меняет текст видимого комментария и выставляет isEdited.
	// Возможные ошибки: ErrNotFound.
	UpdateCommentContent(ctx context.Context, id, content string) (*models.Comment, error)
	// SoftDeleteComment выставляет isDeleted=true у видимого комментария. Возможные ошибки: ErrNotFound.
	SoftDeleteComment(ctx context.Context, id string) error
	// SetCommentLike добавляет или убирает userID из likes видимого комментария.
	// Возможные ошибки: ErrNotFound.
	SetCommentLike(ctx context.Context, id, userID string, liked bool) (*models.Comment, error)
	// DeleteCommentsByPost физически удаляет все комментарии поста (включая скрытые).
	DeleteCommentsByPost(ctx context.Context, postID string) (int64, error)
	// DeleteCommentsByAuthor физически удаляет все комментарии автора (включая скрытые).
	DeleteCommentsByAuthor(ctx context.Context, authorID string) (int64, error)
}

// Stats — сводные агрегации.
type Stats interface {
	// Dashboard собирает сводную статистику; activity считается с момента since.
	Dashboard(ctx context.Context, since time.Time) (*models.Dashboard, error)
}

// Tx — граница транзакции.
type Tx interface {
	// WithinTransaction выполняет fn в транзакции. Все операции хранилища внутри fn
	// должны получать переданный в fn ctx. Ошибка fn откатывает транзакцию и
	// возвращается как есть.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Storage — полный контракт хранилища.
type Storage interface {
	Users
	Categories
	Posts
	Comments
	Stats
	Tx

	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close закрывает соединения/ресурсы хранилища.
	Close(ctx context.Context) error
}
