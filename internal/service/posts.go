package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/derive"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// Параметры выдачи популярных постов.
const (
	trendingWindow = 7 * 24 * time.Hour
	trendingLimit  = 10
)

// CreatePostInput — создание поста. Пустой статус -> draft.
type CreatePostInput struct {
	Title      string
	Content    string
	Excerpt    string
	AuthorID   string
	CategoryID string
	Tags       []string
	Status     models.PostStatus
	Featured   bool
}

// UpdatePostInput — частичное обновление поста: nil-поля не меняются.
// Пустая строка в CategoryID снимает категорию.
type UpdatePostInput struct {
	ID         string
	Title      *string
	Content    *string
	Excerpt    *string
	CategoryID *string
	Tags       *[]string
	Status     *models.PostStatus
	Featured   *bool
}

// ListPostsInput — параметры ленты постов. Sort: date | viewCount | likes.
type ListPostsInput struct {
	Page     int64
	Limit    int64
	Status   string
	AuthorID string
	Category string
	Sort     string
}

// DeletePostResult — результат удаления поста.
type DeletePostResult struct {
	Post            *models.Post
	CommentsDeleted int64
}

// LikeResult — результат переключения отметки «нравится».
type LikeResult struct {
	Liked      bool
	LikesCount int64
	Post       *models.Post
}

// CreatePost создаёт пост.
//
// Валидация: правила поста; автор должен существовать, категория (если задана) — тоже.
// Поведение: excerpt и publishedAt вычисляются derive.Post; после вставки
// увеличивается postCount категории.
//
// Ошибки: ErrInvalidArgument, ErrInternal. ErrCascadeFailed возвращается вместе с созданным постом.
func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	const op = "service/posts/CreatePost"

	p := models.Post{
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		Excerpt:    strings.TrimSpace(in.Excerpt),
		AuthorID:   strings.TrimSpace(in.AuthorID),
		CategoryID: strings.TrimSpace(in.CategoryID),
		Tags:       normalizeTags(in.Tags),
		Status:     in.Status,
		Featured:   in.Featured,
		Likes:      []string{},
	}
	if p.Status == "" {
		p.Status = models.PostStatusDraft
	}

	lg := log.From(ctx).With("op", op, "author_id", p.AuthorID, "category_id", p.CategoryID)

	if err := validatePost(&p); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.checkReferences(ctx, lg, op, p.AuthorID, p.CategoryID); err != nil {
		return nil, err
	}

	derive.Post(nil, &p, s.now())

	out, err := s.storage.CreatePost(ctx, p)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	lg.Info("post_created", "post_id", out.ID)

	cerr := s.cascade.PostCreated(ctx, out)

	if err := s.populatePosts(ctx, out); err != nil {
		lg.Warn("populate_failed", "err", err)
	}

	return out, withCascade(op, cerr)
}

// checkReferences проверяет существование автора и категории (если задана).
func (s *Service) checkReferences(ctx context.Context, lg *slog.Logger, op, authorID, categoryID string) error {
	fe := fieldErrors{}

	if authorID != "" {
		if _, err := s.storage.UserByID(ctx, authorID); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return storageErr(lg, op, err)
			}
			fe.add("authorId", "author not found")
		}
	}

	if categoryID != "" {
		if _, err := s.storage.CategoryByID(ctx, categoryID); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return storageErr(lg, op, err)
			}
			fe.add("categoryId", "category not found")
		}
	}

	if err := fe.err(); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetPost возвращает пост и увеличивает его счётчик просмотров.
func (s *Service) GetPost(ctx context.Context, id string) (*models.Post, error) {
	const op = "service/posts/GetPost"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "post_id", id)

	p, err := s.storage.IncViewCount(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populatePosts(ctx, p); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return p, nil
}

// ListPosts возвращает ленту постов с фильтрами и сортировкой.
func (s *Service) ListPosts(ctx context.Context, in ListPostsInput) (*models.Page[models.Post], error) {
	const op = "service/posts/ListPosts"

	lg := log.From(ctx).With("op", op)

	f := storage.PostFilter{
		Status:     models.PostStatus(strings.TrimSpace(in.Status)),
		AuthorID:   strings.TrimSpace(in.AuthorID),
		CategoryID: strings.TrimSpace(in.Category),
		Sort:       storage.PostSort(strings.TrimSpace(in.Sort)),
	}

	fe := fieldErrors{}
	if f.Status != "" && !f.Status.Valid() {
		fe.add("status", "must be one of draft, published, archived")
	}

	switch f.Sort {
	case "":
		f.Sort = storage.PostSortDate
	case storage.PostSortDate, storage.PostSortViewCount, storage.PostSortLikes:
	default:
		fe.add("sort", "must be one of date, viewCount, likes")
	}

	if err := fe.err(); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := s.listParams(models.ListParams{Page: in.Page, Limit: in.Limit})

	items, total, err := s.storage.ListPosts(ctx, f, p)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populatePosts(ctx, ptrs(items)...); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return models.NewPage(items, p, total), nil
}

// SearchPosts ищет посты по подстроке в title, content и tags.
func (s *Service) SearchPosts(ctx context.Context, q string, p models.ListParams) (*models.Page[models.Post], error) {
	const op = "service/posts/SearchPosts"

	q = strings.TrimSpace(q)
	lg := log.From(ctx).With("op", op, "q", q)

	if q == "" {
		lg.Warn("invalid_argument: empty q")
		return nil, fmt.Errorf("%s: %w", op, invalid("q", "required"))
	}

	p = s.listParams(p)

	items, total, err := s.storage.SearchPosts(ctx, q, p)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populatePosts(ctx, ptrs(items)...); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return models.NewPage(items, p, total), nil
}

// TrendingPosts возвращает до 10 постов, опубликованных за последние 7 дней,
// по убыванию score = viewCount*0.3 + likes*0.7.
func (s *Service) TrendingPosts(ctx context.Context) ([]models.TrendingPost, error) {
	const op = "service/posts/TrendingPosts"

	lg := log.From(ctx).With("op", op)

	items, err := s.storage.TrendingPosts(ctx, s.now().Add(-trendingWindow), trendingLimit)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	posts := make([]*models.Post, 0, len(items))
	for i := range items {
		posts = append(posts, &items[i].Post)
	}

	if err := s.populatePosts(ctx, posts...); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return items, nil
}

// UpdatePost применяет частичное обновление.
//
// Поведение: производные поля пересчитываются относительно текущей версии;
// замена атомарна, и при смене категории каскад считается по заменённой версии.
//
// Ошибки: ErrInvalidArgument, ErrNotFound, ErrInternal. ErrCascadeFailed — вместе с новой версией.
func (s *Service) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	const op = "service/posts/UpdatePost"

	id := strings.TrimSpace(in.ID)
	lg := log.From(ctx).With("op", op, "post_id", id)

	cur, err := s.storage.PostByID(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	next := *cur
	applyPostPatch(&next, in)

	if err := validatePost(&next); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if next.CategoryID != cur.CategoryID {
		if err := s.checkReferences(ctx, lg, op, "", next.CategoryID); err != nil {
			return nil, err
		}
	}

	return s.replacePost(ctx, lg, op, cur, &next)
}

func applyPostPatch(p *models.Post, in UpdatePostInput) {
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}

	if in.Content != nil {
		p.Content = *in.Content
	}

	if in.Excerpt != nil {
		p.Excerpt = strings.TrimSpace(*in.Excerpt)
	}

	if in.CategoryID != nil {
		p.CategoryID = strings.TrimSpace(*in.CategoryID)
	}

	if in.Tags != nil {
		p.Tags = normalizeTags(*in.Tags)
	}

	if in.Status != nil {
		p.Status = *in.Status
	}

	if in.Featured != nil {
		p.Featured = *in.Featured
	}
}

// replacePost выполняет derive, атомарную замену и каскад по смене категории.
func (s *Service) replacePost(ctx context.Context, lg *slog.Logger, op string, cur, next *models.Post) (*models.Post, error) {
	now := s.now()
	derive.Post(cur, next, now)
	next.UpdatedAt = now.UTC().Truncate(time.Millisecond)

	prev, err := s.storage.ReplacePost(ctx, *next)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	cerr := s.cascade.PostCategoryChanged(ctx, next.ID, prev.CategoryID, next.CategoryID)

	if err := s.populatePosts(ctx, next); err != nil {
		lg.Warn("populate_failed", "err", err)
	}

	return next, withCascade(op, cerr)
}

// PublishPost публикует пост. Уже выставленный publishedAt не меняется.
func (s *Service) PublishPost(ctx context.Context, id string) (*models.Post, error) {
	const op = "service/posts/PublishPost"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "post_id", id)

	cur, err := s.storage.PostByID(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	next := *cur
	next.Status = models.PostStatusPublished

	out, err := s.replacePost(ctx, lg, op, cur, &next)
	if err == nil || errors.Is(err, ErrCascadeFailed) {
		lg.Info("post_published")
	}

	return out, err
}

// DeletePost удаляет пост, затем его комментарии и уменьшает postCount категории.
//
// Ошибки: ErrNotFound, ErrInternal. ErrCascadeFailed — вместе с результатом удаления.
func (s *Service) DeletePost(ctx context.Context, id string) (*DeletePostResult, error) {
	const op = "service/posts/DeletePost"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "post_id", id)

	p, err := s.storage.DeletePost(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	purged, cerr := s.cascade.PostDeleted(ctx, p)

	lg.Info("post_deleted", "comments_deleted", purged)

	return &DeletePostResult{Post: p, CommentsDeleted: purged}, withCascade(op, cerr)
}

// TogglePostLike ставит или снимает отметку пользователя.
// Ошибки: ErrInvalidArgument (пустой/неизвестный userId), ErrNotFound (пост), ErrInternal.
func (s *Service) TogglePostLike(ctx context.Context, id, userID string) (*LikeResult, error) {
	const op = "service/posts/TogglePostLike"

	id, userID = strings.TrimSpace(id), strings.TrimSpace(userID)
	lg := log.From(ctx).With("op", op, "post_id", id, "user_id", userID)

	if err := s.checkLiker(ctx, lg, op, userID); err != nil {
		return nil, err
	}

	p, err := s.storage.PostByID(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	liked := !slices.Contains(p.Likes, userID)

	out, err := s.storage.SetPostLike(ctx, id, userID, liked)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populatePosts(ctx, out); err != nil {
		lg.Warn("populate_failed", "err", err)
	}

	return &LikeResult{Liked: liked, LikesCount: int64(len(out.Likes)), Post: out}, nil
}

// checkLiker проверяет, что отметку ставит существующий пользователь.
func (s *Service) checkLiker(ctx context.Context, lg *slog.Logger, op, userID string) error {
	if userID == "" {
		lg.Warn("invalid_argument: empty user_id")
		return fmt.Errorf("%s: %w", op, invalid("userId", "required"))
	}

	if _, err := s.storage.UserByID(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("invalid_argument: unknown user")
			return fmt.Errorf("%s: %w", op, invalid("userId", "user not found"))
		}

		return storageErr(lg, op, err)
	}

	return nil
}

// populatePosts заполняет Author и Category у постов двумя пакетными запросами.
func (s *Service) populatePosts(ctx context.Context, posts ...*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	authorIDs := make([]string, 0, len(posts))
	categoryIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
		if p.CategoryID != "" {
			categoryIDs = append(categoryIDs, p.CategoryID)
		}
	}

	authors, err := s.userSummaries(ctx, authorIDs)
	if err != nil {
		return err
	}

	categories := map[string]*models.CategorySummary{}
	if len(categoryIDs) > 0 {
		list, err := s.storage.CategoriesByIDs(ctx, uniq(categoryIDs))
		if err != nil {
			return err
		}

		for i := range list {
			categories[list[i].ID] = list[i].Summary()
		}
	}

	for _, p := range posts {
		p.Author = authors[p.AuthorID]
		p.Category = categories[p.CategoryID]
	}

	return nil
}

func (s *Service) userSummaries(ctx context.Context, ids []string) (map[string]*models.UserSummary, error) {
	out := map[string]*models.UserSummary{}
	if len(ids) == 0 {
		return out, nil
	}

	users, err := s.storage.UsersByIDs(ctx, uniq(ids))
	if err != nil {
		return nil, err
	}

	for i := range users {
		out[users[i].ID] = users[i].Summary()
	}

	return out, nil
}

func ptrs[T any](items []T) []*T {
	out := make([]*T, 0, len(items))
	for i := range items {
		out = append(out, &items[i])
	}

	return out
}

func uniq(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)

	return slices.Compact(out)
}
