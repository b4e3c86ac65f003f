package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// CreateCategoryInput — создание категории.
type CreateCategoryInput struct {
	Name        string
	Slug        string
	Description string
	Color       string
	Icon        string
}

// CategoryPosts — посты категории.
type CategoryPosts struct {
	Category   *models.CategorySummary `json:"category"`
	TotalPosts int64                   `json:"totalPosts"`
	Posts      []models.Post           `json:"posts"`
}

// CreateCategory создаёт категорию с postCount=0.
// Ошибки: ErrInvalidArgument, ErrConflict (name/slug заняты), ErrInternal.
func (s *Service) CreateCategory(ctx context.Context, in CreateCategoryInput) (*models.Category, error) {
	const op = "service/categories/CreateCategory"

	c := models.Category{
		Name:        strings.TrimSpace(in.Name),
		Slug:        strings.ToLower(strings.TrimSpace(in.Slug)),
		Description: in.Description,
		Color:       strings.TrimSpace(in.Color),
		Icon:        strings.TrimSpace(in.Icon),
	}

	lg := log.From(ctx).With("op", op, "slug", c.Slug)

	if err := validateCategory(&c); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := s.storage.CreateCategory(ctx, c)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	return out, nil
}

// ListCategories возвращает все категории.
func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	const op = "service/categories/ListCategories"

	out, err := s.storage.ListCategories(ctx)
	if err != nil {
		return nil, storageErr(log.From(ctx).With("op", op), op, err)
	}

	return out, nil
}

// GetCategory возвращает категорию; сначала ищет в кэше (если он настроен).
// Сбои кэша не влияют на результат и только логируются.
func (s *Service) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	const op = "service/categories/GetCategory"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "category_id", id)

	return s.categoryByID(ctx, lg, op, id)
}

func (s *Service) categoryByID(ctx context.Context, lg *slog.Logger, op, id string) (*models.Category, error) {
	if s.cache != nil {
		c, ok, err := s.cache.Get(ctx, id)
		switch {
		case err != nil:
			lg.Warn("category_cache_get_failed", "err", err)
		case ok:
			return c, nil
		}
	}

	c, err := s.storage.CategoryByID(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, c); err != nil {
			lg.Warn("category_cache_set_failed", "err", err)
		}
	}

	return c, nil
}

// CategoryPosts возвращает все посты категории (новые первыми).
func (s *Service) CategoryPosts(ctx context.Context, id string) (*CategoryPosts, error) {
	const op = "service/categories/CategoryPosts"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "category_id", id)

	c, err := s.categoryByID(ctx, lg, op, id)
	if err != nil {
		return nil, err
	}

	posts, total, err := s.storage.ListPosts(ctx, storage.PostFilter{CategoryID: id, Sort: storage.PostSortDate}, models.ListParams{})
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populatePosts(ctx, ptrs(posts)...); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return &CategoryPosts{Category: c.Summary(), TotalPosts: total, Posts: posts}, nil
}

// RecountCategory пересчитывает postCount по фактическому числу постов.
// Явное действие оператора для устранения расхождений после частичных сбоев каскада.
func (s *Service) RecountCategory(ctx context.Context, id string) (*models.Category, error) {
	const op = "service/categories/RecountCategory"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "category_id", id)

	before, err := s.storage.CategoryByID(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	n, err := s.storage.CountPosts(ctx, storage.PostFilter{CategoryID: id})
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.storage.SetPostCount(ctx, id, n); err != nil {
		return nil, storageErr(lg, op, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			lg.Warn("category_cache_invalidate_failed", "err", err)
		}
	}

	if before.PostCount != n {
		lg.Info("category_recounted", "from", before.PostCount, "to", n)
	}

	before.PostCount = n

	return before, nil
}
