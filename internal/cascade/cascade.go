// cascade поддерживает ссылочную целостность после основной записи.
//
// Каждый шаг каскада — явный упорядоченный вызов из одного места записи сущности.
// Основная запись к моменту вызова уже зафиксирована и не откатывается:
// неудавшиеся шаги возвращаются как *Error, повторных попыток нет.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// Шаги каскада.
const (
	StepIncrementPostCount = "increment_post_count"
	StepDecrementPostCount = "decrement_post_count"
	StepPurgeComments      = "purge_comments"
)

// Counters — денормализованные счётчики категорий.
type Counters interface {
	IncPostCount(ctx context.Context, id string, delta int64) error
}

// CommentPurger — физическое удаление комментариев поста.
type CommentPurger interface {
	DeleteCommentsByPost(ctx context.Context, postID string) (int64, error)
}

// Invalidator — сброс кэшированной категории.
type Invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// Failure — неудавшийся шаг каскада.
type Failure struct {
	Step   string
	Target string
	Err    error
}

// Error — частичный сбой каскада после успешной основной записи.
type Error struct {
	Op       string
	EntityID string
	Failures []Failure
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s(%s): %v", f.Step, f.Target, f.Err))
	}

	return fmt.Sprintf("cascade %s %s: %s", e.Op, e.EntityID, strings.Join(parts, "; "))
}

// Unwrap позволяет errors.Is/As добраться до ошибок отдельных шагов.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}

	return out
}

// Coordinator выполняет каскадные шаги для постов.
type Coordinator struct {
	counters Counters
	comments CommentPurger
	cache    Invalidator // может быть nil, если кэш не сконфигурирован
}

// New создаёт координатор.
func New(counters Counters, comments CommentPurger) *Coordinator {
	return &Coordinator{counters: counters, comments: comments}
}

// SetCache устанавливает сброс кэша категорий (опционально).
func (c *Coordinator) SetCache(inv Invalidator) {
	c.cache = inv
}

// PostCreated увеличивает postCount категории созданного поста.
// Вызывается только после успешной вставки поста.
func (c *Coordinator) PostCreated(ctx context.Context, p *models.Post) error {
	const op = "post_created"

	if p == nil || p.CategoryID == "" {
		return nil
	}

	var failures []Failure
	c.adjust(ctx, p.CategoryID, 1, &failures)

	return c.report(ctx, op, p.ID, failures)
}

// PostDeleted удаляет комментарии поста и затем уменьшает postCount его категории.
// Оба шага выполняются независимо друг от друга. Возвращает число удалённых комментариев.
func (c *Coordinator) PostDeleted(ctx context.Context, p *models.Post) (int64, error) {
	const op = "post_deleted"

	if p == nil {
		return 0, nil
	}

	var failures []Failure

	purged, err := c.comments.DeleteCommentsByPost(ctx, p.ID)
	if err != nil {
		failures = append(failures, Failure{Step: StepPurgeComments, Target: p.ID, Err: err})
	}

	if p.CategoryID != "" {
		c.adjust(ctx, p.CategoryID, -1, &failures)
	}

	return purged, c.report(ctx, op, p.ID, failures)
}

// PostCategoryChanged переносит пост между категориями: old -1, new +1.
// Пустая категория с любой стороны пропускается; оба шага выполняются всегда.
func (c *Coordinator) PostCategoryChanged(ctx context.Context, postID, oldCategory, newCategory string) error {
	const op = "post_category_changed"

	if oldCategory == newCategory {
		return nil
	}

	var failures []Failure
	if oldCategory != "" {
		c.adjust(ctx, oldCategory, -1, &failures)
	}

	if newCategory != "" {
		c.adjust(ctx, newCategory, 1, &failures)
	}

	return c.report(ctx, op, postID, failures)
}

func (c *Coordinator) adjust(ctx context.Context, categoryID string, delta int64, failures *[]Failure) {
	step := StepIncrementPostCount
	if delta < 0 {
		step = StepDecrementPostCount
	}

	if err := c.counters.IncPostCount(ctx, categoryID, delta); err != nil {
		*failures = append(*failures, Failure{Step: step, Target: categoryID, Err: err})
		return
	}

	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, categoryID); err != nil {
			log.From(ctx).Warn("category_cache_invalidate_failed",
				"category_id", categoryID,
				"err", err,
			)
		}
	}
}

func (c *Coordinator) report(ctx context.Context, op, entityID string, failures []Failure) error {
	if len(failures) == 0 {
		return nil
	}

	cerr := &Error{Op: op, EntityID: entityID, Failures: failures}

	steps := make([]string, 0, len(failures))
	for _, f := range failures {
		steps = append(steps, f.Step+":"+f.Target)
	}

	log.From(ctx).Error("cascade_failed",
		"op", op,
		"entity_id", entityID,
		"failed_steps", steps,
		"err", cerr,
	)

	return cerr
}

// AsError извлекает *Error из цепочки ошибок.
func AsError(err error) (*Error, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr, true
	}

	return nil, false
}
