// service содержит бизнес-логику content-сервиса: валидацию, производные поля,
// каскады целостности и транзакцию удаления пользователя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/cache"
	"github.com/pribylovaa/go-content-platform/internal/cascade"
	"github.com/pribylovaa/go-content-platform/internal/config"
	"github.com/pribylovaa/go-content-platform/internal/derive"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/storage"
)

var (
	// ErrNotFound — сущность отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument — неверные входные параметры; подробности в *ValidationError.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict — конфликт уникальности.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized — неверные учётные данные.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrCascadeFailed — основная запись выполнена, но часть каскадных шагов не удалась.
	// Результат операции при этом возвращается вместе с ошибкой.
	ErrCascadeFailed = errors.New("cascade failed")
	// ErrTransactionFailed — транзакция откатилась.
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrInternal — внутренняя ошибка (стораж/БД/контекст/и т.д.).
	ErrInternal = errors.New("internal")
)

// ValidationError — ошибки валидации по полям. errors.Is(err, ErrInvalidArgument) == true.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}

	return "invalid argument: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// fieldErrors накапливает ошибки валидации.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}

	return &ValidationError{Fields: f}
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// CascadeError извлекает сведения о неудавшихся каскадных шагах из ошибки сервиса.
func CascadeError(err error) (*cascade.Error, bool) {
	return cascade.AsError(err)
}

// Service — бизнес-логика content-service.
type Service struct {
	storage storage.Storage
	cfg     config.Config
	hasher  derive.Hasher
	cascade *cascade.Coordinator
	cache   cache.CategoryCache
	now     func() time.Time
}

// New создает новый экземпляр Service. categories может быть nil — тогда кэш не используется.
func New(st storage.Storage, cfg config.Config, h derive.Hasher, categories cache.CategoryCache) *Service {
	c := cascade.New(st, st)
	if categories != nil {
		c.SetCache(categories)
	}

	return &Service{
		storage: st,
		cfg:     cfg,
		hasher:  h,
		cascade: c,
		cache:   categories,
		now:     time.Now,
	}
}

// limitOrDefault нормализует размер страницы: <=0 -> Default, > Max -> Max.
func (s *Service) limitOrDefault(limit int64) int64 {
	def, maxLimit := s.cfg.Limits.Default, s.cfg.Limits.Max
	if def <= 0 {
		def = 10
	}

	if maxLimit <= 0 {
		maxLimit = 100
	}

	switch {
	case limit <= 0:
		return min(def, maxLimit)
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// listParams нормализует параметры страницы.
func (s *Service) listParams(p models.ListParams) models.ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = s.limitOrDefault(p.Limit)

	return p
}

// withCascade оборачивает ошибку каскада в ErrCascadeFailed, сохраняя *cascade.Error в цепочке.
func withCascade(op string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w: %w", op, ErrCascadeFailed, err)
}

// isCtxErr — отмена/дедлайн клиента. Такие ошибки пробрасываются как есть.
func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// internal оборачивает инфраструктурную ошибку; ошибки контекста остаются распознаваемыми.
func internalErr(op string, err error) error {
	if isCtxErr(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %v", op, ErrInternal, err)
}

// storageErr переводит ошибку хранилища в ошибку сервиса и пишет её в лог.
// Клиентские ошибки (NotFound/Conflict/контекст) — Warn, остальное — Error.
func storageErr(lg *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		lg.Warn("not_found")
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, storage.ErrConflict):
		lg.Warn("conflict")
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case isCtxErr(err):
		lg.Warn("request_aborted", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	default:
		lg.Error("storage_error", "err", err)
		return internalErr(op, err)
	}
}

// Ping проверяет доступность хранилища (health-проверки транспорта).
func (s *Service) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}
