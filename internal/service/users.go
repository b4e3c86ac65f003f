package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/go-content-platform/internal/derive"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// CreateUserInput — регистрация пользователя. Пустая роль -> user.
type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Age       *int
	Bio       string
	Avatar    string
	Role      models.Role
}

// UpdateUserInput — частичное обновление профиля: nil-поля не меняются.
// ClearAge=true удаляет возраст.
type UpdateUserInput struct {
	ID        string
	Username  *string
	Email     *string
	Password  *string
	FirstName *string
	LastName  *string
	Age       *int
	ClearAge  bool
	Bio       *string
	Avatar    *string
	Role      *models.Role
}

// ListUsersInput — параметры списка пользователей.
// Sort: createdAt | username | lastLogin, префикс "-" — по убыванию.
type ListUsersInput struct {
	Page  int64
	Limit int64
	Sort  string
	Role  string
}

// CreateUser — регистрация пользователя.
//
// Валидация: правила профиля (username, email, password, имена, возраст, bio, avatar, role);
// username и email служебного пользователя зарезервированы.
// Поведение: имена обрезаются, email приводится к нижнему регистру, пустой avatar
// заменяется сгенерированным по инициалам, пароль хэшируется.
//
// Ошибки: ErrInvalidArgument, ErrConflict (username/email заняты), ErrInternal.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	const op = "service/users/CreateUser"

	u := models.User{
		Username:  strings.TrimSpace(in.Username),
		Email:     normalizeEmail(in.Email),
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Age:       in.Age,
		Bio:       in.Bio,
		Avatar:    strings.TrimSpace(in.Avatar),
		Role:      in.Role,
		IsActive:  true,
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	lg := log.From(ctx).With("op", op, "username", u.Username)

	if err := validateUser(&u, true); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.reservedIdentity(&u, nil); err != nil {
		lg.Warn("invalid_argument: reserved identity", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := derive.User(&u, s.hasher); err != nil {
		lg.Error("derive_failed", "err", err)
		return nil, internalErr(op, err)
	}

	out, err := s.storage.CreateUser(ctx, u)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	lg.Info("user_created", "user_id", out.ID)

	return out, nil
}

// GetUser возвращает пользователя по id. Ошибки: ErrNotFound, ErrInternal.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "service/users/GetUser"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "user_id", id)

	if id == "" {
		lg.Warn("invalid_argument: empty id")
		return nil, fmt.Errorf("%s: %w", op, invalid("id", "required"))
	}

	u, err := s.storage.UserByID(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	return u, nil
}

// ListUsers возвращает страницу пользователей с фильтром по роли и сортировкой.
func (s *Service) ListUsers(ctx context.Context, in ListUsersInput) (*models.Page[models.User], error) {
	const op = "service/users/ListUsers"

	lg := log.From(ctx).With("op", op)

	f, err := parseUserFilter(in.Sort, in.Role)
	if err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := s.listParams(models.ListParams{Page: in.Page, Limit: in.Limit})

	items, total, err := s.storage.ListUsers(ctx, f, p)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	return models.NewPage(items, p, total), nil
}

func parseUserFilter(sortBy, role string) (storage.UserFilter, error) {
	var f storage.UserFilter
	fe := fieldErrors{}

	sortBy = strings.TrimSpace(sortBy)
	if strings.HasPrefix(sortBy, "-") {
		f.Desc = true
		sortBy = sortBy[1:]
	}

	switch storage.UserSort(sortBy) {
	case "":
		f.Sort = storage.UserSortCreatedAt
	case storage.UserSortCreatedAt, storage.UserSortUsername, storage.UserSortLastLogin:
		f.Sort = storage.UserSort(sortBy)
	default:
		fe.add("sort", "must be one of createdAt, username, lastLogin")
	}

	if role = strings.TrimSpace(role); role != "" {
		f.Role = models.Role(role)
		if !f.Role.Valid() {
			fe.add("role", "must be one of user, moderator, admin")
		}
	}

	return f, fe.err()
}

// UpdateUser применяет частичное обновление профиля.
// Новый пароль хэшируется; остальные правила — как при создании.
//
// Ошибки: ErrInvalidArgument, ErrNotFound, ErrConflict, ErrInternal.
func (s *Service) UpdateUser(ctx context.Context, in UpdateUserInput) (*models.User, error) {
	const op = "service/users/UpdateUser"

	id := strings.TrimSpace(in.ID)
	lg := log.From(ctx).With("op", op, "user_id", id)

	u, err := s.storage.UserByID(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	prev := *u
	applyUserPatch(u, in)

	if err := validateUser(u, false); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.reservedIdentity(u, &prev); err != nil {
		lg.Warn("invalid_argument: reserved identity", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := derive.User(u, s.hasher); err != nil {
		lg.Error("derive_failed", "err", err)
		return nil, internalErr(op, err)
	}

	out, err := s.storage.UpdateUser(ctx, *u)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	return out, nil
}

func applyUserPatch(u *models.User, in UpdateUserInput) {
	if in.Username != nil {
		u.Username = strings.TrimSpace(*in.Username)
	}

	if in.Email != nil {
		u.Email = normalizeEmail(*in.Email)
	}

	if in.Password != nil {
		u.Password = *in.Password
	}

	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}

	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}

	switch {
	case in.ClearAge:
		u.Age = nil
	case in.Age != nil:
		age := *in.Age
		u.Age = &age
	}

	if in.Bio != nil {
		u.Bio = *in.Bio
	}

	if in.Avatar != nil {
		u.Avatar = strings.TrimSpace(*in.Avatar)
	}

	if in.Role != nil {
		u.Role = *in.Role
	}
}

// ToggleActive инвертирует флаг активности пользователя. Служебный пользователь остаётся неактивным.
func (s *Service) ToggleActive(ctx context.Context, id string) (*models.User, error) {
	const op = "service/users/ToggleActive"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "user_id", id)

	u, err := s.storage.UserByID(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if s.isSentinel(u) {
		lg.Warn("invalid_argument: sentinel user cannot be activated")
		return nil, fmt.Errorf("%s: %w", op, invalid("id", "sentinel user cannot be activated"))
	}

	out, err := s.storage.SetUserActive(ctx, id, !u.IsActive)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	lg.Info("user_active_toggled", "is_active", out.IsActive)

	return out, nil
}

// Login проверяет email/пароль и отмечает время входа.
//
// Ошибки: ErrInvalidArgument (пустые поля), ErrUnauthorized (неизвестный email,
// неверный пароль, неактивный пользователь), ErrInternal.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	const op = "service/users/Login"

	email = normalizeEmail(email)
	lg := log.From(ctx).With("op", op, "email", email)

	fe := fieldErrors{}
	if email == "" {
		fe.add("email", "required")
	}

	if password == "" {
		fe.add("password", "required")
	}

	if err := fe.err(); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u, err := s.storage.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("login_failed: unknown email")
			return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		return nil, storageErr(lg, op, err)
	}

	if !u.IsActive || s.hasher == nil || !s.hasher.Compare(u.PasswordHash, password) {
		lg.Warn("login_failed", "user_id", u.ID, "is_active", u.IsActive)
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	at := s.now().UTC()
	if err := s.storage.TouchLastLogin(ctx, u.ID, at); err != nil {
		return nil, storageErr(lg, op, err)
	}
	u.LastLogin = &at

	lg.Info("user_logged_in", "user_id", u.ID)

	return u, nil
}

// UserPosts возвращает страницу постов пользователя (новые первыми).
func (s *Service) UserPosts(ctx context.Context, id string, p models.ListParams) (*models.Page[models.Post], error) {
	const op = "service/users/UserPosts"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "user_id", id)

	if _, err := s.storage.UserByID(ctx, id); err != nil {
		return nil, storageErr(lg, op, err)
	}

	p = s.listParams(p)

	items, total, err := s.storage.ListPosts(ctx, storage.PostFilter{AuthorID: id, Sort: storage.PostSortDate}, p)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populatePosts(ctx, ptrs(items)...); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return models.NewPage(items, p, total), nil
}

// UserStats возвращает статистику постов пользователя.
func (s *Service) UserStats(ctx context.Context, id string) (*models.UserStats, error) {
	const op = "service/users/UserStats"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "user_id", id)

	if _, err := s.storage.UserByID(ctx, id); err != nil {
		return nil, storageErr(lg, op, err)
	}

	st, err := s.storage.UserStats(ctx, id)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	return st, nil
}
