package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/go-content-platform/internal/derive"
	"github.com/pribylovaa/go-content-platform/internal/hasher"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// ReassignResult — итог удаления пользователя с переназначением постов.
type ReassignResult struct {
	UserID          string `json:"userId"`
	SentinelID      string `json:"sentinelId"`
	PostsReassigned int64  `json:"postsReassigned"`
	CommentsDeleted int64  `json:"commentsDeleted"`
}

// DeleteUser удаляет пользователя в одной транзакции:
//  1. загружает пользователя;
//  2. находит или создаёт служебного пользователя (sentinel);
//  3. переназначает ему все посты пользователя;
//  4. удаляет все комментарии пользователя, включая скрытые;
//  5. удаляет пользователя.
//
// Любой сбой откатывает все шаги. Ошибки: ErrNotFound, ErrInvalidArgument
// (попытка удалить sentinel), ErrConflict (username sentinel занят обычной учётной записью),
// ErrTransactionFailed.
func (s *Service) DeleteUser(ctx context.Context, id string) (*ReassignResult, error) {
	const op = "service/reassign/DeleteUser"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "user_id", id)

	if id == "" {
		lg.Warn("invalid_argument: empty id")
		return nil, fmt.Errorf("%s: %w", op, invalid("id", "required"))
	}

	var res ReassignResult

	err := s.storage.WithinTransaction(ctx, func(ctx context.Context) error {
		// Транзакция может быть повторена драйвером: результат собирается заново.
		res = ReassignResult{UserID: id}

		u, err := s.storage.UserByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}

		sentinel, err := s.sentinel(ctx)
		if err != nil {
			return fmt.Errorf("sentinel: %w", err)
		}

		if sentinel.ID == u.ID {
			return errDeleteSentinel
		}
		res.SentinelID = sentinel.ID

		if res.PostsReassigned, err = s.storage.ReassignPosts(ctx, u.ID, sentinel.ID); err != nil {
			return fmt.Errorf("reassign posts: %w", err)
		}

		if res.CommentsDeleted, err = s.storage.DeleteCommentsByAuthor(ctx, u.ID); err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}

		if err := s.storage.DeleteUser(ctx, u.ID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}

		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, errDeleteSentinel):
			lg.Warn("invalid_argument: sentinel user cannot be deleted")
			return nil, fmt.Errorf("%s: %w", op, invalid("id", "sentinel user cannot be deleted"))
		case errors.Is(err, errSentinelTaken):
			lg.Error("sentinel_conflict", "err", err)
			return nil, fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("not_found", "err", err)
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		case isCtxErr(err):
			lg.Warn("request_aborted", "err", err)
			return nil, fmt.Errorf("%s: %w: %w", op, ErrTransactionFailed, err)
		default:
			lg.Error("transaction_failed", "err", err)
			return nil, fmt.Errorf("%s: %w: %v", op, ErrTransactionFailed, err)
		}
	}

	lg.Info("user_deleted",
		"sentinel_id", res.SentinelID,
		"posts_reassigned", res.PostsReassigned,
		"comments_deleted", res.CommentsDeleted,
	)

	return &res, nil
}

var (
	errDeleteSentinel = errors.New("sentinel user cannot be deleted")
	errSentinelTaken  = errors.New("sentinel username belongs to a regular account")
)

// sentinelIdentity — username и email служебного пользователя.
func (s *Service) sentinelIdentity() (string, string) {
	name := s.cfg.Sentinel.Username
	if name == "" {
		name = "deleted"
	}

	email := s.cfg.Sentinel.Email
	if email == "" {
		email = "deleted@system.com"
	}

	return name, normalizeEmail(email)
}

// isSentinel — учётная запись служебная: совпадают username и email, вход отключён.
func (s *Service) isSentinel(u *models.User) bool {
	name, email := s.sentinelIdentity()

	return u.Username == name && u.Email == email && !u.IsActive
}

// reservedIdentity отклоняет username/email служебного пользователя у обычной учётной записи.
// prev — текущая версия при обновлении (nil при создании); сам sentinel свои поля сохраняет.
func (s *Service) reservedIdentity(u, prev *models.User) error {
	name, email := s.sentinelIdentity()
	fe := fieldErrors{}

	if strings.EqualFold(u.Username, name) && (prev == nil || !strings.EqualFold(prev.Username, name)) {
		fe.add("username", "is reserved")
	}

	if u.Email == email && (prev == nil || prev.Email != email) {
		fe.add("email", "is reserved")
	}

	return fe.err()
}

// sentinel находит служебного пользователя по username или создаёт его.
// Пароль — случайный секрет, который никому не сообщается; пользователь неактивен.
// Активная или чужая учётная запись с тем же username служебной не считается: errSentinelTaken.
func (s *Service) sentinel(ctx context.Context) (*models.User, error) {
	name, email := s.sentinelIdentity()

	u, err := s.storage.UserByUsername(ctx, name)
	if err == nil {
		if !s.isSentinel(u) {
			return nil, fmt.Errorf("%w: user %s", errSentinelTaken, u.ID)
		}

		return u, nil
	}

	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	secret, err := hasher.RandomSecret()
	if err != nil {
		return nil, err
	}

	if s.hasher == nil {
		return nil, errors.New("nil hasher")
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}

	u = &models.User{
		Username:     name,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Deleted",
		LastName:     "User",
		Role:         models.RoleUser,
		IsActive:     false,
	}
	u.Avatar = derive.DefaultAvatar(u)

	return s.storage.CreateUser(ctx, *u)
}
