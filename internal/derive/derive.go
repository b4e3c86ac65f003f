// derive вычисляет производные поля сущностей перед записью.
//
// Функции чистые относительно хранилища и идемпотентны: повторный вызов
// на уже обработанной сущности ничего не меняет.
package derive

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pribylovaa/go-content-platform/internal/models"
)

// ExcerptLength — длина автоматического анонса в символах.
const ExcerptLength = 100

// AvatarBaseURL — генератор аватаров по инициалам.
const AvatarBaseURL = "https://api.dicebear.com/7.x/initials/svg"

// Hasher — хэширование учётных данных.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

// Post выставляет excerpt и publishedAt.
// prev == nil при создании; иначе prev — текущая сохранённая версия.
//   - тело изменилось (создание или другой content) и excerpt пуст: excerpt = первые 100 символов content;
//   - статус published и publishedAt не выставлен: publishedAt = now;
//   - выставленный однажды publishedAt переносится из prev и не перезаписывается.
func Post(prev, next *models.Post, now time.Time) {
	if next == nil {
		return
	}

	bodyChanged := prev == nil || prev.Content != next.Content
	if bodyChanged && strings.TrimSpace(next.Excerpt) == "" {
		next.Excerpt = firstRunes(next.Content, ExcerptLength)
	}

	if prev != nil && prev.PublishedAt != nil {
		at := *prev.PublishedAt
		next.PublishedAt = &at
	}

	if next.Status == models.PostStatusPublished && next.PublishedAt == nil {
		at := now.UTC()
		next.PublishedAt = &at
	}
}

// User нормализует имя, выставляет аватар по умолчанию и хэширует ожидающий пароль.
// Пароль хэшируется только если u.Password не пуст; после хэширования он очищается,
// поэтому повторный вызов не хэширует повторно.
func User(u *models.User, h Hasher) error {
	if u == nil {
		return nil
	}

	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)

	if strings.TrimSpace(u.Avatar) == "" {
		u.Avatar = DefaultAvatar(u)
	}

	if u.Password != "" {
		if h == nil {
			return fmt.Errorf("derive: nil hasher")
		}

		hash, err := h.Hash(u.Password)
		if err != nil {
			return fmt.Errorf("derive: hash password: %w", err)
		}

		u.PasswordHash = hash
		u.Password = ""
	}

	return nil
}

// DefaultAvatar строит детерминированный URL аватара по инициалам
// (первые буквы имени и фамилии в верхнем регистре, иначе username).
func DefaultAvatar(u *models.User) string {
	seed := initials(u.FirstName) + initials(u.LastName)
	if seed == "" {
		seed = u.Username
	}

	return AvatarBaseURL + "?seed=" + url.QueryEscape(seed)
}

func initials(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	r, _ := utf8.DecodeRuneInString(s)

	return string(unicode.ToUpper(r))
}

func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}

	return s
}
