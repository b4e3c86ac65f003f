package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pribylovaa/go-content-platform/internal/models"
)

// Ограничения полей.
const (
	usernameMinLen     = 3
	usernameMaxLen     = 30
	passwordMinLen     = 6
	nameMaxLen         = 50
	ageMin             = 13
	ageMax             = 120
	bioMaxLen          = 500
	titleMaxLen        = 200
	contentMinLen      = 10
	excerptMaxLen      = 300
	tagsMax            = 10
	tagMaxLen          = 20
	commentMaxLen      = 1000
	commentMaxLinks    = 3
	categoryNameMaxLen = 100
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRe    = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)
	avatarRe   = regexp.MustCompile(`(?i)^https?://.+`)
	titleRe    = regexp.MustCompile(`^[0-9A-Za-zÀ-ÖØ-öø-ÿ\s]+$`)
	linkRe     = regexp.MustCompile(`https?://\S+`)
)

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// normalizeEmail приводит email к каноническому виду хранения.
func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// validateUser проверяет профиль пользователя (после нормализации).
// requirePassword=true при создании: новый пароль обязателен.
func validateUser(u *models.User, requirePassword bool) error {
	fe := fieldErrors{}

	switch n := runeLen(u.Username); {
	case n == 0:
		fe.add("username", "required")
	case n < usernameMinLen || n > usernameMaxLen:
		fe.add("username", "must be 3-30 characters")
	case !usernameRe.MatchString(u.Username):
		fe.add("username", "must contain only letters, digits and underscore")
	}

	switch {
	case u.Email == "":
		fe.add("email", "required")
	case !emailRe.MatchString(u.Email):
		fe.add("email", "invalid email")
	}

	if requirePassword && u.Password == "" {
		fe.add("password", "required")
	}

	if u.Password != "" && runeLen(u.Password) < passwordMinLen {
		fe.add("password", "must be at least 6 characters")
	}

	validateName(fe, "firstName", u.FirstName)
	validateName(fe, "lastName", u.LastName)

	if u.Age != nil && (*u.Age < ageMin || *u.Age > ageMax) {
		fe.add("age", "must be an integer between 13 and 120")
	}

	if runeLen(u.Bio) > bioMaxLen {
		fe.add("bio", "must be at most 500 characters")
	}

	if u.Avatar != "" && !avatarRe.MatchString(u.Avatar) {
		fe.add("avatar", "must be an http(s) URL")
	}

	if !u.Role.Valid() {
		fe.add("role", "must be one of user, moderator, admin")
	}

	return fe.err()
}

func validateName(fe fieldErrors, field, v string) {
	switch n := runeLen(v); {
	case n == 0:
		fe.add(field, "required")
	case n > nameMaxLen:
		fe.add(field, "must be at most 50 characters")
	}
}

// normalizeTags обрезает пробелы у тегов.
func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}

	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.TrimSpace(t))
	}

	return out
}

// validatePost проверяет пост (после нормализации).
func validatePost(p *models.Post) error {
	fe := fieldErrors{}

	switch n := runeLen(p.Title); {
	case n == 0:
		fe.add("title", "required")
	case n > titleMaxLen:
		fe.add("title", "must be at most 200 characters")
	case !titleRe.MatchString(p.Title):
		fe.add("title", "must contain only letters, digits and spaces")
	}

	switch n := runeLen(p.Content); {
	case strings.TrimSpace(p.Content) == "":
		fe.add("content", "required")
	case n < contentMinLen:
		fe.add("content", "must be at least 10 characters")
	}

	if runeLen(p.Excerpt) > excerptMaxLen {
		fe.add("excerpt", "must be at most 300 characters")
	}

	if p.AuthorID == "" {
		fe.add("authorId", "required")
	}

	if len(p.Tags) > tagsMax {
		fe.add("tags", "at most 10 tags allowed")
	}

	for _, t := range p.Tags {
		if runeLen(t) > tagMaxLen {
			fe.add("tags", "each tag must be at most 20 characters")
			break
		}
	}

	if !p.Status.Valid() {
		fe.add("status", "must be one of draft, published, archived")
	}

	return fe.err()
}

// validateCommentContent проверяет текст комментария (после TrimSpace).
func validateCommentContent(content string) error {
	fe := fieldErrors{}

	switch {
	case content == "":
		fe.add("content", "required")
	case runeLen(content) > commentMaxLen:
		fe.add("content", "must be at most 1000 characters")
	case len(linkRe.FindAllString(content, -1)) > commentMaxLinks:
		fe.add("content", "at most 3 links allowed")
	}

	return fe.err()
}

// validateCategory проверяет категорию (после нормализации).
func validateCategory(c *models.Category) error {
	fe := fieldErrors{}

	switch n := runeLen(c.Name); {
	case n == 0:
		fe.add("name", "required")
	case n > categoryNameMaxLen:
		fe.add("name", "must be at most 100 characters")
	}

	if c.Slug == "" {
		fe.add("slug", "required")
	}

	return fe.err()
}
