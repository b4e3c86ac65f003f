// models содержит доменные сущности content-сервиса.
// Типы не зависят от хранилища: идентификаторы — строки (hex ObjectID MongoDB),
// конвертация в документы выполняется слоем storage.
package models

import (
	"strings"
	"time"
)

// Role — роль пользователя.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid сообщает, входит ли роль в допустимый набор.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

// User — внутренняя доменная модель пользователя.
// Важно:
//   - Password — «ожидающий» секрет в открытом виде; derive.User хэширует его в PasswordHash
//     и очищает. В хранилище и наружу не попадает.
//   - PasswordHash наружу не отдаётся (json:"-").
//   - LastLogin == nil, пока пользователь ни разу не входил.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Password     string     `json:"-"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Age          *int       `json:"age,omitempty"`
	Bio          string     `json:"bio"`
	Avatar       string     `json:"avatar"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// FullName — виртуальное поле «Имя Фамилия».
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Summary возвращает облегчённое представление автора для вложения в посты/комментарии.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		Avatar:    u.Avatar,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
	}
}

// UserSummary — автор, «подтянутый» в ответ (username avatar firstName lastName fullName).
type UserSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	FullName  string `json:"fullName"`
}

// UserStats — агрегированная статистика авторства.
type UserStats struct {
	TotalPosts int64   `json:"totalPosts"`
	TotalViews int64   `json:"totalViews"`
	AvgViews   float64 `json:"avgViews"`
	TotalLikes int64   `json:"totalLikes"`
}
