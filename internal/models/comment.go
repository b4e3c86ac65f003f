package models

import "time"

// Comment — внутренняя доменная модель комментария.
// Важно:
//   - ParentID пуст у корневых комментариев; ссылка на родителя — только идентификатор;
//   - IsDeleted — мягкое удаление: запись остаётся в хранилище, но скрыта от обычного чтения;
//   - Author и Post заполняются сервисом при чтении.
type Comment struct {
	ID        string       `json:"id"`
	Content   string       `json:"content"`
	AuthorID  string       `json:"authorId"`
	PostID    string       `json:"postId"`
	ParentID  string       `json:"parentId,omitempty"`
	Likes     []string     `json:"likes"`
	IsEdited  bool         `json:"isEdited"`
	IsDeleted bool         `json:"isDeleted"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Author    *UserSummary `json:"author,omitempty"`
	Post      *PostSummary `json:"post,omitempty"`
}
