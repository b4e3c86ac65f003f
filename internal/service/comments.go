package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"github.com/pribylovaa/go-content-platform/internal/tree"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// latestCommentsLimit — размер ленты последних комментариев.
const latestCommentsLimit = 50

// CreateCommentInput — создание комментария или ответа (ParentID не пуст).
type CreateCommentInput struct {
	Content  string
	AuthorID string
	PostID   string
	ParentID string
}

// CommentLikeResult — результат переключения отметки у комментария.
type CommentLikeResult struct {
	Liked      bool
	LikesCount int64
	Comment    *models.Comment
}

// CreateComment создаёт комментарий.
//
// Валидация:
//   - content обязателен, не длиннее 1000 символов, не более 3 ссылок;
//   - author обязателен и должен существовать;
//   - parent (если задан) должен быть видимым комментарием того же поста.
//
// Ошибки: ErrInvalidArgument, ErrNotFound (пост), ErrInternal.
func (s *Service) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	const op = "service/comments/CreateComment"

	c := models.Comment{
		Content:  strings.TrimSpace(in.Content),
		AuthorID: strings.TrimSpace(in.AuthorID),
		PostID:   strings.TrimSpace(in.PostID),
		ParentID: strings.TrimSpace(in.ParentID),
		Likes:    []string{},
	}

	lg := log.From(ctx).With("op", op, "post_id", c.PostID, "author_id", c.AuthorID, "parent_id", c.ParentID)

	fe := fieldErrors{}
	if err := validateCommentContent(c.Content); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			for k, v := range ve.Fields {
				fe.add(k, v)
			}
		}
	}

	if c.AuthorID == "" {
		fe.add("author", "required")
	}

	if c.PostID == "" {
		fe.add("post", "required")
	}

	if err := fe.err(); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	post, err := s.storage.PostByID(ctx, c.PostID)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	author, err := s.storage.UserByID(ctx, c.AuthorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("invalid_argument: unknown author")
			return nil, fmt.Errorf("%s: %w", op, invalid("author", "author not found"))
		}

		return nil, storageErr(lg, op, err)
	}

	if c.ParentID != "" {
		parent, err := s.storage.CommentByID(ctx, c.ParentID, storage.CommentQuery{})
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("invalid_argument: parent not found")
			return nil, fmt.Errorf("%s: %w", op, invalid("parentComment", "parent comment not found"))
		case err != nil:
			return nil, storageErr(lg, op, err)
		case parent.PostID != c.PostID:
			lg.Warn("invalid_argument: parent belongs to another post")
			return nil, fmt.Errorf("%s: %w", op, invalid("parentComment", "parent comment belongs to another post"))
		}
	}

	out, err := s.storage.CreateComment(ctx, c)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	// Пост мог быть удалён между проверкой и вставкой, а его каскад уже отработал:
	// повторная очистка убирает осиротевший комментарий.
	if _, err := s.storage.PostByID(ctx, c.PostID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, storageErr(lg, op, err)
		}

		if _, perr := s.storage.DeleteCommentsByPost(ctx, c.PostID); perr != nil {
			lg.Error("orphan_comment_purge_failed", "comment_id", out.ID, "err", perr)
		}

		lg.Warn("not_found: post deleted concurrently", "comment_id", out.ID)
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	out.Author = author.Summary()
	if err := s.populatePosts(ctx, post); err != nil {
		lg.Warn("populate_failed", "err", err)
	}
	out.Post = post.Summary()

	lg.Info("comment_created", "comment_id", out.ID)

	return out, nil
}

// PostComments возвращает видимые комментарии поста в виде дерева ответов.
// Корни и ответы упорядочены по времени создания; ответы на скрытые комментарии
// поднимаются в корень.
func (s *Service) PostComments(ctx context.Context, postID string) ([]*tree.Node, error) {
	const op = "service/comments/PostComments"

	postID = strings.TrimSpace(postID)
	lg := log.From(ctx).With("op", op, "post_id", postID)

	if _, err := s.storage.PostByID(ctx, postID); err != nil {
		return nil, storageErr(lg, op, err)
	}

	items, err := s.storage.ListComments(ctx, storage.CommentQuery{PostID: postID}, false, 0)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populateComments(ctx, false, ptrs(items)...); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return tree.Build(items), nil
}

// LatestComments возвращает 50 последних видимых комментариев.
func (s *Service) LatestComments(ctx context.Context) ([]models.Comment, error) {
	const op = "service/comments/LatestComments"

	lg := log.From(ctx).With("op", op)

	items, err := s.storage.ListComments(ctx, storage.CommentQuery{}, true, latestCommentsLimit)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populateComments(ctx, true, ptrs(items)...); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return items, nil
}

// GetComment возвращает видимый комментарий.
func (s *Service) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	const op = "service/comments/GetComment"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "comment_id", id)

	c, err := s.storage.CommentByID(ctx, id, storage.CommentQuery{})
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populateComments(ctx, true, c); err != nil {
		return nil, storageErr(lg, op, err)
	}

	return c, nil
}

// UpdateComment меняет текст видимого комментария и помечает его отредактированным.
func (s *Service) UpdateComment(ctx context.Context, id, content string) (*models.Comment, error) {
	const op = "service/comments/UpdateComment"

	id, content = strings.TrimSpace(id), strings.TrimSpace(content)
	lg := log.From(ctx).With("op", op, "comment_id", id)

	if err := validateCommentContent(content); err != nil {
		lg.Warn("invalid_argument", "err", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c, err := s.storage.UpdateCommentContent(ctx, id, content)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populateComments(ctx, true, c); err != nil {
		lg.Warn("populate_failed", "err", err)
	}

	return c, nil
}

// DeleteComment мягко удаляет комментарий. Повторное удаление — ErrNotFound.
func (s *Service) DeleteComment(ctx context.Context, id string) error {
	const op = "service/comments/DeleteComment"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "comment_id", id)

	if err := s.storage.SoftDeleteComment(ctx, id); err != nil {
		return storageErr(lg, op, err)
	}

	lg.Info("comment_soft_deleted")

	return nil
}

// ToggleCommentLike ставит или снимает отметку пользователя у видимого комментария.
func (s *Service) ToggleCommentLike(ctx context.Context, id, userID string) (*CommentLikeResult, error) {
	const op = "service/comments/ToggleCommentLike"

	id, userID = strings.TrimSpace(id), strings.TrimSpace(userID)
	lg := log.From(ctx).With("op", op, "comment_id", id, "user_id", userID)

	if err := s.checkLiker(ctx, lg, op, userID); err != nil {
		return nil, err
	}

	c, err := s.storage.CommentByID(ctx, id, storage.CommentQuery{})
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	liked := !slices.Contains(c.Likes, userID)

	out, err := s.storage.SetCommentLike(ctx, id, userID, liked)
	if err != nil {
		return nil, storageErr(lg, op, err)
	}

	if err := s.populateComments(ctx, false, out); err != nil {
		lg.Warn("populate_failed", "err", err)
	}

	return &CommentLikeResult{Liked: liked, LikesCount: int64(len(out.Likes)), Comment: out}, nil
}

// populateComments заполняет Author; withPost=true дополнительно подтягивает пост
// (title, автор, категория).
func (s *Service) populateComments(ctx context.Context, withPost bool, comments ...*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	authorIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		authorIDs = append(authorIDs, c.AuthorID)
	}

	authors, err := s.userSummaries(ctx, authorIDs)
	if err != nil {
		return err
	}

	posts := map[string]*models.PostSummary{}
	if withPost {
		seen := map[string]bool{}
		for _, c := range comments {
			if seen[c.PostID] {
				continue
			}
			seen[c.PostID] = true

			p, err := s.storage.PostByID(ctx, c.PostID)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			if err := s.populatePosts(ctx, p); err != nil {
				return err
			}
			posts[p.ID] = p.Summary()
		}
	}

	for _, c := range comments {
		c.Author = authors[c.AuthorID]
		c.Post = posts[c.PostID]
	}

	return nil
}
