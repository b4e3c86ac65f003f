package mongo

import (
	"testing"

	"github.com/pribylovaa/go-content-platform/internal/config"
	"github.com/pribylovaa/go-content-platform/internal/hasher"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/service"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"github.com/stretchr/testify/require"
)

// newTestService собирает Service поверх настоящей MongoDB (без кэша категорий).
func newTestService(t *testing.T) (*service.Service, *Mongo) {
	t.Helper()

	m := mustNewMongo(t)

	cfg := config.Config{
		Limits:   config.LimitsConfig{Default: 10, Max: 100},
		Sentinel: config.SentinelConfig{Username: "deleted", Email: "deleted@system.com"},
	}

	return service.New(m, cfg, hasher.New(4), nil), m
}

func serviceUser(t *testing.T, s *service.Service, username string) *models.User {
	t.Helper()

	u, err := s.CreateUser(testCtx(t), service.CreateUserInput{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "secret123",
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)

	return u
}

func TestService_PostLifecycleKeepsCategoryCount(t *testing.T) {
	s, m := newTestService(t)
	ctx := testCtx(t)

	cat, err := s.CreateCategory(ctx, service.CreateCategoryInput{Name: "Tech", Slug: "tech", Color: "#3b82f6"})
	require.NoError(t, err)
	require.EqualValues(t, 0, cat.PostCount)

	author := serviceUser(t, s, "writer")
	reader := serviceUser(t, s, "reader")

	p, err := s.CreatePost(ctx, service.CreatePostInput{
		Title:      "Go in production",
		Content:    "Long enough content about Go services.",
		AuthorID:   author.ID,
		CategoryID: cat.ID,
	})
	require.NoError(t, err)

	got, err := s.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.PostCount)

	root, err := s.CreateComment(ctx, service.CreateCommentInput{Content: "first", AuthorID: reader.ID, PostID: p.ID})
	require.NoError(t, err)

	reply, err := s.CreateComment(ctx, service.CreateCommentInput{
		Content:  "reply",
		AuthorID: author.ID,
		PostID:   p.ID,
		ParentID: root.ID,
	})
	require.NoError(t, err)
	require.NoError(t, s.DeleteComment(ctx, reply.ID))

	res, err := s.DeletePost(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, res.CommentsDeleted)

	got, err = s.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.PostCount)

	left, err := m.ListComments(ctx, storage.CommentQuery{PostID: p.ID, IncludeDeleted: true}, false, 0)
	require.NoError(t, err)
	require.Empty(t, left)

	_, err = s.GetPost(ctx, p.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	// Повторное удаление не уводит счётчик ниже нуля.
	_, err = s.DeletePost(ctx, p.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	got, err = s.GetCategory(ctx, cat.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, got.PostCount)
}

func TestService_DeleteUserReassignsInTransaction(t *testing.T) {
	s, m := newTestService(t)
	ctx := testCtx(t)

	u := serviceUser(t, s, "leaver")
	other := serviceUser(t, s, "stayer")

	own, err := s.CreatePost(ctx, service.CreatePostInput{
		Title:    "Leaving soon",
		Content:  "This post must outlive its author.",
		AuthorID: u.ID,
	})
	require.NoError(t, err)

	foreign, err := s.CreatePost(ctx, service.CreatePostInput{
		Title:    "Staying here",
		Content:  "This post belongs to someone else.",
		AuthorID: other.ID,
	})
	require.NoError(t, err)

	_, err = s.CreateComment(ctx, service.CreateCommentInput{Content: "mine", AuthorID: u.ID, PostID: foreign.ID})
	require.NoError(t, err)

	hidden, err := s.CreateComment(ctx, service.CreateCommentInput{Content: "hidden", AuthorID: u.ID, PostID: own.ID})
	require.NoError(t, err)
	require.NoError(t, s.DeleteComment(ctx, hidden.ID))

	kept, err := s.CreateComment(ctx, service.CreateCommentInput{Content: "kept", AuthorID: other.ID, PostID: own.ID})
	require.NoError(t, err)

	res, err := s.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, res.UserID)
	require.EqualValues(t, 1, res.PostsReassigned)
	require.EqualValues(t, 2, res.CommentsDeleted)

	sentinel, err := m.UserByUsername(ctx, "deleted")
	require.NoError(t, err)
	require.Equal(t, sentinel.ID, res.SentinelID)
	require.Equal(t, "deleted@system.com", sentinel.Email)
	require.False(t, sentinel.IsActive)

	p, err := m.PostByID(ctx, own.ID)
	require.NoError(t, err)
	require.Equal(t, sentinel.ID, p.AuthorID)

	p, err = m.PostByID(ctx, foreign.ID)
	require.NoError(t, err)
	require.Equal(t, other.ID, p.AuthorID)

	left, err := m.ListComments(ctx, storage.CommentQuery{AuthorID: u.ID, IncludeDeleted: true}, false, 0)
	require.NoError(t, err)
	require.Empty(t, left)

	_, err = m.CommentByID(ctx, kept.ID, storage.CommentQuery{})
	require.NoError(t, err)

	_, err = s.GetUser(ctx, u.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	// Второе удаление переиспользует существующий sentinel.
	res2, err := s.DeleteUser(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, sentinel.ID, res2.SentinelID)
	require.EqualValues(t, 1, res2.PostsReassigned)

	_, err = s.DeleteUser(ctx, sentinel.ID)
	require.ErrorIs(t, err, service.ErrInvalidArgument)
}
