package cascade

// Тесты каскадного координатора.
//
// Моки хранилища и кэша:
//   mockgen -destination=./mocks/storage.go -package=mocks github.com/pribylovaa/go-content-platform/internal/storage Storage
//   mockgen -destination=./mocks/cache.go -package=mocks github.com/pribylovaa/go-content-platform/internal/cache CategoryCache

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/mocks"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) (*Coordinator, *mocks.MockStorage, *mocks.MockCategoryCache) {
	t.Helper()
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStorage(ctrl)
	mc := mocks.NewMockCategoryCache(ctrl)

	c := New(ms, ms)
	c.SetCache(mc)

	return c, ms, mc
}

func TestPostCreated_IncrementsAndInvalidates(t *testing.T) {
	c, ms, mc := newCoordinator(t)
	ctx := context.Background()

	gomock.InOrder(
		ms.EXPECT().IncPostCount(ctx, "cat1", int64(1)).Return(nil),
		mc.EXPECT().Invalidate(ctx, "cat1").Return(nil),
	)

	require.NoError(t, c.PostCreated(ctx, &models.Post{ID: "p1", CategoryID: "cat1"}))
}

func TestPostCreated_NoCategory_NoCalls(t *testing.T) {
	c, _, _ := newCoordinator(t)

	require.NoError(t, c.PostCreated(context.Background(), &models.Post{ID: "p1"}))
	require.NoError(t, c.PostCreated(context.Background(), nil))
}

func TestPostCreated_CounterFailure(t *testing.T) {
	c, ms, _ := newCoordinator(t)
	boom := errors.New("mongo down")

	ms.EXPECT().IncPostCount(gomock.Any(), "cat1", int64(1)).Return(boom)

	err := c.PostCreated(context.Background(), &models.Post{ID: "p1", CategoryID: "cat1"})
	require.ErrorIs(t, err, boom)

	cerr, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, "post_created", cerr.Op)
	require.Equal(t, "p1", cerr.EntityID)
	require.Equal(t, []Failure{{Step: StepIncrementPostCount, Target: "cat1", Err: boom}}, cerr.Failures)
}

func TestPostDeleted_PurgeBeforeDecrement(t *testing.T) {
	c, ms, mc := newCoordinator(t)
	ctx := context.Background()

	gomock.InOrder(
		ms.EXPECT().DeleteCommentsByPost(ctx, "p1").Return(int64(3), nil),
		ms.EXPECT().IncPostCount(ctx, "cat1", int64(-1)).Return(nil),
		mc.EXPECT().Invalidate(ctx, "cat1").Return(nil),
	)

	n, err := c.PostDeleted(ctx, &models.Post{ID: "p1", CategoryID: "cat1"})
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestPostDeleted_PurgeFails_DecrementStillAttempted(t *testing.T) {
	c, ms, mc := newCoordinator(t)
	boom := errors.New("purge failed")

	gomock.InOrder(
		ms.EXPECT().DeleteCommentsByPost(gomock.Any(), "p1").Return(int64(0), boom),
		ms.EXPECT().IncPostCount(gomock.Any(), "cat1", int64(-1)).Return(nil),
		mc.EXPECT().Invalidate(gomock.Any(), "cat1").Return(nil),
	)

	_, err := c.PostDeleted(context.Background(), &models.Post{ID: "p1", CategoryID: "cat1"})
	cerr, ok := AsError(err)
	require.True(t, ok)
	require.Len(t, cerr.Failures, 1)
	require.Equal(t, StepPurgeComments, cerr.Failures[0].Step)
}

func TestPostDeleted_BothStepsFail(t *testing.T) {
	c, ms, _ := newCoordinator(t)
	e1, e2 := errors.New("purge"), errors.New("dec")

	ms.EXPECT().DeleteCommentsByPost(gomock.Any(), "p1").Return(int64(0), e1)
	ms.EXPECT().IncPostCount(gomock.Any(), "cat1", int64(-1)).Return(e2)

	_, err := c.PostDeleted(context.Background(), &models.Post{ID: "p1", CategoryID: "cat1"})
	require.ErrorIs(t, err, e1)
	require.ErrorIs(t, err, e2)
	require.Contains(t, err.Error(), "purge_comments(p1)")
	require.Contains(t, err.Error(), "decrement_post_count(cat1)")
}

func TestPostDeleted_NoCategory_OnlyPurge(t *testing.T) {
	c, ms, _ := newCoordinator(t)

	ms.EXPECT().DeleteCommentsByPost(gomock.Any(), "p1").Return(int64(1), nil)

	n, err := c.PostDeleted(context.Background(), &models.Post{ID: "p1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestPostCategoryChanged(t *testing.T) {
	t.Run("same category is a no-op", func(t *testing.T) {
		c, _, _ := newCoordinator(t)
		require.NoError(t, c.PostCategoryChanged(context.Background(), "p1", "a", "a"))
	})

	t.Run("old decremented new incremented", func(t *testing.T) {
		c, ms, mc := newCoordinator(t)
		gomock.InOrder(
			ms.EXPECT().IncPostCount(gomock.Any(), "a", int64(-1)).Return(nil),
			mc.EXPECT().Invalidate(gomock.Any(), "a").Return(nil),
			ms.EXPECT().IncPostCount(gomock.Any(), "b", int64(1)).Return(nil),
			mc.EXPECT().Invalidate(gomock.Any(), "b").Return(nil),
		)
		require.NoError(t, c.PostCategoryChanged(context.Background(), "p1", "a", "b"))
	})

	t.Run("both attempted and each failure reported", func(t *testing.T) {
		c, ms, _ := newCoordinator(t)
		ms.EXPECT().IncPostCount(gomock.Any(), "a", int64(-1)).Return(errors.New("x"))
		ms.EXPECT().IncPostCount(gomock.Any(), "b", int64(1)).Return(errors.New("y"))

		err := c.PostCategoryChanged(context.Background(), "p1", "a", "b")
		cerr, ok := AsError(err)
		require.True(t, ok)
		require.Len(t, cerr.Failures, 2)
		require.Equal(t, StepDecrementPostCount, cerr.Failures[0].Step)
		require.Equal(t, StepIncrementPostCount, cerr.Failures[1].Step)
	})

	t.Run("category removed", func(t *testing.T) {
		c, ms, mc := newCoordinator(t)
		ms.EXPECT().IncPostCount(gomock.Any(), "a", int64(-1)).Return(nil)
		mc.EXPECT().Invalidate(gomock.Any(), "a").Return(nil)
		require.NoError(t, c.PostCategoryChanged(context.Background(), "p1", "a", ""))
	})
}

func TestCacheFailureIsNotCascadeFailure(t *testing.T) {
	c, ms, mc := newCoordinator(t)

	ms.EXPECT().IncPostCount(gomock.Any(), "cat1", int64(1)).Return(nil)
	mc.EXPECT().Invalidate(gomock.Any(), "cat1").Return(errors.New("redis down"))

	require.NoError(t, c.PostCreated(context.Background(), &models.Post{ID: "p1", CategoryID: "cat1"}))
}

func TestWithoutCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStorage(ctrl)
	c := New(ms, ms)

	ms.EXPECT().IncPostCount(gomock.Any(), "cat1", int64(1)).Return(nil)
	require.NoError(t, c.PostCreated(context.Background(), &models.Post{ID: "p1", CategoryID: "cat1"}))
}
