package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-content-platform/internal/config"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

// testTimeout — общий дедлайн на операции с БД в тестах.
const testTimeout = 15 * time.Second

// TestMain запускает MongoDB (replica set из одного узла, нужен для транзакций)
// в контейнере один раз на весь пакет. Адрес прокидывается в DATABASE_URL,
// каждый тест создаёт свою БД с уникальным именем (см. newTestConfig).
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7.0",
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
	}

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	if err := initReplicaSet(ctx, mongoC); err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to initiate replica set: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("DATABASE_URL", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

// initReplicaSet выполняет rs.initiate и ждёт, пока узел станет primary.
func initReplicaSet(ctx context.Context, c testcontainers.Container) error {
	initiate := []string{"mongosh", "--quiet", "--eval",
		"rs.initiate({_id:'rs0',members:[{_id:0,host:'localhost:27017'}]})"}
	if code, out, err := c.Exec(ctx, initiate); err != nil || code != 0 {
		msg, _ := io.ReadAll(out)
		return fmt.Errorf("rs.initiate exit=%d err=%v out=%s", code, err, msg)
	}

	isPrimary := []string{"mongosh", "--quiet", "--eval", "db.hello().isWritablePrimary"}
	for {
		code, out, err := c.Exec(ctx, isPrimary)
		if err == nil && code == 0 {
			msg, _ := io.ReadAll(out)
			if strings.Contains(string(msg), "true") {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// newTestConfig создаёт конфиг с отдельной тестовой БД.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	baseURL := os.Getenv("DATABASE_URL")
	if baseURL == "" {
		t.Skip("DATABASE_URL is not set; run with GO_TEST_INTEGRATION=1")
	}

	dbName := "content_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	return &config.Config{
		DB: config.DBConfig{
			URL: strings.TrimSuffix(baseURL, "/") + "/" + dbName + "?directConnection=true",
		},
		Limits: config.LimitsConfig{Default: 10, Max: 100},
	}
}

// mustNewMongo создаёт подключение к тестовой БД и регистрирует очистку по завершении теста.
func mustNewMongo(t *testing.T) *Mongo {
	t.Helper()

	cfg := newTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	m, err := New(ctx, cfg, nil)
	require.NoError(t, err, "DATABASE_URL=%s", cfg.DB.URL)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})

	return m
}

func testCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)

	return ctx
}

func mustUser(t *testing.T, m *Mongo, username string) *models.User {
	t.Helper()

	u, err := m.CreateUser(testCtx(t), models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		FirstName:    "First",
		LastName:     "Last",
		Role:         models.RoleUser,
		IsActive:     true,
	})
	require.NoError(t, err)

	return u
}

func mustPost(t *testing.T, m *Mongo, authorID, categoryID string) *models.Post {
	t.Helper()

	p, err := m.CreatePost(testCtx(t), models.Post{
		Title:      "title " + uuid.NewString(),
		Content:    "content",
		AuthorID:   authorID,
		CategoryID: categoryID,
		Status:     models.PostStatusDraft,
	})
	require.NoError(t, err)

	return p
}

func TestDatabaseFromURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri  string
		want string
	}{
		{"mongodb://localhost:27017", defaultDBName},
		{"mongodb://localhost:27017/", defaultDBName},
		{"mongodb://localhost:27017/blog", "blog"},
		{"mongodb://u:p@h1,h2/blog?replicaSet=rs0", "blog"},
		{"::bad::", defaultDBName},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, databaseFromURI(tt.uri), tt.uri)
	}
}

func TestPostDoc_Conversion(t *testing.T) {
	t.Parallel()

	author := primitive.NewObjectID()
	liker := primitive.NewObjectID()
	published := time.Date(2024, 1, 2, 3, 4, 5, 678901234, time.UTC)

	doc, ok := newPostDoc(models.Post{
		Title:       "t",
		AuthorID:    author.Hex(),
		Likes:       []string{liker.Hex(), "junk"},
		PublishedAt: &published,
	})
	require.True(t, ok)
	require.Nil(t, doc.Category)
	require.Equal(t, []primitive.ObjectID{liker}, doc.Likes)
	require.Equal(t, published.Truncate(time.Millisecond), *doc.PublishedAt)

	p := doc.model()
	require.Equal(t, author.Hex(), p.AuthorID)
	require.Empty(t, p.CategoryID)
	require.Equal(t, []string{liker.Hex()}, p.Likes)

	_, ok = newPostDoc(models.Post{AuthorID: "nope"})
	require.False(t, ok)
}

func TestCommentDoc_Conversion(t *testing.T) {
	t.Parallel()

	_, ok := newCommentDoc(models.Comment{AuthorID: primitive.NewObjectID().Hex(), PostID: "bad"})
	require.False(t, ok)

	parent := primitive.NewObjectID()
	doc, ok := newCommentDoc(models.Comment{
		AuthorID: primitive.NewObjectID().Hex(),
		PostID:   primitive.NewObjectID().Hex(),
		ParentID: parent.Hex(),
	})
	require.True(t, ok)
	require.NotNil(t, doc.ParentComment)
	require.Equal(t, parent.Hex(), doc.model().ParentID)
}

func TestUsers_CreateConflictAndLookup(t *testing.T) {
	m := mustNewMongo(t)
	ctx := testCtx(t)

	u := mustUser(t, m, "alice")
	require.NotEmpty(t, u.ID)

	_, err := m.CreateUser(ctx, models.User{Username: "alice", Email: "other@example.com", Role: models.RoleUser})
	require.ErrorIs(t, err, storage.ErrConflict)

	got, err := m.UserByEmail(ctx, " ALICE@example.com ")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = m.UserByID(ctx, "deadbeef")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestComments_VisibilityHidesSoftDeleted(t *testing.T) {
	m := mustNewMongo(t)
	ctx := testCtx(t)

	u := mustUser(t, m, "bob")
	p := mustPost(t, m, u.ID, "")

	keep, err := m.CreateComment(ctx, models.Comment{Content: "keep", AuthorID: u.ID, PostID: p.ID})
	require.NoError(t, err)
	gone, err := m.CreateComment(ctx, models.Comment{Content: "gone", AuthorID: u.ID, PostID: p.ID})
	require.NoError(t, err)

	require.NoError(t, m.SoftDeleteComment(ctx, gone.ID))
	require.ErrorIs(t, m.SoftDeleteComment(ctx, gone.ID), storage.ErrNotFound)

	visible, err := m.ListComments(ctx, storage.CommentQuery{PostID: p.ID}, false, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, keep.ID, visible[0].ID)

	_, err = m.CommentByID(ctx, gone.ID, storage.CommentQuery{})
	require.ErrorIs(t, err, storage.ErrNotFound)

	hidden, err := m.CommentByID(ctx, gone.ID, storage.CommentQuery{IncludeDeleted: true})
	require.NoError(t, err)
	require.True(t, hidden.IsDeleted)
	require.Equal(t, "gone", hidden.Content)

	_, err = m.UpdateCommentContent(ctx, gone.ID, "edit")
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Обёртка коллекции сама добавляет предикат: условие только по post не возвращает скрытый.
	cur, err := m.comments.Find(ctx, storage.CommentQuery{}, bson.D{{Key: "post", Value: mustOID(t, p.ID)}})
	require.NoError(t, err)
	var raw []commentDoc
	require.NoError(t, cur.All(ctx, &raw))
	require.Len(t, raw, 1)
	require.Equal(t, keep.ID, raw[0].ID.Hex())

	require.ErrorIs(t, m.comments.FindOne(ctx, storage.CommentQuery{}, bson.D{{Key: "_id", Value: mustOID(t, gone.ID)}}).Err(),
		mongodriver.ErrNoDocuments)

	all, err := m.ListComments(ctx, storage.CommentQuery{PostID: p.ID, IncludeDeleted: true}, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Документ без поля is_deleted тоже видим.
	_, err = m.comments.coll.InsertOne(ctx, bson.D{
		{Key: "content", Value: "legacy"},
		{Key: "author", Value: mustOID(t, u.ID)},
		{Key: "post", Value: mustOID(t, p.ID)},
		{Key: "created_at", Value: now()},
	})
	require.NoError(t, err)

	visible, err = m.ListComments(ctx, storage.CommentQuery{PostID: p.ID}, false, 0)
	require.NoError(t, err)
	require.Len(t, visible, 2)

	n, err := m.DeleteCommentsByPost(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestComments_LikesAreIdempotent(t *testing.T) {
	m := mustNewMongo(t)
	ctx := testCtx(t)

	u := mustUser(t, m, "carol")
	p := mustPost(t, m, u.ID, "")
	c, err := m.CreateComment(ctx, models.Comment{Content: "c", AuthorID: u.ID, PostID: p.ID})
	require.NoError(t, err)

	for range 2 {
		c, err = m.SetCommentLike(ctx, c.ID, u.ID, true)
		require.NoError(t, err)
	}
	require.Equal(t, []string{u.ID}, c.Likes)

	c, err = m.SetCommentLike(ctx, c.ID, u.ID, false)
	require.NoError(t, err)
	require.Empty(t, c.Likes)
}

func TestCategories_PostCount(t *testing.T) {
	m := mustNewMongo(t)
	ctx := testCtx(t)

	cat, err := m.CreateCategory(ctx, models.Category{Name: "Go", Slug: "go"})
	require.NoError(t, err)
	require.Zero(t, cat.PostCount)

	require.NoError(t, m.IncPostCount(ctx, cat.ID, 1))
	require.NoError(t, m.IncPostCount(ctx, cat.ID, 1))
	require.NoError(t, m.IncPostCount(ctx, cat.ID, -1))

	got, err := m.CategoryByID(ctx, cat.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.PostCount)

	require.NoError(t, m.SetPostCount(ctx, cat.ID, 7))
	got, err = m.CategoryByID(ctx, cat.ID)
	require.NoError(t, err)
	require.EqualValues(t, 7, got.PostCount)

	require.ErrorIs(t, m.IncPostCount(ctx, primitive.NewObjectID().Hex(), 1), storage.ErrNotFound)
	require.ErrorIs(t, m.IncPostCount(ctx, primitive.NewObjectID().Hex(), -1), storage.ErrNotFound)

	_, err = m.CreateCategory(ctx, models.Category{Name: "Go", Slug: "go-2"})
	require.ErrorIs(t, err, storage.ErrConflict)
}

func TestCategories_PostCountNeverNegative(t *testing.T) {
	m := mustNewMongo(t)
	ctx := testCtx(t)

	cat, err := m.CreateCategory(ctx, models.Category{Name: "Empty", Slug: "empty"})
	require.NoError(t, err)

	require.NoError(t, m.IncPostCount(ctx, cat.ID, -1))
	got, err := m.CategoryByID(ctx, cat.ID)
	require.NoError(t, err)
	require.Zero(t, got.PostCount)

	require.NoError(t, m.IncPostCount(ctx, cat.ID, 1))
	require.NoError(t, m.IncPostCount(ctx, cat.ID, -3))
	got, err = m.CategoryByID(ctx, cat.ID)
	require.NoError(t, err)
	require.Zero(t, got.PostCount)

	// Документ без поля post_count.
	oid := primitive.NewObjectID()
	_, err = m.categories.InsertOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "name", Value: "Legacy"}, {Key: "slug", Value: "legacy"}})
	require.NoError(t, err)
	require.NoError(t, m.IncPostCount(ctx, oid.Hex(), -1))
	got, err = m.CategoryByID(ctx, oid.Hex())
	require.NoError(t, err)
	require.Zero(t, got.PostCount)
}

func TestPosts_ListSearchTrending(t *testing.T) {
	m := mustNewMongo(t)
	ctx := testCtx(t)

	u := mustUser(t, m, "dave")
	other := mustUser(t, m, "erin")

	a := mustPost(t, m, u.ID, "")
	b := mustPost(t, m, u.ID, "")

	published := now()
	b.Status = models.PostStatusPublished
	b.PublishedAt = &published
	b.Title = "Learning Go (1.24)"
	b.Tags = []string{"golang"}
	_, err := m.ReplacePost(ctx, *b)
	require.NoError(t, err)

	_, err = m.SetPostLike(ctx, b.ID, other.ID, true)
	require.NoError(t, err)
	_, err = m.IncViewCount(ctx, b.ID)
	require.NoError(t, err)

	list, total, err := m.ListPosts(ctx, storage.PostFilter{AuthorID: u.ID}, models.ListParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, list, 2)

	list, _, err = m.ListPosts(ctx, storage.PostFilter{Sort: storage.PostSortLikes}, models.ListParams{Page: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, b.ID, list[0].ID)

	n, err := m.CountPosts(ctx, storage.PostFilter{Status: models.PostStatusPublished})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	found, total, err := m.SearchPosts(ctx, "go (1.", models.ListParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, b.ID, found[0].ID)

	found, _, err = m.SearchPosts(ctx, "GOLANG", models.ListParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, found, 1)

	trending, err := m.TrendingPosts(ctx, time.Now().Add(-7*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, trending, 1)
	require.EqualValues(t, 1, trending[0].LikesCount)
	require.InDelta(t, 1*0.3+1*0.7, trending[0].Score, 1e-9)

	deleted, err := m.DeletePost(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, deleted.ID)

	_, err = m.DeletePost(ctx, a.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWithinTransaction_RollbackOnError(t *testing.T) {
	m := mustNewMongo(t)
	ctx := testCtx(t)

	u := mustUser(t, m, "frank")
	sentinel := mustUser(t, m, "deleted")
	p := mustPost(t, m, u.ID, "")
	_, err := m.CreateComment(ctx, models.Comment{Content: "c", AuthorID: u.ID, PostID: p.ID})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.WithinTransaction(ctx, func(ctx context.Context) error {
		n, err := m.ReassignPosts(ctx, u.ID, sentinel.ID)
		if err != nil {
			return err
		}
		require.EqualValues(t, 1, n)

		if _, err := m.DeleteCommentsByAuthor(ctx, u.ID); err != nil {
			return err
		}

		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := m.PostByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, got.AuthorID)

	left, err := m.ListComments(ctx, storage.CommentQuery{AuthorID: u.ID, IncludeDeleted: true}, false, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)

	err = m.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := m.ReassignPosts(ctx, u.ID, sentinel.ID); err != nil {
			return err
		}

		if _, err := m.DeleteCommentsByAuthor(ctx, u.ID); err != nil {
			return err
		}

		return m.DeleteUser(ctx, u.ID)
	})
	require.NoError(t, err)

	got, err = m.PostByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, sentinel.ID, got.AuthorID)

	_, err = m.UserByID(ctx, u.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDashboard(t *testing.T) {
	m := mustNewMongo(t)
	ctx := testCtx(t)

	u := mustUser(t, m, "gina")
	cat, err := m.CreateCategory(ctx, models.Category{Name: "News", Slug: "news", Color: "#fff"})
	require.NoError(t, err)

	p := mustPost(t, m, u.ID, cat.ID)
	_ = mustPost(t, m, u.ID, "")

	c, err := m.CreateComment(ctx, models.Comment{Content: "c", AuthorID: u.ID, PostID: p.ID})
	require.NoError(t, err)
	_, err = m.CreateComment(ctx, models.Comment{Content: "d", AuthorID: u.ID, PostID: p.ID})
	require.NoError(t, err)
	require.NoError(t, m.SoftDeleteComment(ctx, c.ID))

	d, err := m.Dashboard(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, d.ActiveUsers)
	require.Equal(t, []models.StatusCount{{Status: "draft", Count: 2}}, d.PostsByStatus)
	require.Equal(t, []models.CategoryRank{{Name: "News", Color: "#fff", TotalPosts: 1}}, d.TopCategories)
	require.Len(t, d.MostCommented, 1)
	require.EqualValues(t, 1, d.MostCommented[0].Comments)
	require.Len(t, d.ActivityLast30Days, 1)
	require.EqualValues(t, 2, d.ActivityLast30Days[0].Posts)
}

func mustOID(t *testing.T, id string) primitive.ObjectID {
	t.Helper()

	oid, ok := parseOID(id)
	require.True(t, ok)

	return oid
}
