package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pribylovaa/go-content-platform/internal/config"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/service"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"github.com/pribylovaa/go-content-platform/internal/token"
	"github.com/pribylovaa/go-content-platform/mocks"
	"github.com/stretchr/testify/require"
)

// Тесты REST-слоя поверх настоящего сервиса с моком хранилища:
// проверяется маршрутизация, формат ошибок и ответы при частичном каскаде.

type plainHasher struct{}

func (plainHasher) Hash(s string) (string, error) { return "h:" + s, nil }

func (plainHasher) Compare(hash, s string) bool { return hash == "h:"+s }

type envelope struct {
	Error struct {
		Code      string            `json:"code"`
		Message   string            `json:"message"`
		RequestID string            `json:"request_id"`
		Details   map[string]string `json:"details"`
	} `json:"error"`
}

type testServer struct {
	srv    *httptest.Server
	ms     *mocks.MockStorage
	tokens *token.Manager
}

func newTestServer(t *testing.T, withTokens bool) *testServer {
	t.Helper()

	ctrl := gomock.NewController(t)
	ms := mocks.NewMockStorage(ctrl)

	cfg := config.Config{
		Limits:   config.LimitsConfig{Default: 10, Max: 100},
		Sentinel: config.SentinelConfig{Username: "deleted", Email: "deleted@system.com"},
	}
	svc := service.New(ms, cfg, plainHasher{}, nil)

	opts := Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout:  time.Second,
		BasePath: "/api",
	}

	ts := &testServer{ms: ms}
	if withTokens {
		ts.tokens = token.New("secret", "content-service", time.Minute)
		opts.Tokens = ts.tokens
	}

	ts.srv = httptest.NewServer(NewRouter(svc, opts))
	t.Cleanup(ts.srv.Close)

	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string, hdr map[string]string) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)

	for k, v := range hdr {
		req.Header.Set(k, v)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestRouter_Livez(t *testing.T) {
	ts := newTestServer(t, false)

	resp := ts.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestRouter_Healthz(t *testing.T) {
	ts := newTestServer(t, false)

	gomock.InOrder(
		ts.ms.EXPECT().Ping(gomock.Any()).Return(nil),
		ts.ms.EXPECT().Ping(gomock.Any()).Return(errors.New("no primary")),
	)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "", nil).StatusCode)
	require.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/healthz", "", nil).StatusCode)
}

func TestRouter_Metrics(t *testing.T) {
	ts := newTestServer(t, false)

	resp := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	ts := newTestServer(t, false)

	ts.ms.EXPECT().IncViewCount(gomock.Any(), "p404").Return(nil, storage.ErrNotFound)

	resp := ts.do(t, http.MethodGet, "/api/posts/p404", "", map[string]string{"X-Request-Id": "rid-1"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	env := decode[envelope](t, resp)
	require.Equal(t, "not_found", env.Error.Code)
	require.Equal(t, "rid-1", env.Error.RequestID)
}

func TestRouter_ValidationDetails(t *testing.T) {
	ts := newTestServer(t, false)

	resp := ts.do(t, http.MethodPost, "/api/users", `{"username":"a","email":"bad"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	env := decode[envelope](t, resp)
	require.Equal(t, "invalid_argument", env.Error.Code)
	require.Contains(t, env.Error.Details, "username")
	require.Contains(t, env.Error.Details, "email")
	require.Contains(t, env.Error.Details, "password")
}

func TestRouter_MalformedRequests(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		name, method, path, body string
	}{
		{"broken json", http.MethodPost, "/api/posts", `{"title":`},
		{"unknown field", http.MethodPost, "/api/categories", `{"name":"Go","slug":"go","extra":1}`},
		{"bad limit", http.MethodGet, "/api/posts?limit=abc", ""},
		{"negative page", http.MethodGet, "/api/users?page=-1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, tt.method, tt.path, tt.body, nil)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, "invalid_argument", decode[envelope](t, resp).Error.Code)
		})
	}
}

func TestRouter_CreatePost_PartialCascade(t *testing.T) {
	ts := newTestServer(t, false)

	ts.ms.EXPECT().UserByID(gomock.Any(), "u1").Return(&models.User{ID: "u1"}, nil)
	ts.ms.EXPECT().CategoryByID(gomock.Any(), "c1").Return(&models.Category{ID: "c1"}, nil)
	ts.ms.EXPECT().CreatePost(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p models.Post) (*models.Post, error) {
			p.ID = "p1"
			return &p, nil
		})
	ts.ms.EXPECT().IncPostCount(gomock.Any(), "c1", int64(1)).Return(errors.New("write conflict"))
	ts.ms.EXPECT().UsersByIDs(gomock.Any(), gomock.Any()).Return([]models.User{}, nil)
	ts.ms.EXPECT().CategoriesByIDs(gomock.Any(), gomock.Any()).Return([]models.Category{}, nil)

	body := `{"title":"Hello world","content":"Long enough content","author":"u1","category":"c1"}`

	resp := ts.do(t, http.MethodPost, "/api/posts", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "partial", resp.Header.Get("X-Cascade-Status"))

	var out struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Cascade struct {
			Status   string `json:"status"`
			Failures []struct {
				Step   string `json:"step"`
				Target string `json:"target"`
				Error  string `json:"error"`
			} `json:"failures"`
		} `json:"cascade"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	require.Equal(t, "p1", out.ID)
	require.Equal(t, "Hello world", out.Title)
	require.Equal(t, "partial", out.Cascade.Status)
	require.Len(t, out.Cascade.Failures, 1)
	require.Equal(t, "increment_post_count", out.Cascade.Failures[0].Step)
	require.Equal(t, "c1", out.Cascade.Failures[0].Target)
}

func TestRouter_DeletePost_NoCascadeField(t *testing.T) {
	ts := newTestServer(t, false)

	ts.ms.EXPECT().DeletePost(gomock.Any(), "p1").Return(&models.Post{ID: "p1"}, nil)
	ts.ms.EXPECT().DeleteCommentsByPost(gomock.Any(), "p1").Return(int64(3), nil)

	resp := ts.do(t, http.MethodDelete, "/api/posts/p1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("X-Cascade-Status"))

	out := decode[map[string]any](t, resp)
	require.EqualValues(t, 3, out["commentsDeleted"])
	require.NotContains(t, out, "cascade")
}

func TestRouter_PostCommentsTree(t *testing.T) {
	ts := newTestServer(t, false)

	ts.ms.EXPECT().PostByID(gomock.Any(), "p1").Return(&models.Post{ID: "p1"}, nil)
	ts.ms.EXPECT().ListComments(gomock.Any(), storage.CommentQuery{PostID: "p1"}, false, int64(0)).
		Return([]models.Comment{
			{ID: "c1", PostID: "p1", AuthorID: "u1"},
			{ID: "c2", PostID: "p1", AuthorID: "u1", ParentID: "c1"},
		}, nil)
	ts.ms.EXPECT().UsersByIDs(gomock.Any(), []string{"u1"}).
		Return([]models.User{{ID: "u1", Username: "alice"}}, nil)

	resp := ts.do(t, http.MethodGet, "/api/posts/p1/comments", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var roots []struct {
		ID      string `json:"id"`
		Author  struct{ Username string } `json:"author"`
		Replies []struct {
			ID string `json:"id"`
		} `json:"replies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&roots))
	require.Len(t, roots, 1)
	require.Equal(t, "alice", roots[0].Author.Username)
	require.Len(t, roots[0].Replies, 1)
	require.Equal(t, "c2", roots[0].Replies[0].ID)
}

func TestRouter_AdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, true)

	resp := ts.do(t, http.MethodDelete, "/api/admin/users/u1", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	userTok, _, err := ts.tokens.Issue(&models.User{ID: "u9", Role: models.RoleUser})
	require.NoError(t, err)

	resp = ts.do(t, http.MethodDelete, "/api/admin/users/u1", "", map[string]string{"Authorization": "Bearer " + userTok})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_AdminDeleteUser(t *testing.T) {
	ts := newTestServer(t, true)

	ts.ms.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) })
	ts.ms.EXPECT().UserByID(gomock.Any(), "u1").Return(&models.User{ID: "u1"}, nil)
	ts.ms.EXPECT().UserByUsername(gomock.Any(), "deleted").
		Return(&models.User{ID: "s1", Username: "deleted", Email: "deleted@system.com"}, nil)
	ts.ms.EXPECT().ReassignPosts(gomock.Any(), "u1", "s1").Return(int64(2), nil)
	ts.ms.EXPECT().DeleteCommentsByAuthor(gomock.Any(), "u1").Return(int64(1), nil)
	ts.ms.EXPECT().DeleteUser(gomock.Any(), "u1").Return(nil)

	adminTok, _, err := ts.tokens.Issue(&models.User{ID: "a1", Role: models.RoleAdmin})
	require.NoError(t, err)

	resp := ts.do(t, http.MethodDelete, "/api/admin/users/u1", "", map[string]string{"Authorization": "Bearer " + adminTok})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[map[string]any](t, resp)
	require.Equal(t, "s1", out["sentinelId"])
	require.EqualValues(t, 2, out["postsReassigned"])
	require.EqualValues(t, 1, out["commentsDeleted"])
}

func TestRouter_AdminTransactionFailure(t *testing.T) {
	ts := newTestServer(t, true)

	ts.ms.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).Return(errors.New("no replica set"))

	adminTok, _, err := ts.tokens.Issue(&models.User{ID: "a1", Role: models.RoleAdmin})
	require.NoError(t, err)

	resp := ts.do(t, http.MethodDelete, "/api/admin/users/u1", "", map[string]string{"Authorization": "Bearer " + adminTok})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "transaction_failed", decode[envelope](t, resp).Error.Code)
}

func TestRouter_AdminNotMountedWithoutTokens(t *testing.T) {
	ts := newTestServer(t, false)

	resp := ts.do(t, http.MethodDelete, "/api/admin/users/u1", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_LoginIssuesToken(t *testing.T) {
	ts := newTestServer(t, true)

	u := &models.User{ID: "u1", Email: "a@example.com", PasswordHash: "h:secret", IsActive: true, Role: models.RoleAdmin}
	ts.ms.EXPECT().UserByEmail(gomock.Any(), "a@example.com").Return(u, nil).Times(2)
	ts.ms.EXPECT().TouchLastLogin(gomock.Any(), "u1", gomock.Any()).Return(nil)

	resp := ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"secret"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[map[string]any](t, resp)
	raw, _ := out["accessToken"].(string)

	claims, err := ts.tokens.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, claims.Role)

	resp = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"wrong"}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
