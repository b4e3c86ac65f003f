// handlers — REST-обработчики content-service поверх сервисного слоя.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/service"
	"github.com/pribylovaa/go-content-platform/internal/tree"
	apierrors "github.com/pribylovaa/go-content-platform/internal/transport/http/errors"
)

// HeaderCascadeStatus — признак частично выполненного каскада.
const HeaderCascadeStatus = "X-Cascade-Status"

// Service — операции сервисного слоя, которые публикует REST API.
type Service interface {
	CreateUser(ctx context.Context, in service.CreateUserInput) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, in service.ListUsersInput) (*models.Page[models.User], error)
	UpdateUser(ctx context.Context, in service.UpdateUserInput) (*models.User, error)
	ToggleActive(ctx context.Context, id string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	UserPosts(ctx context.Context, id string, p models.ListParams) (*models.Page[models.Post], error)
	UserStats(ctx context.Context, id string) (*models.UserStats, error)
	DeleteUser(ctx context.Context, id string) (*service.ReassignResult, error)

	CreatePost(ctx context.Context, in service.CreatePostInput) (*models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	ListPosts(ctx context.Context, in service.ListPostsInput) (*models.Page[models.Post], error)
	SearchPosts(ctx context.Context, q string, p models.ListParams) (*models.Page[models.Post], error)
	TrendingPosts(ctx context.Context) ([]models.TrendingPost, error)
	UpdatePost(ctx context.Context, in service.UpdatePostInput) (*models.Post, error)
	PublishPost(ctx context.Context, id string) (*models.Post, error)
	DeletePost(ctx context.Context, id string) (*service.DeletePostResult, error)
	TogglePostLike(ctx context.Context, id, userID string) (*service.LikeResult, error)

	CreateComment(ctx context.Context, in service.CreateCommentInput) (*models.Comment, error)
	PostComments(ctx context.Context, postID string) ([]*tree.Node, error)
	LatestComments(ctx context.Context) ([]models.Comment, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ToggleCommentLike(ctx context.Context, id, userID string) (*service.CommentLikeResult, error)

	CreateCategory(ctx context.Context, in service.CreateCategoryInput) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	CategoryPosts(ctx context.Context, id string) (*service.CategoryPosts, error)
	RecountCategory(ctx context.Context, id string) (*models.Category, error)

	Dashboard(ctx context.Context) (*models.Dashboard, error)
	Ping(ctx context.Context) error
}

// TokenIssuer выпускает access-токен при входе. nil — вход без токена.
type TokenIssuer interface {
	Issue(u *models.User) (string, time.Time, error)
}

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc    Service
	tokens TokenIssuer
	ready  func() bool
}

// New создаёт обработчики. tokens и ready могут быть nil.
func New(svc Service, tokens TokenIssuer, ready func() bool) *Handlers {
	return &Handlers{svc: svc, tokens: tokens, ready: ready}
}

// writeJSON — JSON-ответ с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: неизвестные поля запрещены.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("%w: %v", apierrors.ErrBadRequest, err)
	}

	return nil
}

// queryInt читает неотрицательное целое из query; пустое значение — 0.
func queryInt(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", apierrors.ErrBadRequest, key)
	}

	return n, nil
}

// listParams читает page и limit.
func listParams(r *http.Request) (models.ListParams, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return models.ListParams{}, err
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		return models.ListParams{}, err
	}

	return models.ListParams{Page: page, Limit: limit}, nil
}

// cascadeStatus — сведения о неудавшихся каскадных шагах в успешном ответе.
type cascadeStatus struct {
	Status   string           `json:"status"`
	Failures []cascadeFailure `json:"failures"`
}

type cascadeFailure struct {
	Step   string `json:"step"`
	Target string `json:"target"`
	Error  string `json:"error"`
}

// splitCascade отделяет частичный сбой каскада от ошибки операции.
// ErrCascadeFailed означает, что основная операция выполнена: обработчик отвечает
// успехом, а сведения о сбое уходят в поле cascade и заголовок X-Cascade-Status.
func splitCascade(w http.ResponseWriter, err error) (*cascadeStatus, error) {
	if err == nil || !errors.Is(err, service.ErrCascadeFailed) {
		return nil, err
	}

	st := &cascadeStatus{Status: "partial", Failures: []cascadeFailure{}}
	if cerr, ok := service.CascadeError(err); ok {
		for _, f := range cerr.Failures {
			st.Failures = append(st.Failures, cascadeFailure{Step: f.Step, Target: f.Target, Error: f.Err.Error()})
		}
	}

	w.Header().Set(HeaderCascadeStatus, st.Status)

	return st, nil
}

// optionalInt различает отсутствующее поле, null и значение.
type optionalInt struct {
	Set   bool
	Value *int
}

func (o *optionalInt) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}

	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v

	return nil
}

type messageResponse struct {
	Message string `json:"message"`
}
