package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/service"
	apierrors "github.com/pribylovaa/go-content-platform/internal/transport/http/errors"
)

type createPostRequest struct {
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Excerpt    string            `json:"excerpt"`
	AuthorID   string            `json:"author"`
	CategoryID string            `json:"category"`
	Tags       []string          `json:"tags"`
	Status     models.PostStatus `json:"status"`
	Featured   bool              `json:"featured"`
}

func (r createPostRequest) input() service.CreatePostInput {
	return service.CreatePostInput{
		Title:      r.Title,
		Content:    r.Content,
		Excerpt:    r.Excerpt,
		AuthorID:   r.AuthorID,
		CategoryID: r.CategoryID,
		Tags:       r.Tags,
		Status:     r.Status,
		Featured:   r.Featured,
	}
}

// updatePostRequest — частичное обновление; "category": "" снимает категорию.
type updatePostRequest struct {
	Title      *string            `json:"title"`
	Content    *string            `json:"content"`
	Excerpt    *string            `json:"excerpt"`
	CategoryID *string            `json:"category"`
	Tags       *[]string          `json:"tags"`
	Status     *models.PostStatus `json:"status"`
	Featured   *bool              `json:"featured"`
}

func (r updatePostRequest) input(id string) service.UpdatePostInput {
	return service.UpdatePostInput{
		ID:         id,
		Title:      r.Title,
		Content:    r.Content,
		Excerpt:    r.Excerpt,
		CategoryID: r.CategoryID,
		Tags:       r.Tags,
		Status:     r.Status,
		Featured:   r.Featured,
	}
}

type likeRequest struct {
	UserID string `json:"userId"`
}

// postResponse — пост и, при частичном сбое каскада, его сведения.
type postResponse struct {
	*models.Post
	Cascade *cascadeStatus `json:"cascade,omitempty"`
}

type publishResponse struct {
	Message string         `json:"message"`
	Post    *models.Post   `json:"post"`
	Cascade *cascadeStatus `json:"cascade,omitempty"`
}

type deletePostResponse struct {
	Message         string         `json:"message"`
	PostID          string         `json:"postId"`
	CommentsDeleted int64          `json:"commentsDeleted"`
	Cascade         *cascadeStatus `json:"cascade,omitempty"`
}

type likeResponse struct {
	Message    string `json:"message"`
	Liked      bool   `json:"liked"`
	LikesCount int64  `json:"likesCount"`
	Post       any    `json:"post,omitempty"`
	Comment    any    `json:"comment,omitempty"`
}

func likeMessage(liked bool) string {
	if liked {
		return "liked"
	}

	return "like removed"
}

// ListPosts — GET /posts?page&limit&status&author&category&sort.
func (h *Handlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	q := r.URL.Query()

	out, err := h.svc.ListPosts(r.Context(), service.ListPostsInput{
		Page:     p.Page,
		Limit:    p.Limit,
		Status:   q.Get("status"),
		AuthorID: q.Get("author"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// SearchPosts — GET /posts/search?q&page&limit.
func (h *Handlers) SearchPosts(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out, err := h.svc.SearchPosts(r.Context(), r.URL.Query().Get("q"), p)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// TrendingPosts — GET /posts/trending.
func (h *Handlers) TrendingPosts(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.TrendingPosts(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// GetPost — GET /posts/{id}; увеличивает счётчик просмотров.
func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// CreatePost — POST /posts.
func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in createPostRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p, err := h.svc.CreatePost(r.Context(), in.input())
	cs, err := splitCascade(w, err)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, postResponse{Post: p, Cascade: cs})
}

// UpdatePost — PUT /posts/{id}.
func (h *Handlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var in updatePostRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	p, err := h.svc.UpdatePost(r.Context(), in.input(chi.URLParam(r, "id")))
	cs, err := splitCascade(w, err)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, postResponse{Post: p, Cascade: cs})
}

// PublishPost — PATCH /posts/{id}/publish.
func (h *Handlers) PublishPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.PublishPost(r.Context(), chi.URLParam(r, "id"))
	cs, err := splitCascade(w, err)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, publishResponse{Message: "post published", Post: p, Cascade: cs})
}

// DeletePost — DELETE /posts/{id}; вместе с постом удаляются его комментарии.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeletePost(r.Context(), chi.URLParam(r, "id"))
	cs, err := splitCascade(w, err)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deletePostResponse{
		Message:         "post deleted",
		PostID:          res.Post.ID,
		CommentsDeleted: res.CommentsDeleted,
		Cascade:         cs,
	})
}

// LikePost — PATCH /posts/{id}/like {"userId"}.
func (h *Handlers) LikePost(w http.ResponseWriter, r *http.Request) {
	var in likeRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.TogglePostLike(r.Context(), chi.URLParam(r, "id"), in.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, likeResponse{
		Message:    likeMessage(res.Liked),
		Liked:      res.Liked,
		LikesCount: res.LikesCount,
		Post:       res.Post,
	})
}
