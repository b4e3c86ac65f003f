package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/go-content-platform/internal/service"
	apierrors "github.com/pribylovaa/go-content-platform/internal/transport/http/errors"
)

type createCommentRequest struct {
	Content  string `json:"content"`
	AuthorID string `json:"author"`
	PostID   string `json:"post"`
	ParentID string `json:"parentComment"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

// LatestComments — GET /comments: 50 последних видимых комментариев.
func (h *Handlers) LatestComments(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.LatestComments(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// GetComment — GET /comments/{id}.
func (h *Handlers) GetComment(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetComment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// CreateComment — POST /comments {content, author, post, parentComment}.
func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) {
	var in createCommentRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.createComment(w, r, in)
}

// CreatePostComment — POST /posts/{id}/comments {content, author, parentComment}.
// Пост берётся из пути; поле post в теле игнорируется.
func (h *Handlers) CreatePostComment(w http.ResponseWriter, r *http.Request) {
	var in createCommentRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	in.PostID = chi.URLParam(r, "id")
	h.createComment(w, r, in)
}

func (h *Handlers) createComment(w http.ResponseWriter, r *http.Request, in createCommentRequest) {
	c, err := h.svc.CreateComment(r.Context(), service.CreateCommentInput{
		Content:  in.Content,
		AuthorID: in.AuthorID,
		PostID:   in.PostID,
		ParentID: in.ParentID,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// PostComments — GET /posts/{id}/comments: дерево видимых комментариев поста.
func (h *Handlers) PostComments(w http.ResponseWriter, r *http.Request) {
	roots, err := h.svc.PostComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, roots)
}

// UpdateComment — PUT /comments/{id} {content}; комментарий помечается отредактированным.
func (h *Handlers) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var in updateCommentRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.UpdateComment(r.Context(), chi.URLParam(r, "id"), in.Content)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// DeleteComment — DELETE /comments/{id} (мягкое удаление).
func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteComment(r.Context(), chi.URLParam(r, "id")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "comment deleted"})
}

// LikeComment — PATCH /comments/{id}/like {"userId"}.
func (h *Handlers) LikeComment(w http.ResponseWriter, r *http.Request) {
	var in likeRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.ToggleCommentLike(r.Context(), chi.URLParam(r, "id"), in.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, likeResponse{
		Message:    likeMessage(res.Liked),
		Liked:      res.Liked,
		LikesCount: res.LikesCount,
		Comment:    res.Comment,
	})
}
