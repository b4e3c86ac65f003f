package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/go-content-platform/internal/service"
	apierrors "github.com/pribylovaa/go-content-platform/internal/transport/http/errors"
)

type createCategoryRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

// ListCategories — GET /categories.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListCategories(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// CreateCategory — POST /categories.
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in createCategoryRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	c, err := h.svc.CreateCategory(r.Context(), service.CreateCategoryInput{
		Name:        in.Name,
		Slug:        in.Slug,
		Description: in.Description,
		Color:       in.Color,
		Icon:        in.Icon,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// GetCategory — GET /categories/{id}.
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// CategoryPosts — GET /categories/{id}/posts.
func (h *Handlers) CategoryPosts(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.CategoryPosts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}
