package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/go-content-platform/internal/service"
	apierrors "github.com/pribylovaa/go-content-platform/internal/transport/http/errors"
	"github.com/pribylovaa/go-content-platform/internal/transport/http/middleware"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

type deleteUserResponse struct {
	Message string `json:"message"`
	*service.ReassignResult
}

// Dashboard — GET /stats/dashboard.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Dashboard(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// DeleteUser — DELETE /admin/users/{id}: посты переходят служебному пользователю,
// комментарии и сам пользователь удаляются в одной транзакции.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.DeleteUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	actor := ""
	if c, ok := middleware.ClaimsFrom(r.Context()); ok {
		actor = c.UserID
	}
	log.From(r.Context()).Info("admin_user_deleted",
		"actor_id", actor,
		"user_id", res.UserID,
		"posts_reassigned", res.PostsReassigned,
	)

	writeJSON(w, http.StatusOK, deleteUserResponse{Message: "user deleted", ReassignResult: res})
}

// RecountCategory — POST /admin/categories/{id}/recount.
func (h *Handlers) RecountCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.RecountCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}
