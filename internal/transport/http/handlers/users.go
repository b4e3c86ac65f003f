package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/service"
	apierrors "github.com/pribylovaa/go-content-platform/internal/transport/http/errors"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

type createUserRequest struct {
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Age       *int        `json:"age"`
	Bio       string      `json:"bio"`
	Avatar    string      `json:"avatar"`
	Role      models.Role `json:"role"`
}

func (r createUserRequest) input() service.CreateUserInput {
	return service.CreateUserInput{
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Age:       r.Age,
		Bio:       r.Bio,
		Avatar:    r.Avatar,
		Role:      r.Role,
	}
}

// updateUserRequest — частичное обновление; "age": null удаляет возраст.
type updateUserRequest struct {
	Username  *string      `json:"username"`
	Email     *string      `json:"email"`
	Password  *string      `json:"password"`
	FirstName *string      `json:"firstName"`
	LastName  *string      `json:"lastName"`
	Age       optionalInt  `json:"age"`
	Bio       *string      `json:"bio"`
	Avatar    *string      `json:"avatar"`
	Role      *models.Role `json:"role"`
}

func (r updateUserRequest) input(id string) service.UpdateUserInput {
	in := service.UpdateUserInput{
		ID:        id,
		Username:  r.Username,
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Bio:       r.Bio,
		Avatar:    r.Avatar,
		Role:      r.Role,
	}

	if r.Age.Set {
		in.Age = r.Age.Value
		in.ClearAge = r.Age.Value == nil
	}

	return in
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"accessToken,omitempty"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
}

type userStatusResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// ListUsers — GET /users?page&limit&sort&role.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	q := r.URL.Query()

	out, err := h.svc.ListUsers(r.Context(), service.ListUsersInput{
		Page:  p.Page,
		Limit: p.Limit,
		Sort:  q.Get("sort"),
		Role:  q.Get("role"),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// GetUser — GET /users/{id}.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// CreateUser — POST /users.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in createUserRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	u, err := h.svc.CreateUser(r.Context(), in.input())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

// UpdateUser — PUT /users/{id}.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var in updateUserRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	u, err := h.svc.UpdateUser(r.Context(), in.input(chi.URLParam(r, "id")))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// ToggleActive — PATCH /users/{id}/toggle-active.
func (h *Handlers) ToggleActive(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.ToggleActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userStatusResponse{Message: "status updated", User: u})
}

// UserPosts — GET /users/{id}/posts?page&limit.
func (h *Handlers) UserPosts(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out, err := h.svc.UserPosts(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// UserStats — GET /users/{id}/stats.
func (h *Handlers) UserStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.UserStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// Login — POST /auth/login. При настроенном секрете в ответе есть access-токен.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	u, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	resp := loginResponse{User: u}
	if h.tokens != nil {
		tok, exp, err := h.tokens.Issue(u)
		if err != nil {
			log.From(r.Context()).Error("token_issue_failed", "user_id", u.ID, "err", err)
			apierrors.WriteError(w, r, err)
			return
		}

		resp.AccessToken, resp.ExpiresAt = tok, &exp
	}

	writeJSON(w, http.StatusOK, resp)
}
