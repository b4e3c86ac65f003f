// http собирает REST API content-service: chi-роутер, мидлвары, health и metrics.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/transport/http/handlers"
	"github.com/pribylovaa/go-content-platform/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tokens — выпуск и проверка access-токенов (см. internal/token).
type Tokens interface {
	handlers.TokenIssuer
	middleware.TokenParser
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; пустой — роуты API регистрируются на корне.
	// Tokens == nil: вход без выдачи токена, /admin маршруты не регистрируются.
	Tokens Tokens
	// Ready сообщает готовность для /healthz; nil — только ping MongoDB.
	Ready func() bool
	// Metrics — обработчик /metrics; nil — promhttp.Handler().
	Metrics http.Handler
}

// NewRouter собирает http.Handler: /livez, /healthz и /metrics на корне, API — под BasePath.
func NewRouter(svc handlers.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Timeout(opts.Timeout),
	)

	var issuer handlers.TokenIssuer
	if opts.Tokens != nil {
		issuer = opts.Tokens
	}

	h := handlers.New(svc, issuer, opts.Ready)

	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}

	root.Get("/livez", h.Livez)
	root.Get("/healthz", h.Healthz)
	root.Handle("/metrics", metrics)

	api := chi.NewRouter()
	registerRoutes(api, h)

	if opts.Tokens != nil {
		api.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(opts.Tokens, models.RoleAdmin))
			r.Delete("/users/{id}", h.DeleteUser)
			r.Post("/categories/{id}/recount", h.RecountCategory)
		})
	}

	if opts.BasePath != "" && opts.BasePath != "/" {
		root.Mount(opts.BasePath, api)
		return root
	}

	root.Mount("/", api)

	return root
}

// registerRoutes — единая точка регистрации публичных REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// auth
	r.Post("/auth/login", h.Login)

	// users
	r.Get("/users", h.ListUsers)
	r.Post("/users", h.CreateUser)
	r.Get("/users/{id}", h.GetUser)
	r.Put("/users/{id}", h.UpdateUser)
	r.Patch("/users/{id}/toggle-active", h.ToggleActive)
	r.Get("/users/{id}/posts", h.UserPosts)
	r.Get("/users/{id}/stats", h.UserStats)

	// posts; статические пути до /{id}
	r.Get("/posts", h.ListPosts)
	r.Post("/posts", h.CreatePost)
	r.Get("/posts/search", h.SearchPosts)
	r.Get("/posts/trending", h.TrendingPosts)
	r.Get("/posts/{id}", h.GetPost)
	r.Put("/posts/{id}", h.UpdatePost)
	r.Delete("/posts/{id}", h.DeletePost)
	r.Patch("/posts/{id}/publish", h.PublishPost)
	r.Patch("/posts/{id}/like", h.LikePost)
	r.Get("/posts/{id}/comments", h.PostComments)
	r.Post("/posts/{id}/comments", h.CreatePostComment)

	// comments
	r.Get("/comments", h.LatestComments)
	r.Post("/comments", h.CreateComment)
	r.Get("/comments/{id}", h.GetComment)
	r.Put("/comments/{id}", h.UpdateComment)
	r.Delete("/comments/{id}", h.DeleteComment)
	r.Patch("/comments/{id}/like", h.LikeComment)

	// categories
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Get("/categories/{id}", h.GetCategory)
	r.Get("/categories/{id}/posts", h.CategoryPosts)

	// stats
	r.Get("/stats/dashboard", h.Dashboard)
}
