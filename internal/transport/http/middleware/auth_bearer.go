package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/token"
	apierrors "github.com/pribylovaa/go-content-platform/internal/transport/http/errors"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// TokenParser проверяет access-токен.
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

type claimsKey struct{}

// RequireRole пропускает запрос только с валидным Bearer-токеном нужной роли.
//   - нет заголовка, не Bearer или токен не проходит проверку — 401;
//   - роль в токене не совпадает — 403.
//
// Проверенные claims доступны обработчику через ClaimsFrom.
func RequireRole(p TokenParser, role models.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lg := log.From(r.Context())

			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				lg.Warn("auth_missing_bearer")
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			claims, err := p.Parse(raw)
			if err != nil {
				lg.Warn("auth_invalid_token", "err", err)
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}

			if claims.Role != role {
				lg.Warn("auth_forbidden", "user_id", claims.UserID, "role", string(claims.Role))
				apierrors.WriteError(w, r, apierrors.ErrForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = log.With(ctx, "actor_id", claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom возвращает claims, проверенные RequireRole.
func ClaimsFrom(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*token.Claims)

	return c, ok && c != nil
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	raw := strings.TrimSpace(header[len(prefix):])

	return raw, raw != ""
}
