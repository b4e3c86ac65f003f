package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	apierrors "github.com/pribylovaa/go-content-platform/internal/transport/http/errors"
	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// errRequestTimeout — причина отмены контекста по общему сроку обработки запроса.
var errRequestTimeout = errors.New("request timeout")

// Timeout ограничивает обработку запроса сроком d (timeouts.service).
// Уже заданный у запроса deadline не переопределяется; d <= 0 — no-op.
//
// Если срок истёк, а обработчик так ничего и не записал (например, проглотил
// ошибку контекста), клиент получает 504/deadline_exceeded.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeoutCause(r.Context(), d, errRequestTimeout)
			defer cancel()

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if sw.status != 0 || !errors.Is(context.Cause(ctx), errRequestTimeout) {
				return
			}

			log.From(ctx).Warn("request_timeout", "path", r.URL.Path, "timeout", d)
			apierrors.WriteError(w, r, context.DeadlineExceeded)
		})
	}
}
