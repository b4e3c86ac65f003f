// errors стандартизирует ответы об ошибках HTTP-слоя content-service.
// На вход принимается ошибка сервиса (sentinel из internal/service),
// на выход — HTTP-статус и безопасное сообщение без утечки деталей.
// Для ErrInvalidArgument с *service.ValidationError в ответ попадают ошибки по полям.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/go-content-platform/internal/service"
)

// StatusClientClosedRequest — нестандартный код «клиент закрыл соединение».
const StatusClientClosedRequest = 499

// Ошибки, которые порождает сам HTTP-слой.
var (
	// ErrBadRequest — тело или query не разбираются (битый JSON, нечисловой limit).
	ErrBadRequest = stderrors.New("bad request")
	// ErrUnauthenticated — нет/невалидный Bearer-токен.
	ErrUnauthenticated = stderrors.New("unauthenticated")
	// ErrForbidden — токен валиден, но роль недостаточна.
	ErrForbidden = stderrors.New("forbidden")
)

// APIError — единый формат ошибки для клиента.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// ErrorResponse — корневой объект ответа.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа.
//   - err == nil — программная ошибка вызова: 500/internal;
//   - отмена клиента и дедлайн проверяются раньше остальных, так как могут
//     приходить обёрнутыми в ErrTransactionFailed;
//   - неизвестные ошибки — 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, response("internal", "internal error")
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, response("canceled", "canceled")
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, response("deadline_exceeded", "deadline exceeded")
	case stderrors.Is(err, service.ErrInvalidArgument):
		resp := response("invalid_argument", "invalid argument")

		var ve *service.ValidationError
		if stderrors.As(err, &ve) && len(ve.Fields) > 0 {
			resp.Error.Details = ve.Fields
		}

		return http.StatusBadRequest, resp
	case stderrors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, response("invalid_argument", "malformed request")
	case stderrors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, response("not_found", "not found")
	case stderrors.Is(err, service.ErrConflict):
		return http.StatusConflict, response("already_exists", "already exists")
	case stderrors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, response("unauthenticated", "invalid credentials")
	case stderrors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, response("unauthenticated", "unauthenticated")
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden, response("permission_denied", "permission denied")
	case stderrors.Is(err, service.ErrTransactionFailed):
		return http.StatusInternalServerError, response("transaction_failed", "transaction failed")
	default:
		return http.StatusInternalServerError, response("internal", "internal error")
	}
}

// WriteError пишет статус и тело ошибки, добавляя request_id из X-Request-Id.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func response(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}
