package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pribylovaa/go-content-platform/internal/service"
	"github.com/stretchr/testify/require"
)

func TestToHTTP_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"nil", nil, http.StatusInternalServerError, "internal"},
		{"plain", stderrors.New("boom"), http.StatusInternalServerError, "internal"},
		{"not found", fmt.Errorf("op: %w", service.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid", fmt.Errorf("op: %w", service.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"bad request", ErrBadRequest, http.StatusBadRequest, "invalid_argument"},
		{"conflict", service.ErrConflict, http.StatusConflict, "already_exists"},
		{"credentials", service.ErrUnauthorized, http.StatusUnauthorized, "unauthenticated"},
		{"no token", ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "permission_denied"},
		{"tx", fmt.Errorf("op: %w: %v", service.ErrTransactionFailed, "write conflict"), http.StatusInternalServerError, "transaction_failed"},
		{"tx canceled", fmt.Errorf("op: %w: %w", service.ErrTransactionFailed, context.Canceled), StatusClientClosedRequest, "canceled"},
		{"deadline", fmt.Errorf("op: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "deadline_exceeded"},
		{"internal", service.ErrInternal, http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := ToHTTP(tt.err)
			require.Equal(t, tt.status, status)
			require.Equal(t, tt.code, resp.Error.Code)
			require.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestToHTTP_ValidationDetails(t *testing.T) {
	err := fmt.Errorf("op: %w", &service.ValidationError{Fields: map[string]string{"title": "required"}})

	status, resp := ToHTTP(err)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, map[string]string{"title": "required"}, resp.Error.Details)
}

func TestWriteError_RequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "rid-1")

	WriteError(rr, req, service.ErrNotFound)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, "rid-1", got.Error.RequestID)
	require.Equal(t, "not_found", got.Error.Code)
}
