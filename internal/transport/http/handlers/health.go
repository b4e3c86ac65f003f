package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pribylovaa/go-content-platform/pkg/log"
)

// pingTimeout — дедлайн проверки MongoDB в /healthz.
const pingTimeout = 2 * time.Second

// Livez — процесс жив.
func (h *Handlers) Livez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Healthz — готовность: сервис запущен и MongoDB отвечает на ping.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.svc.Ping(ctx); err != nil {
		log.From(r.Context()).Warn("healthz_ping_failed", "err", err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
