package grpc

import (
	"context"
	"time"

	"github.com/pribylovaa/go-content-platform/pkg/log"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// DefaultHealthInterval — период проверки MongoDB.
	DefaultHealthInterval = 5 * time.Second
	healthPingTimeout     = 2 * time.Second
)

// Pinger — проверка доступности хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSetter — часть health.Server, которой пользуется репортёр.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// HealthReporter периодически пингует хранилище и выставляет статус health-сервиса:
// SERVING, пока ping успешен, иначе NOT_SERVING.
type HealthReporter struct {
	hs       StatusSetter
	p        Pinger
	interval time.Duration
}

// NewHealthReporter создаёт репортёр; interval <= 0 — DefaultHealthInterval.
func NewHealthReporter(hs StatusSetter, p Pinger, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}

	return &HealthReporter{hs: hs, p: p, interval: interval}
}

// Run блокируется до отмены ctx. Первая проверка выполняется сразу,
// при выходе статус переводится в NOT_SERVING.
func (r *HealthReporter) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		last = r.check(ctx, last)

		select {
		case <-ctx.Done():
			r.hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			return
		case <-t.C:
		}
	}
}

func (r *HealthReporter) check(ctx context.Context, last healthpb.HealthCheckResponse_ServingStatus) healthpb.HealthCheckResponse_ServingStatus {
	pctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	err := r.p.Ping(pctx)
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}

	if st != last {
		lg := log.From(ctx)
		if err != nil {
			lg.Warn("health_not_serving", "err", err)
		} else {
			lg.Info("health_serving")
		}
	}

	r.hs.SetServingStatus("", st)

	return st
}
