// gRPC-листенер content-service: стандартный grpc.health.v1 и служебные интерцепторы.
// Прикладного API по gRPC нет; клиенты оркестратора проверяют готовность через Health/Check.
package grpc

import (
	"log/slog"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pribylovaa/go-content-platform/pkg/interceptors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Options — параметры сервера.
type Options struct {
	// Timeout — общий дедлайн unary-вызова; 0 — без дедлайна.
	Timeout time.Duration
	// Reflection включает grpc reflection (local/dev).
	Reflection bool
}

// NewServer собирает gRPC-сервер с цепочкой recover -> logging -> timeout -> prometheus
// и регистрирует health-сервис. Статус health выставляет HealthReporter.
func NewServer(log *slog.Logger, opts Options) (*grpc.Server, *health.Server) {
	grpc_prometheus.EnableHandlingTimeHistogram()

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.Recover(log),
			interceptors.UnaryLoggingInterceptor(log),
			interceptors.WithTimeout(opts.Timeout),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	if opts.Reflection {
		reflection.Register(srv)
	}

	grpc_prometheus.Register(srv)

	return srv, hs
}
