// telemetry настраивает глобальный OpenTelemetry TracerProvider с экспортом в Jaeger.
package telemetry

import (
	"context"
	"fmt"

	"github.com/pribylovaa/go-content-platform/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Shutdown сбрасывает буфер спанов и останавливает экспортёр.
type Shutdown func(ctx context.Context) error

func noop(context.Context) error { return nil }

// Init регистрирует провайдер трейсов. Пустой JaegerURL оставляет no-op провайдер
// по умолчанию, и спаны монитора никуда не уходят.
func Init(ctx context.Context, cfg config.TelemetryConfig) (Shutdown, error) {
	const op = "telemetry/Init"

	if cfg.JaegerURL == "" {
		return noop, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("%s: resource: %w", op, err)
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("%s: jaeger exporter: %w", op, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
