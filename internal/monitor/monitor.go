// monitor измеряет операции хранилища: длительность, медленные вызовы, трейсы.
//
// Монитор никогда не меняет результат и ошибку обёрнутой операции.
// Медленной считается операция, длившаяся строго дольше порога (по умолчанию 100ms);
// о ней пишется предупреждение slow_operation через логгер из контекста.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-content-platform/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultThreshold — порог медленной операции.
const DefaultThreshold = 100 * time.Millisecond

const tracerName = "github.com/pribylovaa/go-content-platform/internal/monitor"

// Operation описывает наблюдаемый вызов.
// Filter — фильтр или pipeline запроса; сериализуется в extended JSON только при записи в лог.
type Operation struct {
	Collection string
	Kind       string
	Filter     any
}

// Monitor — обёртка над вызовами хранилища.
// Нулевой указатель допустим: операции выполняются без измерений.
type Monitor struct {
	threshold time.Duration
	tracer    trace.Tracer
	duration  *prometheus.HistogramVec
	slow      *prometheus.CounterVec
}

// Option — настройка Monitor.
type Option func(*options)

type options struct {
	threshold time.Duration
	reg       prometheus.Registerer
	tracer    trace.Tracer
}

// WithThreshold задаёт порог медленной операции (значения <= 0 игнорируются).
func WithThreshold(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.threshold = d
		}
	}
}

// WithRegisterer задаёт реестр метрик (по умолчанию prometheus.DefaultRegisterer).
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.reg = r }
}

// WithTracer задаёт трейсер (по умолчанию — из глобального TracerProvider).
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// New создаёт монитор и регистрирует метрики.
// Повторная регистрация в том же реестре переиспользует уже зарегистрированные коллекторы.
func New(opts ...Option) *Monitor {
	o := options{
		threshold: DefaultThreshold,
		reg:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "content",
		Subsystem: "storage",
		Name:      "operation_duration_seconds",
		Help:      "Duration of storage operations.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"collection", "operation", "status"})

	slow := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "content",
		Subsystem: "storage",
		Name:      "slow_operations_total",
		Help:      "Storage operations slower than the configured threshold.",
	}, []string{"collection", "operation"})

	return &Monitor{
		threshold: o.threshold,
		tracer:    o.tracer,
		duration:  register(o.reg, duration),
		slow:      register(o.reg, slow),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}

	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}

	return c
}

// Threshold возвращает текущий порог.
func (m *Monitor) Threshold() time.Duration {
	if m == nil {
		return DefaultThreshold
	}

	return m.threshold
}

// Observe выполняет fn, измеряя длительность.
// fn получает контекст со span'ом операции; ошибка fn возвращается без изменений.
func (m *Monitor) Observe(ctx context.Context, op Operation, fn func(ctx context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}

	ctx, span := m.tracer.Start(ctx, op.Collection+"."+op.Kind,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("db.collection.name", op.Collection),
			attribute.String("db.operation.name", op.Kind),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	m.duration.WithLabelValues(op.Collection, op.Kind, status).Observe(elapsed.Seconds())

	if elapsed > m.threshold {
		m.slow.WithLabelValues(op.Collection, op.Kind).Inc()
		log.From(ctx).Warn("slow_operation",
			slog.String("collection", op.Collection),
			slog.String("operation", op.Kind),
			slog.Any("filter", extJSON{op.Filter}),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.Duration("threshold", m.threshold),
		)
	}

	return err
}

// Do — типизированный вариант Observe для операций с результатом.
func Do[T any](ctx context.Context, m *Monitor, op Operation, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := m.Observe(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})

	return out, err
}

// extJSON откладывает сериализацию фильтра до фактической записи в лог.
type extJSON struct{ v any }

// LogValue реализует slog.LogValuer.
func (e extJSON) LogValue() slog.Value {
	if e.v == nil {
		return slog.StringValue("{}")
	}

	if b, err := bson.MarshalExtJSON(e.v, false, false); err == nil {
		return slog.StringValue(string(b))
	}

	// Pipeline и прочие не-документы сериализуются как поле документа.
	if b, err := bson.MarshalExtJSON(bson.D{{Key: "pipeline", Value: e.v}}, false, false); err == nil {
		return slog.StringValue(string(b))
	}

	return slog.StringValue(fmt.Sprintf("%v", e.v))
}
