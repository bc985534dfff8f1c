package cacheaside

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Cache operations reported to a Recorder.
const (
	OpGet = "get"
	OpSet = "set"
)

// Recorder observes cache outcomes. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Hit(ctx context.Context, name string)
	Miss(ctx context.Context, name string)
	Failure(ctx context.Context, name, op string, err error)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) Hit(context.Context, string)                    {}
func (NopRecorder) Miss(context.Context, string)                   {}
func (NopRecorder) Failure(context.Context, string, string, error) {}

// MetricRecorder counts outcomes with OpenTelemetry counters and logs cache
// failures through the context logger.
type MetricRecorder struct {
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	failures metric.Int64Counter
}

var _ Recorder = (*MetricRecorder)(nil)

// NewMetricRecorder registers the cache counters on meter.
func NewMetricRecorder(meter metric.Meter) (*MetricRecorder, error) {
	hits, err := meter.Int64Counter("catalog.cache.hits",
		metric.WithDescription("Cache-aside reads served from the cache"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "hits counter")
	}
	misses, err := meter.Int64Counter("catalog.cache.misses",
		metric.WithDescription("Cache-aside reads that fell through to the repository"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "misses counter")
	}
	failures, err := meter.Int64Counter("catalog.cache.errors",
		metric.WithDescription("Cache operations that failed and were ignored"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "errors counter")
	}
	return &MetricRecorder{hits: hits, misses: misses, failures: failures}, nil
}

func (r *MetricRecorder) Hit(ctx context.Context, name string) {
	r.hits.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.op", name)))
}

func (r *MetricRecorder) Miss(ctx context.Context, name string) {
	r.misses.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.op", name)))
}

func (r *MetricRecorder) Failure(ctx context.Context, name, op string, err error) {
	r.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.op", name),
		attribute.String("cache.step", op),
	))
	zctx.From(ctx).Warn("Cache unavailable, continuing without it",
		zap.String("cache_op", name),
		zap.String("step", op),
		zap.Error(err),
	)
}
