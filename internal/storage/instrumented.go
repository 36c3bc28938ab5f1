package storage

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/batchexplorer/tokencache/internal/storage"

var (
	metricsOnce       sync.Once
	storageOperations metric.Int64Counter
	storageDuration   metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)

		var err error
		storageOperations, err = meter.Int64Counter(
			"storage.operations",
			metric.WithDescription("Total storage operations"),
		)
		if err != nil {
			otel.Handle(err)
		}

		storageDuration, err = meter.Float64Histogram(
			"storage.operation.duration",
			metric.WithDescription("Storage operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Instrumented wraps a Storage with tracing and metrics.
type Instrumented struct {
	wrapped     Storage
	storageType string
	tracer      trace.Tracer
}

// NewInstrumented creates an instrumented storage wrapper.
func NewInstrumented(wrapped Storage, storageType string) *Instrumented {
	initMetrics()
	return &Instrumented{
		wrapped:     wrapped,
		storageType: storageType,
		tracer:      otel.Tracer(instrumentationName),
	}
}

func (i *Instrumented) GetItem(ctx context.Context, key string) (string, bool, error) {
	ctx, span := i.tracer.Start(ctx, "storage.get")
	defer span.End()
	start := time.Now()

	value, found, err := i.wrapped.GetItem(ctx, key)

	status := "miss"
	if err != nil {
		status = "error"
	} else if found {
		status = "hit"
	}
	i.record(ctx, span, "get", status, time.Since(start), err)

	return value, found, err
}

func (i *Instrumented) SetItem(ctx context.Context, key, value string) error {
	ctx, span := i.tracer.Start(ctx, "storage.set")
	defer span.End()
	start := time.Now()

	err := i.wrapped.SetItem(ctx, key, value)

	i.record(ctx, span, "set", statusOf(err), time.Since(start), err)

	return err
}

func (i *Instrumented) RemoveItem(ctx context.Context, key string) error {
	ctx, span := i.tracer.Start(ctx, "storage.remove")
	defer span.End()
	start := time.Now()

	err := i.wrapped.RemoveItem(ctx, key)

	i.record(ctx, span, "remove", statusOf(err), time.Since(start), err)

	return err
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (i *Instrumented) record(ctx context.Context, span trace.Span, operation, status string, duration time.Duration, err error) {
	if storageOperations != nil {
		storageOperations.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("storage.type", i.storageType),
				attribute.String("storage.operation", operation),
				attribute.String("storage.status", status),
			),
		)
	}

	if storageDuration != nil {
		storageDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("storage.type", i.storageType),
				attribute.String("storage.operation", operation),
			),
		)
	}

	span.SetAttributes(
		attribute.String("storage.type", i.storageType),
		attribute.String("storage."+operation+".status", status),
		attribute.Float64("storage."+operation+".duration", duration.Seconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
	}
}
