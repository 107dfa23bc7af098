// telemetry/telemetry.go

// Package telemetry wires OpenTelemetry tracing and metrics to an OTLP collector.
package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	serviceName    = "cartservice"
	serviceVersion = "v1.0.0"

	metricInterval = 10 * time.Second
)

// Shutdown flushes and stops the providers.
type Shutdown func(context.Context) error

// Init installs global tracer and meter providers exporting over OTLP/gRPC to
// endpoint (e.g. "otel-collector:4317") and the W3C trace context propagator.
func Init(ctx context.Context, endpoint string) (Shutdown, error) {
	res, err := newResource(ctx)
	if err != nil {
		return nil, err
	}

	spans, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create OTLP trace exporter")
	}
	metrics, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return nil, errors.Wrap(err, "create OTLP metric exporter")
	}

	tp := newTracerProvider(res, spans)
	mp := newMeterProvider(res, sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(metricInterval)))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return shutdownAll(tp.Shutdown, mp.Shutdown), nil
}

func newResource(ctx context.Context) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create resource")
	}
	return res, nil
}

// newTracerProvider samples every span; switch to TraceIDRatioBased if volume grows.
func newTracerProvider(res *resource.Resource, exp sdktrace.SpanExporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
}

func newMeterProvider(res *resource.Resource, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
}

// shutdownAll runs every fn, even after a failure, and returns the first error.
func shutdownAll(fns ...Shutdown) Shutdown {
	return func(ctx context.Context) error {
		var first error
		for _, fn := range fns {
			if err := fn(ctx); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}
