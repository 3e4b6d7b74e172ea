// Package telemetry owns the OpenTelemetry tracer setup and the trace
// context propagation helpers used by the job queue.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config: OTLP export settings. Disabled telemetry leaves the global noop
// tracer in place.
type Config struct {
	Enabled      bool
	Endpoint     string // host:port of the OTLP gRPC collector
	ServiceName  string
	SamplerRatio float64
	Insecure     bool
}

// Setup installs a tracer provider exporting to the configured OTLP
// collector and returns a shutdown function. With Enabled false it installs
// only the propagator and returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter failed: %w", err)
	}

	// resource.Default() carries a newer schema URL than this semconv and
	// merging the two conflicts, so the resource is built from scratch.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	)

	// ParentBased keeps child spans sampled whenever the parent was, so a
	// distributed trace never breaks mid-chain.
	var rootSampler sdktrace.Sampler
	switch {
	case cfg.SamplerRatio >= 1:
		rootSampler = sdktrace.AlwaysSample()
	case cfg.SamplerRatio <= 0:
		rootSampler = sdktrace.NeverSample()
	default:
		rootSampler = sdktrace.TraceIDRatioBased(cfg.SamplerRatio)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(rootSampler)),
	)
	otel.SetTracerProvider(provider)

	logger.Info("telemetry_enabled", "endpoint", cfg.Endpoint, "sampler_ratio", cfg.SamplerRatio)
	return provider.Shutdown, nil
}
