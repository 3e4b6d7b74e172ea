package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectContext injects the current trace context into the carrier, e.g. the
// field map of a queued job.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// ExtractContext restores a parent trace context from the carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// MapCarrier adapts a map[string]string to a TextMapCarrier so stream message
// fields can carry trace context directly.
type MapCarrier map[string]string

// Get returns the value for key.
func (c MapCarrier) Get(key string) string { return c[key] }

// Set stores the value under key.
func (c MapCarrier) Set(key, value string) { c[key] = value }

// Keys lists all keys in the carrier.
func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
