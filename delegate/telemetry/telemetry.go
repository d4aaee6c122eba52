// Package telemetry defines the Logger/Metrics/Tracer seams every component
// in this module uses instead of calling a concrete logging/metrics library
// directly, grounded on the teacher's runtime/agent/telemetry package.
package telemetry

import "context"

// KV is a single structured logging field.
type KV struct {
	K string
	V any
}

// Logger is the structured logging seam.
type Logger interface {
	Debug(ctx context.Context, msg string, kv ...KV)
	Info(ctx context.Context, msg string, kv ...KV)
	Warn(ctx context.Context, msg string, kv ...KV)
	Error(ctx context.Context, msg string, kv ...KV)
}

// Metrics is the metrics-recording seam.
type Metrics interface {
	IncCounter(name string, kv ...KV)
	RecordTimer(name string, millis float64, kv ...KV)
	RecordGauge(name string, value float64, kv ...KV)
}

// Span is an in-flight trace span.
type Span interface {
	End()
	RecordError(err error)
	SetAttribute(key string, value any)
	AddEvent(name string, kv ...KV)
}

// Tracer starts spans.
type Tracer interface {
	Start(ctx context.Context, spanName string) (context.Context, Span)
}
