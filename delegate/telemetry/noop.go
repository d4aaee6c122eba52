package telemetry

import "context"

// NoopLogger discards every call. Used in unit tests and any caller that
// does not want logging side effects.
type NoopLogger struct{}

func (NoopLogger) Debug(context.Context, string, ...KV) {}
func (NoopLogger) Info(context.Context, string, ...KV)  {}
func (NoopLogger) Warn(context.Context, string, ...KV)  {}
func (NoopLogger) Error(context.Context, string, ...KV) {}

// NoopMetrics discards every call.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(string, ...KV)          {}
func (NoopMetrics) RecordTimer(string, float64, ...KV) {}
func (NoopMetrics) RecordGauge(string, float64, ...KV) {}

// NoopTracer returns a context unchanged and a span that does nothing.
type NoopTracer struct{}

func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                       {}
func (noopSpan) RecordError(error)          {}
func (noopSpan) SetAttribute(string, any)   {}
func (noopSpan) AddEvent(string, ...KV)     {}
