package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

// ClueLogger backs Logger with goa.design/clue/log, matching the teacher's
// runtime/agent/telemetry.ClueLogger.
type ClueLogger struct{}

// NewClueLogger constructs a ClueLogger.
func NewClueLogger() ClueLogger { return ClueLogger{} }

func toFielder(kv []KV) log.Fielder {
	fields := make(log.Fields, 0, len(kv))
	for _, f := range kv {
		fields = append(fields, log.KV{K: f.K, V: f.V})
	}
	return fields
}

func (ClueLogger) Debug(ctx context.Context, msg string, kv ...KV) {
	log.Debug(ctx, msg, toFielder(kv))
}

func (ClueLogger) Info(ctx context.Context, msg string, kv ...KV) {
	log.Info(ctx, msg, toFielder(kv))
}

func (ClueLogger) Warn(ctx context.Context, msg string, kv ...KV) {
	log.Error(ctx, msg, toFielder(kv))
}

func (ClueLogger) Error(ctx context.Context, msg string, kv ...KV) {
	log.Error(ctx, msg, toFielder(kv))
}

// ClueMetrics backs Metrics with an OpenTelemetry meter, matching the
// teacher's runtime/agent/telemetry.ClueMetrics.
type ClueMetrics struct {
	meter metric.Meter
}

// NewClueMetrics constructs a ClueMetrics over meter.
func NewClueMetrics(meter metric.Meter) ClueMetrics {
	return ClueMetrics{meter: meter}
}

func attrsFrom(kv []KV) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(kv))
	for _, f := range kv {
		attrs = append(attrs, attribute.String(f.K, toString(f.V)))
	}
	return attrs
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func (m ClueMetrics) IncCounter(name string, kv ...KV) {
	counter, err := m.meter.Int64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), 1, metric.WithAttributes(attrsFrom(kv)...))
}

func (m ClueMetrics) RecordTimer(name string, millis float64, kv ...KV) {
	hist, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	hist.Record(context.Background(), millis, metric.WithAttributes(attrsFrom(kv)...))
}

func (m ClueMetrics) RecordGauge(name string, value float64, kv ...KV) {
	gauge, err := m.meter.Float64Gauge(name)
	if err != nil {
		return
	}
	gauge.Record(context.Background(), value, metric.WithAttributes(attrsFrom(kv)...))
}

// ClueTracer backs Tracer with an OpenTelemetry tracer.
type ClueTracer struct {
	tracer trace.Tracer
}

// NewClueTracer constructs a ClueTracer over tracer.
func NewClueTracer(tracer trace.Tracer) ClueTracer {
	return ClueTracer{tracer: tracer}
}

func (t ClueTracer) Start(ctx context.Context, spanName string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, spanName)
	return ctx, clueSpan{span: span}
}

type clueSpan struct {
	span trace.Span
}

func (s clueSpan) End() { s.span.End() }

func (s clueSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s clueSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(attribute.String(key, toString(value)))
}

func (s clueSpan) AddEvent(name string, kv ...KV) {
	s.span.AddEvent(name, trace.WithAttributes(attrsFrom(kv)...))
}
