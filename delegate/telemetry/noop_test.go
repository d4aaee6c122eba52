package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veupathdb/strategy-delegate/delegate/telemetry"
)

func TestNoopLogger_NeverPanics(_ *testing.T) {
	ctx := context.Background()
	logger := telemetry.NoopLogger{}

	logger.Debug(ctx, "debug message", telemetry.KV{K: "key", V: "value"})
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")
}

func TestNoopMetrics_NeverPanics(_ *testing.T) {
	metrics := telemetry.NoopMetrics{}

	metrics.IncCounter("test.counter", telemetry.KV{K: "env", V: "test"})
	metrics.RecordTimer("test.timer", 100.0)
	metrics.RecordGauge("test.gauge", 42.0)
}

func TestNoopTracer_ReturnsUsableSpan(t *testing.T) {
	ctx := context.Background()
	tracer := telemetry.NoopTracer{}

	newCtx, span := tracer.Start(ctx, "test.operation")
	require.Equal(t, ctx, newCtx, "the noop tracer must not fabricate a new context")
	require.NotNil(t, span)

	assert.NotPanics(t, func() {
		span.AddEvent("test.event", telemetry.KV{K: "key", V: "value"})
		span.SetAttribute("k", "v")
		span.RecordError(errors.New("test error"))
		span.End()
	})
}

func TestNoopImplementsInterfaces(t *testing.T) {
	var _ telemetry.Logger = telemetry.NoopLogger{}
	var _ telemetry.Metrics = telemetry.NoopMetrics{}
	var _ telemetry.Tracer = telemetry.NoopTracer{}
}
