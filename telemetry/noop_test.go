package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/goa-design/kernel/telemetry"
)

func TestNoopImplementationsDoNotPanic(t *testing.T) {
	ctx := context.Background()

	var logger telemetry.Logger = telemetry.NewNoopLogger()
	logger.Debug(ctx, "msg")
	logger.Info(ctx, "msg", "k", "v")
	logger.Warn(ctx, "msg")
	logger.Error(ctx, "msg")

	var metrics telemetry.Metrics = telemetry.NewNoopMetrics()
	metrics.IncCounter("c", 1)
	metrics.RecordTimer("t", time.Second)
	metrics.RecordGauge("g", 1)

	var tracer telemetry.Tracer = telemetry.NewNoopTracer()
	spanCtx, span := tracer.Start(ctx, "op")
	assert.Equal(t, ctx, spanCtx)
	span.AddEvent("evt")
	span.SetStatus(0, "ok")
	span.RecordError(nil)
	span.End()
	assert.NotNil(t, tracer.Span(ctx))

	var collector telemetry.Collector = telemetry.NewNoopCollector()
	collector.RecordEvent(ctx, telemetry.Event{Type: telemetry.EventToolCall})
	collector.RecordMetric(ctx, "m", 1)
	collector.RecordSpan(ctx, "s", time.Now().Add(-time.Second), time.Now(), nil)
}
