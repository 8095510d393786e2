// Package telemetry captures the narrow logging, metrics, and tracing
// interfaces used throughout the kernel. Implementations typically delegate
// to Clue/OTEL, but the interfaces are intentionally small so tests and
// embedders can supply lightweight stubs.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the kernel.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter, timer and gauge helpers for instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
	RecordGauge(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so kernel code remains agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// Event is a kernel telemetry event, recorded at each interlock stage. The
// core emits these; exporters are out of scope (spec.md §1, §6).
type Event struct {
	Type          string
	WorkflowID    string
	TaskID        string
	StepID        string
	CorrelationID string
	Timestamp     time.Time
	Fields        map[string]any
}

// Collector is the external telemetry sink consumed by the kernel
// (spec.md §6). Implementations must not block the caller for long; they
// may buffer internally.
type Collector interface {
	RecordEvent(ctx context.Context, event Event)
	RecordMetric(ctx context.Context, name string, value float64, tags ...string)
	RecordSpan(ctx context.Context, name string, start, end time.Time, attrs map[string]any)
}

// Known event types recognized by the core (spec.md §6).
const (
	EventStepStart      = "step_start"
	EventStepEnd        = "step_end"
	EventToolCall       = "tool_call"
	EventCRVResult      = "crv_result"
	EventPolicyCheck    = "policy_check"
	EventSnapshotCommit = "snapshot_commit"
	EventRollback       = "rollback"
	EventCustom         = "custom"
)
