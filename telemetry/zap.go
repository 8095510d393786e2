package telemetry

import (
	"context"

	"go.uber.org/zap"
)

// ZapLogger wraps a *zap.Logger for processes that are not wired into a
// Clue/OTEL-configured context (e.g. the cmd/kernel CLI demo).
type ZapLogger struct {
	z *zap.Logger
}

// NewZapLogger constructs a Logger backed by zap. A nil *zap.Logger falls
// back to zap.NewNop().
func NewZapLogger(z *zap.Logger) Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &ZapLogger{z: z}
}

func (l *ZapLogger) Debug(_ context.Context, msg string, keyvals ...any) {
	l.z.Debug(msg, kvToZapFields(keyvals)...)
}

func (l *ZapLogger) Info(_ context.Context, msg string, keyvals ...any) {
	l.z.Info(msg, kvToZapFields(keyvals)...)
}

func (l *ZapLogger) Warn(_ context.Context, msg string, keyvals ...any) {
	l.z.Warn(msg, kvToZapFields(keyvals)...)
}

func (l *ZapLogger) Error(_ context.Context, msg string, keyvals ...any) {
	l.z.Error(msg, kvToZapFields(keyvals)...)
}

func kvToZapFields(keyvals []any) []zap.Field {
	var fields []zap.Field
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var val any
		if i+1 < len(keyvals) {
			val = keyvals[i+1]
		}
		fields = append(fields, zap.Any(key, val))
	}
	return fields
}
