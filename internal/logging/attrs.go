package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr              { return slog.Bool(key, value) }
func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }
func Float64(key string, value float64) Attr        { return slog.Float64(key, value) }
func Int(key string, value int) Attr                { return slog.Int(key, value) }
func Int64(key string, value int64) Attr            { return slog.Int64(key, value) }
func String(key string, value string) Attr          { return slog.String(key, value) }

// Error renders err under the "error" key. A nil error is logged as <nil>
// rather than dropped so call sites stay unconditional.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Args adapts attrs to the ...any parameter of slog.Logger methods.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with component. A nil logger yields a
// discarding one.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

const defaultErrorHint = "check logs for details"

// WarnWithContext logs a warning that the user may notice. event_type,
// error_hint and impact are always present; defaults fill the ones attrs
// leave out.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logDiagnostic(logger, slog.LevelWarn, msg, attrs, map[string]string{
		FieldEventType: eventType,
		FieldErrorHint: defaultErrorHint,
		FieldImpact:    "operation completed with warnings",
	})
}

// ErrorWithContext logs a failure with event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	logDiagnostic(logger, slog.LevelError, msg, attrs, map[string]string{
		FieldEventType: eventType,
		FieldErrorHint: defaultErrorHint,
	})
}

func logDiagnostic(logger *slog.Logger, level slog.Level, msg string, attrs []Attr, defaults map[string]string) {
	if logger == nil {
		return
	}
	for _, attr := range attrs {
		delete(defaults, attr.Key)
	}
	for _, key := range []string{FieldEventType, FieldErrorHint, FieldImpact} {
		if value, ok := defaults[key]; ok {
			attrs = append(attrs, String(key, value))
		}
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
