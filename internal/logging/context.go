package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the subsystem emitting the line.
	FieldComponent = "component"
	// FieldStreamID identifies the stream a line concerns.
	FieldStreamID = "stream_id"
	// FieldSlideID identifies a persisted slide.
	FieldSlideID = "slide_id"
	// FieldSessionID identifies one extraction run.
	FieldSessionID = "session_id"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type ctxKey int

const (
	streamIDKey ctxKey = iota
	sessionIDKey
)

// WithStreamID tags ctx with a stream identifier for log correlation.
func WithStreamID(ctx context.Context, streamID string) context.Context {
	if streamID == "" {
		return ctx
	}
	return context.WithValue(ctx, streamIDKey, streamID)
}

// StreamIDFromContext returns the stream identifier stored by WithStreamID.
func StreamIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(streamIDKey).(string)
	return id, ok && id != ""
}

// WithSessionID tags ctx with an extraction run identifier.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFromContext returns the run identifier stored by WithSessionID.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := StreamIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStreamID, id))
	}
	if id, ok := SessionIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
