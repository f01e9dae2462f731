package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering and alerting.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType tags verdict log lines.
	FieldDecisionType = "decision_type"
	// FieldCameraID is the standardized key for the camera name (watch folder basename).
	FieldCameraID = "camera_id"
	// FieldWatchDir is the standardized key for the watch folder path.
	FieldWatchDir = "watch_dir"
	// FieldPassID is the standardized key for orchestrator pass identifiers.
	FieldPassID = "pass_id"
	// FieldSessionID identifies one daemon run in diagnostic logs.
	FieldSessionID = "session_id"
)

type contextKey int

const (
	passIDKey contextKey = iota
	cameraIDKey
)

// WithPassID stores the orchestrator pass identifier on ctx.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey, id)
}

// PassIDFromContext returns the pass identifier stored by WithPassID.
func PassIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(passIDKey).(string)
	return id, ok && id != ""
}

// WithCameraID stores the camera name on ctx.
func WithCameraID(ctx context.Context, camera string) context.Context {
	return context.WithValue(ctx, cameraIDKey, camera)
}

// CameraIDFromContext returns the camera name stored by WithCameraID.
func CameraIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	camera, ok := ctx.Value(cameraIDKey).(string)
	return camera, ok && camera != ""
}

func contextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := PassIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPassID, id))
	}
	if camera, ok := CameraIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCameraID, camera))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
