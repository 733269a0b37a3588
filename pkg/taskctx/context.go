// Package taskctx carries metadata for background pipeline tasks through
// their context, so every log line from a detached save or analysis can be
// tied back to the delivery that spawned it.
package taskctx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type key string

var (
	keyTaskID    key = "task_id"
	keyTaskType  key = "task_type"
	keySessionID key = "session_id"
	keyStartTime key = "task_start_time"
)

// Begin derives a bounded context tagged with task metadata.
func Begin(parent context.Context, taskType, sessionID string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	ctx = context.WithValue(ctx, keyTaskID, uuid.New())
	ctx = context.WithValue(ctx, keyTaskType, taskType)
	ctx = context.WithValue(ctx, keySessionID, sessionID)
	ctx = context.WithValue(ctx, keyStartTime, time.Now())
	return ctx, cancel
}

// TaskID extracts the task id from context
func TaskID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(keyTaskID).(uuid.UUID)
	return id, ok
}

// TaskType extracts the task type from context
func TaskType(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(keyTaskType).(string)
	return t, ok
}

// SessionID extracts the session id from context
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(keySessionID).(string)
	return id, ok
}

// StartTime extracts the task start time from context
func StartTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(keyStartTime).(time.Time)
	return t, ok
}

// Elapsed returns how long the task has been running.
func Elapsed(ctx context.Context) time.Duration {
	start, ok := StartTime(ctx)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// Fields renders the task metadata as zap fields for structured logging.
func Fields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if id, ok := TaskID(ctx); ok {
		fields = append(fields, zap.String("task_id", id.String()))
	}
	if t, ok := TaskType(ctx); ok {
		fields = append(fields, zap.String("task", t))
	}
	if id, ok := SessionID(ctx); ok {
		fields = append(fields, zap.String("session_id", id))
	}
	return fields
}
