package services

import (
	"context"
	"log/slog"
)

// NotificationSink delivers fire-and-forget notifications. Callers must never
// let a sink failure roll back the mutation that triggered it: log and move on.
type NotificationSink interface {
	Notify(ctx context.Context, userIDs []int, message string) error
}

type logNotificationSink struct {
	logger *slog.Logger
}

// NewLogNotificationSink returns a sink that only logs. The real delivery
// channel (email, push) lives outside this service and is swapped in at
// process start.
func NewLogNotificationSink(logger *slog.Logger) NotificationSink {
	return &logNotificationSink{logger: logger}
}

func (s *logNotificationSink) Notify(ctx context.Context, userIDs []int, message string) error {
	s.logger.InfoContext(ctx, "notification dispatched",
		slog.Int("recipients", len(userIDs)),
		slog.String("message", message),
	)
	return nil
}
