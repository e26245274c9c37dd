package alerts

import (
	"context"

	"competitor-knowledge/internal/shared/telemetry"
)

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the structured log instead of delivering them.
type LogSender struct{}

// Send logs the notification.
func (LogSender) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	telemetry.Info("alert.notification", map[string]any{
		"notify_email": n.To,
		"subject":      n.Subject,
		"diff_pct":     n.DiffPct,
	})
	return nil
}
