package orchestrator

import (
	"context"

	"github.com/tis24dev/diskwatch/internal/logging"
	"github.com/tis24dev/diskwatch/internal/notify"
)

// NotificationAdapter runs one notifier and turns its result into log lines.
type NotificationAdapter struct {
	notifier notify.Notifier
	logger   *logging.Logger
}

// NewNotificationAdapter creates a new NotificationAdapter
func NewNotificationAdapter(notifier notify.Notifier, logger *logging.Logger) *NotificationAdapter {
	return &NotificationAdapter{
		notifier: notifier,
		logger:   logger,
	}
}

// Notify sends the report and reports whether the channel confirmed
// delivery. Failures are logged and never returned; there is no retry.
func (n *NotificationAdapter) Notify(ctx context.Context, data *notify.NotificationData) bool {
	name := n.notifier.Name()
	if !n.notifier.IsEnabled() {
		n.logger.Debug("%s: disabled, skipping", name)
		return false
	}

	n.logger.Debug("Calling %s.Send() (test=%v, recovery=%v)", name, data.Test, data.Recovery)
	result, err := n.notifier.Send(ctx, data)
	if err != nil {
		n.logger.Error("❌ %s: failed: %v", name, err)
		return false
	}

	n.logger.Debug("Notifier '%s' returned result: success=%v, method=%s, duration=%s",
		name, result.Success, result.Method, result.Duration)
	if !result.Success {
		n.logger.Warning("%s: failure reported", name)
		if result.Error != nil {
			n.logger.Warning("  Error: %v", result.Error)
		}
		return false
	}

	n.logger.Info("✓ %s: sent in %s", name, notify.FormatDuration(result.Duration))
	return true
}
