// Package notify delivers health reports to chat channels. Delivery failures
// are reported in the result and never abort a run.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tis24dev/diskwatch/internal/health"
	"github.com/tis24dev/diskwatch/internal/types"
)

// NotificationData contains everything a notifier needs to render a message.
type NotificationData struct {
	Report *health.Report
	// Test marks a message sent because of --test.
	Test bool
	// Recovery marks a message announcing a return to OK.
	Recovery bool
}

// NotificationResult represents the result of a notification attempt
type NotificationResult struct {
	Success  bool
	Method   string
	Error    error
	Duration time.Duration
	Metadata map[string]interface{}
}

// Notifier is implemented by every notification channel.
type Notifier interface {
	// Name returns the notifier name (e.g., "Telegram")
	Name() string

	// IsEnabled reports whether the channel is switched on and has the
	// credentials it needs to send.
	IsEnabled() bool

	// Send delivers a report. Delivery problems are reported through the
	// result; the error return is reserved for programming errors.
	Send(ctx context.Context, data *NotificationData) (*NotificationResult, error)
}

// SeverityEmoji returns the marker shown next to a severity.
func SeverityEmoji(s types.Severity) string {
	switch s {
	case types.SeverityOK:
		return "🟢"
	case types.SeverityWarn:
		return "🟡"
	case types.SeverityCritical:
		return "🔴"
	default:
		return "❓"
	}
}

// FormatDuration formats a duration in human-readable format (e.g., "2h 15m 30s")
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return formatUnits([]int{hours, minutes, seconds}, []string{"h", "m", "s"})
	case minutes > 0:
		return formatUnits([]int{minutes, seconds}, []string{"m", "s"})
	default:
		return formatUnits([]int{seconds}, []string{"s"})
	}
}

func formatUnits(values []int, units []string) string {
	var parts []string
	for i, v := range values {
		if v == 0 && i > 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d%s", v, units[i]))
	}
	return strings.Join(parts, " ")
}
