// Package notify delivers alert text to external destinations.
//
// Sinks:
//   - Telegram bot API (sendMessage), one chat id per destination
//   - Redis pub/sub, one channel per destination, JSON payloads
//   - Log, writes the alert through the process logger
//
// Delivery is fire-and-forget from the caller's point of view: sinks do not
// retry and errors are returned for logging only.
package notify

import (
	"context"

	"github.com/rickgao/aggression-monitor/internal/model"
)

// Sink accepts a plain-text message for a destination.
type Sink interface {
	Send(ctx context.Context, destination, text string) error
}

// AlertSink is implemented by sinks that can carry the structured alert.
type AlertSink interface {
	Sink
	SendAlert(ctx context.Context, destination string, alert model.Alert) error
}

// Target pairs a sink with one of its destinations.
type Target struct {
	Name        string // For logs and metrics, e.g. "telegram"
	Sink        Sink
	Destination string
}

// Deliver sends alert to target, preferring the structured form when supported.
func Deliver(ctx context.Context, target Target, alert model.Alert) error {
	if as, ok := target.Sink.(AlertSink); ok {
		return as.SendAlert(ctx, target.Destination, alert)
	}
	return target.Sink.Send(ctx, target.Destination, alert.Text)
}
