// Package notify delivers alert notifications over external channels.
// Alerts are dispatched to all registered senders (Telegram, Discord, etc.)
// and can be filtered by alert type so operators receive only the signals
// they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/omaralj/propwatch/internal/alerting"
	"github.com/omaralj/propwatch/internal/domain"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans alerts out to one or more Senders. It maintains a set of
// allowed alert types; alerts of other types are dropped silently. An empty
// set allows everything.
type Notifier struct {
	senders []Sender
	types   map[domain.AlertType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that delivers to the given senders. Only
// alerts whose type appears in the types slice are forwarded; an empty slice
// allows all types.
func NewNotifier(senders []Sender, types []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.AlertType]bool, len(types))
	for _, t := range types {
		allowed[domain.AlertType(strings.TrimSpace(t))] = true
	}
	return &Notifier{
		senders: senders,
		types:   allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify formats the alert and dispatches it to every sender. Errors from
// individual senders are collected and returned combined; a single sender
// failure does not prevent delivery to the remaining senders.
func (n *Notifier) Notify(ctx context.Context, alert domain.Alert) error {
	if len(n.types) > 0 && !n.types[alert.Type] {
		n.logger.DebugContext(ctx, "alert type filtered out",
			slog.String("type", string(alert.Type)),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	title, message := formatAlert(alert)

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "alert delivered",
				slog.String("sender", s.Name()),
				slog.String("type", string(alert.Type)),
				slog.String("area", alert.Area),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// formatAlert renders an alert as a short title plus a detail block.
func formatAlert(a domain.Alert) (title, message string) {
	title = fmt.Sprintf("[%s] %s", a.Severity, a.Title)
	message = fmt.Sprintf("%s\nvalue: %.2f (threshold %.2f)\ntriggered: %s",
		a.Description, a.MetricValue, a.ThresholdValue,
		a.TriggeredAt.Format("2006-01-02 15:04 MST"))
	return title, message
}

// Compile-time interface check.
var _ alerting.Notifier = (*Notifier)(nil)
