package notify

import (
	"context"
	"strings"

	"registrar-backend/internal/queue"
	"registrar-backend/internal/settings"
	"registrar-backend/internal/shared/metrics"
	"registrar-backend/internal/shared/telemetry"
)

// Deliverer hands a composed notice to a transport.
type Deliverer interface {
	Deliver(ctx context.Context, n Notice) error
}

// LogDeliverer records notices in the structured log. Mail and SMS
// transports live outside this service.
type LogDeliverer struct{}

// Deliver logs the notice.
func (LogDeliverer) Deliver(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	telemetry.Info("notify.delivered", map[string]any{
		"kind":    string(n.Kind),
		"to":      strings.Join(n.To, ","),
		"subject": n.Subject,
		"body":    n.Body,
	})
	return nil
}

// Dispatcher composes queued messages and delivers them.
type Dispatcher struct {
	Deliverer Deliverer
	Settings  SettingsSource
}

// Handle composes and delivers one message. Compose errors are permanent;
// delivery errors may be retried by the caller.
func (d *Dispatcher) Handle(ctx context.Context, msg queue.Message) error {
	school := d.settingsOrDefault().School
	notice, err := Compose(msg, school)
	if err != nil {
		metrics.IncNotification(string(msg.Kind), false)
		return &ComposeError{Err: err}
	}
	deliverer := d.Deliverer
	if deliverer == nil {
		deliverer = LogDeliverer{}
	}
	if err := deliverer.Deliver(ctx, notice); err != nil {
		metrics.IncNotification(string(msg.Kind), false)
		return err
	}
	metrics.IncNotification(string(msg.Kind), true)
	return nil
}

func (d *Dispatcher) settingsOrDefault() settings.Settings {
	if d.Settings == nil {
		return settings.Defaults()
	}
	return d.Settings.Get()
}

// ComposeError marks a message that can never be delivered.
type ComposeError struct {
	Err error
}

func (e *ComposeError) Error() string { return "compose notice: " + e.Err.Error() }

func (e *ComposeError) Unwrap() error { return e.Err }
