// Package notify consumes notification events from the bus and hands them to
// a delivery channel. Delivery is best-effort: failures are logged and never
// reach the pipeline that produced the event.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"progresskit/core"
	"progresskit/engine"
)

// Notification is one outbound message ready for delivery.
type Notification struct {
	ID      string                `json:"id"`
	UserID  core.UserID           `json:"user_id"`
	Kind    core.NotificationKind `json:"kind"`
	Message string                `json:"message"`
	At      time.Time             `json:"at"`
}

// Notifier delivers a notification over some channel (push, webhook, log).
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Dispatcher bridges bus notification events to a Notifier.
type Dispatcher struct {
	notifier Notifier
	log      *slog.Logger
}

func NewDispatcher(notifier Notifier, log *slog.Logger) *Dispatcher {
	if notifier == nil {
		panic("NewDispatcher requires a non-nil notifier")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{notifier: notifier, log: log}
}

// Attach subscribes the dispatcher to notification events. The returned func
// unsubscribes.
func (d *Dispatcher) Attach(bus *engine.EventBus) func() {
	return bus.Subscribe(core.EventNotification, d.onEvent)
}

func (d *Dispatcher) onEvent(ctx context.Context, e core.Event) {
	n := Notification{
		ID:      uuid.NewString(),
		UserID:  e.UserID,
		Kind:    e.Notification,
		Message: e.Message,
		At:      e.Time,
	}
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.log.Warn("notification delivery failed",
			"user", string(n.UserID), "kind", string(n.Kind), "error", err)
	}
}

// LogNotifier writes notifications to the log. Default delivery channel.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification", "user", string(n.UserID), "kind", string(n.Kind), "message", n.Message)
	return nil
}

var _ Notifier = LogNotifier{}
