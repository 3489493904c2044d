package notify

import (
	"context"

	"lana/internal/core"
)

// NotificationPublisher is implemented by the AMQP client.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, userID int64, subject, message string) error
}

// EventChannel mirrors notifications onto the event bus.
type EventChannel struct {
	publisher NotificationPublisher
}

func NewEventChannel(p NotificationPublisher) *EventChannel {
	return &EventChannel{publisher: p}
}

func (e *EventChannel) Name() string { return "event" }

func (e *EventChannel) Accepts(core.User) bool { return e.publisher != nil }

func (e *EventChannel) Send(ctx context.Context, u core.User, subject, message string) error {
	return e.publisher.PublishNotification(ctx, u.ID, subject, message)
}
