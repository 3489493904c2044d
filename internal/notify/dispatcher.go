// Package notify fans user notifications out to email, SMS and the event
// bus. Delivery is best effort: a failing channel is logged and never
// reaches the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"lana/internal/core"
	"lana/internal/log"
)

// Channel is one delivery route.
type Channel interface {
	Name() string
	// Accepts reports whether the channel can reach u at all.
	Accepts(u core.User) bool
	Send(ctx context.Context, u core.User, subject, message string) error
}

// Dispatcher sends each notification through every channel that accepts
// the user. Channels are independent of each other.
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// Notify never fails. Errors and panics from a channel are logged.
func (d *Dispatcher) Notify(ctx context.Context, u core.User, subject, message string) {
	for _, ch := range d.channels {
		if !ch.Accepts(u) {
			continue
		}
		if err := safeSend(ctx, ch, u, subject, message); err != nil {
			slog.WarnContext(ctx, "Notification delivery failed",
				log.NewFields().
					WithComponent(log.ComponentNotify).
					WithUser(u.ID).
					WithError(err).
					ToSlice()...,
			)
			continue
		}
		slog.DebugContext(ctx, "Notification sent", log.FieldChannel, ch.Name(), log.FieldUserID, u.ID, "subject", subject)
	}
}

func safeSend(ctx context.Context, ch Channel, u core.User, subject, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s channel panic: %v", ch.Name(), r)
		}
	}()
	if err := ch.Send(ctx, u, subject, message); err != nil {
		return fmt.Errorf("%s: %w", ch.Name(), err)
	}
	return nil
}
