// Package notify defines the user-facing notification contract produced by
// the authenticated client. Rendering is left to the consumer.
package notify

import (
	"context"

	"github.com/pbis/authclient/lib/logger"
)

// Type is the notification severity.
type Type string

const (
	TypeError   Type = "error"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
)

// Notification is a single message meant for the end user.
type Notification struct {
	Message string `json:"message"`
	Type    Type   `json:"type"`
}

// Emitter accepts notifications. Emit must not block the caller for long and
// has no failure mode: it is fire-and-forget.
type Emitter interface {
	Emit(ctx context.Context, n Notification)
}

// EmitterFunc adapts a plain function to Emitter.
type EmitterFunc func(ctx context.Context, n Notification)

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, n Notification) {
	f(ctx, n)
}

// Discard drops every notification.
var Discard Emitter = EmitterFunc(func(context.Context, Notification) {})

// LogEmitter writes notifications to the context logger.
type LogEmitter struct{}

// Emit implements Emitter.
func (LogEmitter) Emit(ctx context.Context, n Notification) {
	log := logger.Get(ctx).WithField("notification", string(n.Type))
	switch n.Type {
	case TypeError:
		log.Error(n.Message)
	case TypeWarning:
		log.Warn(n.Message)
	default:
		log.Info(n.Message)
	}
}
