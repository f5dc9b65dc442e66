// Package eventbus abstracts the message bus carrying trigger and lifecycle
// events.
package eventbus

import (
	"context"

	"github.com/donorflow/donorflow/pkg/events"
)

// EventHandler processes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus publishes lifecycle events and dispatches subscribed event types
// to handlers.
type EventBus interface {
	Publish(ctx context.Context, topic, key string, event events.Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context, topic string) error
	GenerateID() string
	Close() error
}
