package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/donorflow/donorflow/pkg/events"
)

// WatermillEventBus adapts a watermill publisher/subscriber pair to the
// EventBus interface.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, topic, key string, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) {
	eb.subscriptions[eventType] = handler
}

// Subscribe consumes the topic and dispatches decoded events to registered
// handlers. Unknown event types are nacked; events without a handler are
// acked and dropped.
func (eb *WatermillEventBus) Subscribe(ctx context.Context, topic string) error {
	messages, err := eb.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := newEvent(eventType)
			if event == nil {
				msg.Nack()

				continue
			}

			err := json.Unmarshal(msg.Payload, event)
			if err != nil {
				msg.Nack()

				continue
			}

			err = handler(ctx, event)
			if err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}

func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.TriggerFiredEvent:
		return &events.TriggerFired{}
	case events.ExecutionStartedEvent:
		return &events.ExecutionStarted{}
	case events.ExecutionSuspendedEvent:
		return &events.ExecutionSuspended{}
	case events.ExecutionResumedEvent:
		return &events.ExecutionResumed{}
	case events.ExecutionCompletedEvent:
		return &events.ExecutionCompleted{}
	case events.ExecutionFailedEvent:
		return &events.ExecutionFailed{}
	default:
		return nil
	}
}
