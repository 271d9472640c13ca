// Package eventbus carries domain events, execution requests and run lifecycle
// notifications between the API, the scheduler and the workers.
package eventbus

import (
	"context"

	"github.com/dukex/engageflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes an event. key orders events of the same workflow
// or trigger on partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event, e.g. *events.DomainEvent.
// A returned error nacks the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error {
	return nil
}
