// Package events defines the messages exchanged on the event bus: incoming
// domain events, manual execution requests and run lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every engageflow message; the event type travels in metadata.
const Topic = "engageflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// DomainEventReceived wraps a CRM domain event such as lead_created.
	DomainEventReceived EventType = "domain.event"

	WorkflowExecuteRequestedEvent EventType = "workflow.execute_requested"

	// Run lifecycle events.
	RunStartedEvent   EventType = "workflow.run.started"
	RunCompletedEvent EventType = "workflow.run.completed"
	RunFailedEvent    EventType = "workflow.run.failed"
)

// DomainEvent is an event emitted by the CRM. Type is matched against workflow
// trigger types.
type DomainEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (DomainEvent) GetType() EventType {
	return DomainEventReceived
}

func NewDomainEvent(eventType string, payload map[string]any) *DomainEvent {
	if payload == nil {
		payload = map[string]any{}
	}

	return &DomainEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// WorkflowExecuteRequested asks a worker to run a workflow immediately.
type WorkflowExecuteRequested struct {
	BaseEvent

	Payload map[string]any `json:"payload,omitempty"`
}

func (WorkflowExecuteRequested) GetType() EventType {
	return WorkflowExecuteRequestedEvent
}

type RunStarted struct {
	BaseEvent

	RunID        string `json:"run_id"`
	TriggerEvent string `json:"trigger_event"`
	StepsTotal   int    `json:"steps_total"`
}

func (RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	RunID         string `json:"run_id"`
	StepsExecuted int    `json:"steps_executed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	RunID         string `json:"run_id"`
	StepsExecuted int    `json:"steps_executed"`
	DurationMs    int64  `json:"duration_ms"`
	Error         string `json:"error"`
}

func (RunFailed) GetType() EventType {
	return RunFailedEvent
}
