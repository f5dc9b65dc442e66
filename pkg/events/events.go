// Package events defines the event types exchanged on the bus: incoming CRM
// trigger events and outgoing execution lifecycle notifications.
package events

import (
	"time"

	"github.com/donorflow/donorflow/pkg/models"
)

type EventType string

// Kafka topics.
const TriggerTopic = "donorflow.triggers"     // CRM emitters publish trigger events here
const ExecutionTopic = "donorflow.executions" // Engine publishes run lifecycle events here

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TriggerFiredEvent EventType = "trigger.fired"

	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionSuspendedEvent EventType = "execution.suspended"
	ExecutionResumedEvent   EventType = "execution.resumed"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
)

// Event is implemented by every message published on the bus.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TenantID  string    `json:"tenant_id"`
}

// TriggerFired is an incoming business event a CRM emitter publishes to start
// automation runs. Context carries at least a subject id plus any correlating
// ids relevant to the trigger kind.
type TriggerFired struct {
	BaseEvent

	TriggerKind models.TriggerKind `json:"trigger_kind"`
	Context     map[string]any     `json:"context,omitempty"`
}

func (t TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	AutomationID string `json:"automation_id"`
	SubjectID    string `json:"subject_id,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionSuspended struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	NextStep    int       `json:"next_step"`
	ResumeAt    time.Time `json:"resume_at"`
}

func (e ExecutionSuspended) GetType() EventType {
	return ExecutionSuspendedEvent
}

type ExecutionResumed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FromStep    int    `json:"from_step"`
}

func (e ExecutionResumed) GetType() EventType {
	return ExecutionResumedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepIndex   int    `json:"step_index"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
