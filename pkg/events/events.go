// Package events defines event types for flow and run lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/routinehq/routine/pkg/models"
)

type EventType string

// Topic carries every flow and run lifecycle event.
const Topic = "routine.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent  EventType = "flow.run.started"
	RunFinishedEvent EventType = "flow.run.finished"

	// Flow lifecycle events.
	FlowCreatedEvent EventType = "flow.created"
	FlowUpdatedEvent EventType = "flow.updated"
	FlowDeletedEvent EventType = "flow.deleted"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	FlowID    string    `json:"flow_id"`
}

type RunStarted struct {
	BaseEvent

	RunID    string         `json:"run_id"`
	FlowName string         `json:"flow_name"`
	Trigger  models.Trigger `json:"trigger"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunFinished struct {
	BaseEvent

	RunID      string           `json:"run_id"`
	FlowName   string           `json:"flow_name"`
	Trigger    models.Trigger   `json:"trigger"`
	Status     models.RunStatus `json:"status"`
	DurationMs int64            `json:"duration_ms"`
	Steps      int              `json:"steps"`
}

func (e RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type FlowCreated struct {
	BaseEvent

	Name string `json:"name"`
}

func (e FlowCreated) GetType() EventType {
	return FlowCreatedEvent
}

type FlowUpdated struct {
	BaseEvent

	Name string `json:"name"`
}

func (e FlowUpdated) GetType() EventType {
	return FlowUpdatedEvent
}

type FlowDeleted struct {
	BaseEvent
}

func (e FlowDeleted) GetType() EventType {
	return FlowDeletedEvent
}

func NewBaseEvent(eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
	}
}
