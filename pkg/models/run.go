package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerCron   Trigger = "cron"
)

// StepOutcome is the recorded result of one executed step. Execution stops
// at the first error or the first false condition, so a run's outcome list
// covers a prefix of the flow's steps.
type StepOutcome struct {
	StepID    string    `json:"stepId"`
	Output    any       `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunRecord is the immutable outcome of one execution of a flow. It snapshots
// the definition as it was at run time; later edits to the flow do not
// rewrite history.
type RunRecord struct {
	ID         string         `json:"id"`
	FlowID     string         `json:"flowId"`
	Name       string         `json:"name"`
	Status     RunStatus      `json:"status"`
	Trigger    Trigger        `json:"trigger"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	LogLines   []string       `json:"logLines"`
	Outcomes   []StepOutcome  `json:"outcomes"`
	Flow       FlowDefinition `json:"flow"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}
