// Package models defines the core domain models for flow automation.
package models

import (
	"strings"
	"time"
)

// FlowDefinition describes what a flow does: an ordered list of typed steps
// executed when the cron schedule fires or on manual request.
type FlowDefinition struct {
	Name     string `json:"name"     validate:"required,min=1"`
	Schedule string `json:"schedule" validate:"required"`
	Enabled  bool   `json:"enabled"`
	Steps    Steps  `json:"steps"`
}

// FlowRecord is a stored flow: the definition plus identity and bookkeeping
// timestamps. Records are owned by the store and mutated only through its
// CRUD and run-completion operations.
type FlowRecord struct {
	ID string `json:"id"`

	FlowDefinition

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
}

// NewFlowRecord builds a record for a definition, deriving the identifier
// from the flow name.
func NewFlowRecord(definition FlowDefinition) *FlowRecord {
	now := time.Now().UTC()

	return &FlowRecord{
		ID:             FlowID(definition.Name),
		FlowDefinition: definition,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// FlowID derives the deterministic identifier for a flow name: lowercase,
// every run of non-alphanumeric characters collapsed to a single dash, no
// leading or trailing dash. Names that normalize identically collide on
// purpose so the store can reject duplicates at creation time.
func FlowID(name string) string {
	var b strings.Builder

	pendingDash := false

	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}

			pendingDash = false

			b.WriteRune(r)

			continue
		}

		pendingDash = true
	}

	return b.String()
}
