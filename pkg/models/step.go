package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StepType discriminates the step union on the wire.
type StepType string

const (
	StepTypeFetch     StepType = "fetch"
	StepTypeDelay     StepType = "delay"
	StepTypeCondition StepType = "condition"
	StepTypeLogic     StepType = "logic"
	StepTypeLog       StepType = "log"
	StepTypeNotify    StepType = "notify"
)

// Operator is a comparison operator usable in condition and logic rules.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
)

// LogicMode combines the rules of a logic step.
type LogicMode string

const (
	LogicAnd LogicMode = "AND"
	LogicOr  LogicMode = "OR"
)

// NotifyMethod selects the payload shape a notify step sends.
type NotifyMethod string

const (
	NotifySlack   NotifyMethod = "slack"
	NotifyDiscord NotifyMethod = "discord"
	NotifyTeams   NotifyMethod = "teams"
	NotifyWebhook NotifyMethod = "webhook"
)

// Step is the sealed union of flow step variants. The interpreter
// type-switches over the concrete types; adding a variant is a closed-set
// change across this package and the interpreter.
type Step interface {
	Kind() StepType

	step()
}

// FetchStep issues an HTTP request and captures {status, headers, body}
// into the run's result map under its id.
type FetchStep struct {
	ID      string            `json:"id"`
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
}

func (*FetchStep) Kind() StepType { return StepTypeFetch }
func (*FetchStep) step()          {}

// DelayStep suspends the run for a fixed duration ("500ms", "10s", "5m", "1h").
type DelayStep struct {
	Duration string `json:"duration"`
}

func (*DelayStep) Kind() StepType { return StepTypeDelay }
func (*DelayStep) step()          {}

// Rule compares a result value, addressed by dot-path, against a literal.
type Rule struct {
	Input    string   `json:"input"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// ConditionStep evaluates one rule; a false result short-circuits the run
// without failing it.
type ConditionStep struct {
	Rule
}

func (*ConditionStep) Kind() StepType { return StepTypeCondition }
func (*ConditionStep) step()          {}

// LogicStep combines several rules with AND or OR; a false result
// short-circuits the run without failing it.
type LogicStep struct {
	Mode       LogicMode `json:"mode"`
	Conditions []Rule    `json:"conditions"`
}

func (*LogicStep) Kind() StepType { return StepTypeLogic }
func (*LogicStep) step()          {}

// LogStep appends an interpolated message to the run's log lines, optionally
// followed by a JSON dump of named result keys.
type LogStep struct {
	Message string   `json:"message"`
	Include []string `json:"include,omitempty"`
}

func (*LogStep) Kind() StepType { return StepTypeLog }
func (*LogStep) step()          {}

// NotifyStep posts a channel-specific JSON payload to a webhook URL.
type NotifyStep struct {
	Method     NotifyMethod `json:"method"`
	URL        string       `json:"url"`
	Message    string       `json:"message,omitempty"`
	RawPayload string       `json:"rawPayload,omitempty"`
	Include    []string     `json:"include,omitempty"`
}

func (*NotifyStep) Kind() StepType { return StepTypeNotify }
func (*NotifyStep) step()          {}

// Steps carries the ordered step list of a flow and owns the JSON envelope
// encoding: each element is the variant's fields plus a "type" discriminator.
type Steps []Step

// ErrUnknownStepType is returned when a step document carries an
// unrecognized type discriminator.
var ErrUnknownStepType = errors.New("unknown step type")

func (s *Steps) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return err
	}

	steps := make(Steps, 0, len(raw))

	for i, entry := range raw {
		var envelope struct {
			Type StepType `json:"type"`
		}

		err := json.Unmarshal(entry, &envelope)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		step, err := newStep(envelope.Type)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		err = json.Unmarshal(entry, step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}

		steps = append(steps, step)
	}

	*s = steps

	return nil
}

func (s Steps) MarshalJSON() ([]byte, error) {
	encoded := make([]json.RawMessage, 0, len(s))

	for _, step := range s {
		fields, err := json.Marshal(step)
		if err != nil {
			return nil, err
		}

		var doc map[string]any

		err = json.Unmarshal(fields, &doc)
		if err != nil {
			return nil, err
		}

		doc["type"] = step.Kind()

		entry, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}

		encoded = append(encoded, entry)
	}

	return json.Marshal(encoded)
}

func newStep(stepType StepType) (Step, error) {
	switch stepType {
	case StepTypeFetch:
		return &FetchStep{}, nil
	case StepTypeDelay:
		return &DelayStep{}, nil
	case StepTypeCondition:
		return &ConditionStep{}, nil
	case StepTypeLogic:
		return &LogicStep{}, nil
	case StepTypeLog:
		return &LogStep{}, nil
	case StepTypeNotify:
		return &NotifyStep{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepType, stepType)
	}
}
