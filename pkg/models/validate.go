package models

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validation sentinels for flow definitions.
var (
	ErrFlowNameRequired   = errors.New("flow name is required")
	ErrInvalidSchedule    = errors.New("invalid cron schedule")
	ErrDuplicateFetchID   = errors.New("duplicate fetch step id")
	ErrFetchIDRequired    = errors.New("fetch step id is required")
	ErrStepURLRequired    = errors.New("step url is required")
	ErrInvalidOperator    = errors.New("invalid comparison operator")
	ErrInvalidLogicMode   = errors.New("logic mode must be AND or OR")
	ErrLogicRulesRequired = errors.New("logic step requires at least one condition")
	ErrInvalidNotify      = errors.New("invalid notify step")
)

// CronParser is the 5-field UTC parser used everywhere a schedule is read:
// minute, hour, day of month, month, day of week. No seconds field, no
// vendor extensions.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the definition-level invariants: a non-empty name, a
// parseable schedule, pairwise-distinct fetch ids, and per-variant field
// requirements. The first violation is returned.
func (d *FlowDefinition) Validate() error {
	if d.Name == "" {
		return ErrFlowNameRequired
	}

	if _, err := CronParser.Parse(d.Schedule); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, d.Schedule, err)
	}

	fetchIDs := make(map[string]struct{})

	for i, step := range d.Steps {
		err := validateStep(step, fetchIDs)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Kind(), err)
		}
	}

	return nil
}

func validateStep(step Step, fetchIDs map[string]struct{}) error {
	switch s := step.(type) {
	case *FetchStep:
		if s.ID == "" {
			return ErrFetchIDRequired
		}

		if _, seen := fetchIDs[s.ID]; seen {
			return fmt.Errorf("%w: %q", ErrDuplicateFetchID, s.ID)
		}

		fetchIDs[s.ID] = struct{}{}

		if s.URL == "" {
			return ErrStepURLRequired
		}

		if s.Timeout != "" {
			if _, err := ParseDuration(s.Timeout); err != nil {
				return err
			}
		}

		return nil
	case *DelayStep:
		_, err := ParseDuration(s.Duration)

		return err
	case *ConditionStep:
		return validateRule(s.Rule)
	case *LogicStep:
		if s.Mode != LogicAnd && s.Mode != LogicOr {
			return fmt.Errorf("%w: %q", ErrInvalidLogicMode, s.Mode)
		}

		if len(s.Conditions) == 0 {
			return ErrLogicRulesRequired
		}

		for _, rule := range s.Conditions {
			if err := validateRule(rule); err != nil {
				return err
			}
		}

		return nil
	case *LogStep:
		return nil
	case *NotifyStep:
		return validateNotify(s)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStepType, step.Kind())
	}
}

func validateRule(rule Rule) error {
	switch rule.Operator {
	case OpEqual, OpNotEqual, OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperator, rule.Operator)
	}
}

func validateNotify(s *NotifyStep) error {
	if s.URL == "" {
		return ErrStepURLRequired
	}

	switch s.Method {
	case NotifyWebhook:
		if s.RawPayload == "" {
			return fmt.Errorf("%w: webhook notify requires a raw payload template", ErrInvalidNotify)
		}

		return nil
	case NotifySlack, NotifyDiscord, NotifyTeams:
		if s.Message == "" {
			return fmt.Errorf("%w: %s notify requires a message template", ErrInvalidNotify, s.Method)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidNotify, s.Method)
	}
}
