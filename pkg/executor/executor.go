// Package executor interprets a flow's step list and orchestrates runs.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/template"
)

const defaultHTTPTimeout = 30 * time.Second

// Result is the interpreter-level outcome of one run: whether it succeeded
// and the per-step outcomes up to the point execution stopped.
type Result struct {
	Success  bool
	Outcomes []models.StepOutcome
}

// Executor runs a flow's ordered step list against a shared mutable
// execution context. Steps execute strictly in sequence; the first step
// error halts the run as a failure, and the first false condition or logic
// evaluation halts it as a success with the remaining steps skipped.
type Executor struct {
	client *http.Client
	logger *slog.Logger
}

func NewExecutor() *Executor {
	return &Executor{
		client: &http.Client{Timeout: defaultHTTPTimeout},
		logger: log.WithModule("executor"),
	}
}

// Execute interprets steps in order. Only fetch steps widen the context's
// result map; every executed step contributes one outcome.
func (e *Executor) Execute(ctx context.Context, steps models.Steps, ec *models.ExecutionContext) Result {
	outcomes := make([]models.StepOutcome, 0, len(steps))

	for _, step := range steps {
		output, halt, err := e.executeStep(ctx, step, ec)

		outcome := models.StepOutcome{
			StepID:    stepID(step),
			Output:    output,
			Timestamp: time.Now().UTC(),
		}

		if err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)

			ec.Log(fmt.Sprintf("step %s failed: %s", outcome.StepID, err.Error()))

			e.logger.ErrorContext(ctx, "Step failed, halting run",
				"step", outcome.StepID,
				"error", err)

			return Result{Success: false, Outcomes: outcomes}
		}

		outcomes = append(outcomes, outcome)

		if halt {
			return Result{Success: true, Outcomes: outcomes}
		}
	}

	return Result{Success: true, Outcomes: outcomes}
}

// executeStep dispatches on the step variant. halt=true means a false
// condition short-circuited the run without failing it.
func (e *Executor) executeStep(ctx context.Context, step models.Step, ec *models.ExecutionContext) (output any, halt bool, err error) {
	switch s := step.(type) {
	case *models.FetchStep:
		result, err := e.executeFetch(ctx, s)
		if err != nil {
			return nil, false, err
		}

		ec.Results[s.ID] = result

		return result, false, nil
	case *models.DelayStep:
		return e.executeDelay(ctx, s, ec)
	case *models.ConditionStep:
		matched := evaluateRule(s.Rule, ec.Results)
		if !matched {
			ec.Log(fmt.Sprintf("condition %s %s %v evaluated to false, skipping remaining steps",
				s.Input, s.Operator, s.Value))
		}

		return map[string]any{"result": matched}, !matched, nil
	case *models.LogicStep:
		matched := evaluateLogic(s, ec.Results)
		if !matched {
			ec.Log(fmt.Sprintf("logic gate (%s) evaluated to false, skipping remaining steps", s.Mode))
		}

		return map[string]any{"result": matched}, !matched, nil
	case *models.LogStep:
		line := template.Interpolate(s.Message, ec.Results)
		if len(s.Include) > 0 {
			line += " " + includeDump(s.Include, ec.Results)
		}

		ec.Log(line)

		return line, false, nil
	case *models.NotifyStep:
		result, err := e.executeNotify(ctx, s, ec.Results)

		return result, false, err
	default:
		return nil, false, fmt.Errorf("%w: %q", models.ErrUnknownStepType, step.Kind())
	}
}

func (e *Executor) executeDelay(ctx context.Context, step *models.DelayStep, ec *models.ExecutionContext) (any, bool, error) {
	duration, err := models.ParseDuration(step.Duration)
	if err != nil {
		return nil, false, err
	}

	// Suspends only this run; other flows keep executing.
	select {
	case <-time.After(duration):
	case <-ctx.Done():
		return nil, false, fmt.Errorf("delay interrupted: %w", ctx.Err())
	}

	ec.Log("delayed for " + step.Duration)

	return map[string]any{"duration": step.Duration}, false, nil
}

// stepID names the outcome of a step: fetch steps carry their user-assigned
// id, every other variant reports its type name.
func stepID(step models.Step) string {
	if fetch, ok := step.(*models.FetchStep); ok {
		return fetch.ID
	}

	return string(step.Kind())
}

// includeDump renders the named result keys as one compact JSON object.
// Absent keys are skipped rather than rendered as null.
func includeDump(keys []string, results map[string]any) string {
	encoded, err := json.Marshal(includedResults(keys, results))
	if err != nil {
		return "{}"
	}

	return string(encoded)
}
