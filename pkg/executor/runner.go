package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/otelhelper"
)

// Runner orchestrates one execution of a flow: it seeds the execution
// context, invokes the interpreter, and always produces a run record —
// interpreter panics are converted into a synthetic failing outcome rather
// than propagated. The scheduler and the manual-trigger API share one
// Runner.
type Runner struct {
	executor *Executor
	bus      eventbus.EventBus
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewRunner wires a runner. bus and tracer may be nil; events and spans are
// then skipped.
func NewRunner(executor *Executor, bus eventbus.EventBus, tracer trace.Tracer) *Runner {
	return &Runner{
		executor: executor,
		bus:      bus,
		tracer:   tracer,
		logger:   log.WithModule("runner"),
	}
}

// RunNow executes the flow and returns its immutable run record. The caller
// decides whether to persist it.
func (r *Runner) RunNow(ctx context.Context, flow *models.FlowRecord, trigger models.Trigger) *models.RunRecord {
	runID := models.NewRunID()
	startedAt := time.Now().UTC()

	logger := r.logger.With(
		"flow_id", flow.ID,
		"run_id", runID,
		"trigger", trigger,
	)

	var span trace.Span

	if r.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, r.tracer, "flow.run",
			attribute.String(otelhelper.FlowIDKey, flow.ID),
			attribute.String(otelhelper.FlowNameKey, flow.Name),
			attribute.String(otelhelper.RunIDKey, runID),
			attribute.String(otelhelper.TriggerKey, string(trigger)),
		)
		defer span.End()
	}

	logger.InfoContext(ctx, "Starting flow run")

	ec := models.NewExecutionContext()
	ec.Log(fmt.Sprintf("[system] %s run of %q started at %s",
		trigger, flow.Name, startedAt.Format(time.RFC3339)))

	r.publishRunStarted(ctx, flow, runID, trigger)

	result := r.execute(ctx, flow, ec)

	finishedAt := time.Now().UTC()

	status := models.RunSuccess
	if !result.Success {
		status = models.RunFailure
	}

	record := &models.RunRecord{
		ID:         runID,
		FlowID:     flow.ID,
		Name:       flow.Name,
		Status:     status,
		Trigger:    trigger,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		LogLines:   ec.LogLines,
		Outcomes:   result.Outcomes,
		Flow:       flow.FlowDefinition,
	}

	if span != nil {
		span.SetAttributes(attribute.String(otelhelper.StatusKey, string(status)))

		for _, outcome := range result.Outcomes {
			span.AddEvent("step", trace.WithAttributes(
				attribute.String(otelhelper.StepIDKey, outcome.StepID),
				attribute.Bool("routine.step.failed", outcome.Error != ""),
			))
		}

		if status == models.RunFailure {
			otelhelper.SetError(span, fmt.Errorf("flow run %s failed", runID))
		}
	}

	r.publishRunFinished(ctx, record)

	logger.InfoContext(ctx, "Flow run finished",
		"status", status,
		"steps", len(result.Outcomes),
		"duration", finishedAt.Sub(startedAt))

	return record
}

// execute shields the run record construction from interpreter panics: a
// panic becomes a failing outcome with stepId "execution".
func (r *Runner) execute(ctx context.Context, flow *models.FlowRecord, ec *models.ExecutionContext) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			message := fmt.Sprintf("execution panicked: %v", recovered)

			ec.Log(message)
			r.logger.ErrorContext(ctx, "Recovered from execution panic",
				"flow_id", flow.ID,
				"panic", recovered)

			result = Result{
				Success: false,
				Outcomes: []models.StepOutcome{{
					StepID:    "execution",
					Error:     message,
					Timestamp: time.Now().UTC(),
				}},
			}
		}
	}()

	return r.executor.Execute(ctx, flow.Steps, ec)
}

func (r *Runner) publishRunStarted(ctx context.Context, flow *models.FlowRecord, runID string, trigger models.Trigger) {
	if r.bus == nil {
		return
	}

	event := events.RunStarted{
		BaseEvent: events.NewBaseEvent(events.RunStartedEvent, flow.ID),
		RunID:     runID,
		FlowName:  flow.Name,
		Trigger:   trigger,
	}

	err := r.bus.Publish(ctx, flow.ID, event)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to publish run started event", "error", err)
	}
}

func (r *Runner) publishRunFinished(ctx context.Context, record *models.RunRecord) {
	if r.bus == nil {
		return
	}

	event := events.RunFinished{
		BaseEvent:  events.NewBaseEvent(events.RunFinishedEvent, record.FlowID),
		RunID:      record.ID,
		FlowName:   record.Name,
		Trigger:    record.Trigger,
		Status:     record.Status,
		DurationMs: record.FinishedAt.Sub(record.StartedAt).Milliseconds(),
		Steps:      len(record.Outcomes),
	}

	err := r.bus.Publish(ctx, record.FlowID, event)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to publish run finished event", "error", err)
	}
}
