package executor

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/models"
)

type capturingBus struct {
	mu        sync.Mutex
	published []eventbus.Event
}

func (b *capturingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, event)

	return nil
}

func (b *capturingBus) Handle(events.EventType, eventbus.EventHandler) error { return nil }
func (b *capturingBus) Subscribe(context.Context) error                      { return nil }
func (b *capturingBus) Close() error                                         { return nil }
func (b *capturingBus) GenerateID() string                                   { return "test" }

func (b *capturingBus) events() []eventbus.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]eventbus.Event(nil), b.published...)
}

func testFlow(steps models.Steps) *models.FlowRecord {
	return models.NewFlowRecord(models.FlowDefinition{
		Name:     "Test Flow",
		Schedule: "* * * * *",
		Enabled:  true,
		Steps:    steps,
	})
}

func TestRunNow_Success(t *testing.T) {
	bus := &capturingBus{}
	runner := NewRunner(NewExecutor(), bus, nil)

	flow := testFlow(models.Steps{&models.LogStep{Message: "hello"}})

	record := runner.RunNow(context.Background(), flow, models.TriggerManual)
	require.NotNil(t, record)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, flow.ID, record.FlowID)
	assert.Equal(t, flow.Name, record.Name)
	assert.Equal(t, models.RunSuccess, record.Status)
	assert.Equal(t, models.TriggerManual, record.Trigger)
	assert.False(t, record.StartedAt.After(record.FinishedAt))
	assert.Equal(t, flow.FlowDefinition, record.Flow)

	require.Len(t, record.Outcomes, 1)
	assert.Equal(t, "log", record.Outcomes[0].StepID)

	// The first log line is the system banner, the second the log step.
	require.Len(t, record.LogLines, 2)
	assert.True(t, strings.HasPrefix(record.LogLines[0], `[system] manual run of "Test Flow" started at `))
	assert.Equal(t, "hello", record.LogLines[1])
}

func TestRunNow_Failure(t *testing.T) {
	runner := NewRunner(NewExecutor(), nil, nil)

	flow := testFlow(models.Steps{&models.DelayStep{Duration: "bogus"}})

	record := runner.RunNow(context.Background(), flow, models.TriggerCron)

	assert.Equal(t, models.RunFailure, record.Status)
	assert.Equal(t, models.TriggerCron, record.Trigger)
	require.Len(t, record.Outcomes, 1)
	assert.NotEmpty(t, record.Outcomes[0].Error)
}

func TestRunNow_PublishesLifecycleEvents(t *testing.T) {
	bus := &capturingBus{}
	runner := NewRunner(NewExecutor(), bus, nil)

	flow := testFlow(models.Steps{&models.LogStep{Message: "hi"}})
	record := runner.RunNow(context.Background(), flow, models.TriggerManual)

	published := bus.events()
	require.Len(t, published, 2)

	started, ok := published[0].(events.RunStarted)
	require.True(t, ok)
	assert.Equal(t, record.ID, started.RunID)
	assert.Equal(t, flow.ID, started.FlowID)
	assert.Equal(t, models.TriggerManual, started.Trigger)

	finished, ok := published[1].(events.RunFinished)
	require.True(t, ok)
	assert.Equal(t, record.ID, finished.RunID)
	assert.Equal(t, models.RunSuccess, finished.Status)
	assert.Equal(t, 1, finished.Steps)
	assert.GreaterOrEqual(t, finished.DurationMs, int64(0))
}

func TestRunNow_RecoversFromPanic(t *testing.T) {
	runner := NewRunner(NewExecutor(), nil, nil)

	// A nil step makes the interpreter panic on dispatch; the runner must
	// still hand back a failing record.
	flow := testFlow(models.Steps{nil})

	record := runner.RunNow(context.Background(), flow, models.TriggerManual)

	assert.Equal(t, models.RunFailure, record.Status)
	require.Len(t, record.Outcomes, 1)
	assert.Equal(t, "execution", record.Outcomes[0].StepID)
	assert.Contains(t, record.Outcomes[0].Error, "execution panicked")
}
