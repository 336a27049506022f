package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routinehq/routine/pkg/executor"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/store"
	"github.com/routinehq/routine/pkg/store/memory"
)

func newTestService() *FlowService {
	runner := executor.NewRunner(executor.NewExecutor(), nil, nil)

	return NewFlowService(memory.NewStore(), runner, nil)
}

func createRequest() CreateFlowRequest {
	return CreateFlowRequest{
		Name:     "BTC Price Alert",
		Schedule: "*/5 * * * *",
		Steps: models.Steps{
			&models.LogStep{Message: "checking"},
		},
	}
}

func TestFlowService_Create(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	created, err := service.Create(ctx, createRequest())
	require.NoError(t, err)

	assert.Equal(t, "btc-price-alert", created.ID)
	assert.True(t, created.Enabled, "enabled defaults to true when omitted")
	assert.False(t, created.CreatedAt.IsZero())

	fetched, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
}

func TestFlowService_Create_ExplicitlyDisabled(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	disabled := false
	req := createRequest()
	req.Enabled = &disabled

	created, err := service.Create(ctx, req)
	require.NoError(t, err)
	assert.False(t, created.Enabled)
}

func TestFlowService_Create_Invalid(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	req := createRequest()
	req.Name = ""

	_, err := service.Create(ctx, req)
	assert.True(t, IsValidationError(err))

	req = createRequest()
	req.Schedule = "whenever"

	_, err = service.Create(ctx, req)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, models.ErrInvalidSchedule)

	req = createRequest()
	req.Name = "!!!"

	_, err = service.Create(ctx, req)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrEmptyFlowName)
}

func TestFlowService_Create_DuplicateNormalizedName(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	_, err := service.Create(ctx, createRequest())
	require.NoError(t, err)

	// A different spelling of the same name lands on the same id.
	req := createRequest()
	req.Name = "btc  PRICE alert"

	_, err = service.Create(ctx, req)
	assert.True(t, IsConflictError(err))
}

func TestFlowService_Update(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	created, err := service.Create(ctx, createRequest())
	require.NoError(t, err)

	schedule := "0 12 * * *"
	updated, err := service.Update(ctx, created.ID, UpdateFlowRequest{Schedule: &schedule})
	require.NoError(t, err)

	assert.Equal(t, schedule, updated.Schedule)
	assert.Equal(t, created.Name, updated.Name, "name is immutable")
	assert.True(t, updated.Enabled, "untouched fields keep their values")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))

	bad := "not a schedule"
	_, err = service.Update(ctx, created.ID, UpdateFlowRequest{Schedule: &bad})
	assert.ErrorIs(t, err, models.ErrInvalidSchedule)

	_, err = service.Update(ctx, "ghost", UpdateFlowRequest{Schedule: &schedule})
	assert.True(t, store.IsFlowNotFound(err))

	_, err = service.Update(ctx, "", UpdateFlowRequest{})
	assert.True(t, IsValidationError(err))
}

func TestFlowService_Delete(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	created, err := service.Create(ctx, createRequest())
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, created.ID))

	_, err = service.Get(ctx, created.ID)
	assert.True(t, store.IsFlowNotFound(err))

	assert.True(t, store.IsFlowNotFound(service.Delete(ctx, created.ID)))
	assert.True(t, IsValidationError(service.Delete(ctx, "")))
}

func TestFlowService_Execute(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	created, err := service.Create(ctx, createRequest())
	require.NoError(t, err)

	record, err := service.Execute(ctx, created.ID, models.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, models.RunSuccess, record.Status)
	assert.Equal(t, models.TriggerManual, record.Trigger)

	runs, err := service.Runs(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, record.ID, runs[0].ID)

	fetched, err := service.Run(ctx, created.ID, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, fetched.ID)

	flow, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, flow.LastRunAt)

	_, err = service.Execute(ctx, "ghost", models.TriggerManual)
	assert.True(t, store.IsFlowNotFound(err))
}

func TestFlowService_HealthCheck(t *testing.T) {
	service := newTestService()

	message, ok := service.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Store is healthy", message)
}
