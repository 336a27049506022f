package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/executor"
	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/store"
)

// FlowService owns flow CRUD, validation, and the manual run entrypoint.
type FlowService struct {
	store    store.Store
	runner   *executor.Runner
	bus      eventbus.EventBus
	validate *validator.Validate
	logger   *slog.Logger
}

// NewFlowService creates a flow service. bus may be nil.
func NewFlowService(st store.Store, runner *executor.Runner, bus eventbus.EventBus) *FlowService {
	return &FlowService{
		store:    st,
		runner:   runner,
		bus:      bus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.WithModule("flow_service"),
	}
}

// HealthCheck checks the health of the store.
func (s *FlowService) HealthCheck(ctx context.Context) (string, bool) {
	if s.store == nil {
		return "Store not initialized", false
	}

	err := s.store.HealthCheck(ctx)
	if err != nil {
		return "Store is unhealthy: " + err.Error(), false
	}

	return "Store is healthy", true
}

// CreateFlowRequest carries a new flow definition. Enabled defaults to true
// when omitted.
type CreateFlowRequest struct {
	Name     string       `json:"name"     validate:"required,min=1"`
	Schedule string       `json:"schedule" validate:"required"`
	Enabled  *bool        `json:"enabled"`
	Steps    models.Steps `json:"steps"`
}

// Create validates the definition, derives the flow id from the name, and
// stores the record. Names that normalize to an already-taken id are
// rejected as duplicates.
func (s *FlowService) Create(ctx context.Context, req CreateFlowRequest) (*models.FlowRecord, error) {
	err := s.validate.Struct(req)
	if err != nil {
		return nil, NewValidationError("Create", "INVALID_FLOW", err.Error(), ErrInvalidRequest)
	}

	definition := models.FlowDefinition{
		Name:     req.Name,
		Schedule: req.Schedule,
		Enabled:  req.Enabled == nil || *req.Enabled,
		Steps:    req.Steps,
	}

	err = definition.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid flow definition: %w", err)
	}

	flow := models.NewFlowRecord(definition)
	if flow.ID == "" {
		return nil, NewValidationError("Create", "INVALID_NAME", fmt.Sprintf("name %q normalizes to an empty id", req.Name), ErrEmptyFlowName)
	}

	err = s.store.Create(ctx, flow)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.FlowCreated{
		BaseEvent: events.NewBaseEvent(events.FlowCreatedEvent, flow.ID),
		Name:      flow.Name,
	})

	s.logger.InfoContext(ctx, "Flow created", "flow_id", flow.ID)

	return flow, nil
}

// UpdateFlowRequest carries a partial update; nil fields are left untouched.
// The id (and therefore the name) is immutable.
type UpdateFlowRequest struct {
	Schedule *string       `json:"schedule"`
	Enabled  *bool         `json:"enabled"`
	Steps    *models.Steps `json:"steps"`
}

func (s *FlowService) Update(ctx context.Context, id string, req UpdateFlowRequest) (*models.FlowRecord, error) {
	if id == "" {
		return nil, NewValidationError("Update", "EMPTY_ID", "flow id is required", ErrEmptyFlowID)
	}

	flow, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Schedule != nil {
		flow.Schedule = *req.Schedule
	}

	if req.Enabled != nil {
		flow.Enabled = *req.Enabled
	}

	if req.Steps != nil {
		flow.Steps = *req.Steps
	}

	err = flow.FlowDefinition.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid flow definition: %w", err)
	}

	flow.UpdatedAt = time.Now().UTC()

	err = s.store.Update(ctx, flow)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.FlowUpdated{
		BaseEvent: events.NewBaseEvent(events.FlowUpdatedEvent, flow.ID),
		Name:      flow.Name,
	})

	s.logger.InfoContext(ctx, "Flow updated", "flow_id", flow.ID)

	return flow, nil
}

func (s *FlowService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return NewValidationError("Delete", "EMPTY_ID", "flow id is required", ErrEmptyFlowID)
	}

	err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.publish(ctx, events.FlowDeleted{
		BaseEvent: events.NewBaseEvent(events.FlowDeletedEvent, id),
	})

	s.logger.InfoContext(ctx, "Flow deleted", "flow_id", id)

	return nil
}

func (s *FlowService) Get(ctx context.Context, id string) (*models.FlowRecord, error) {
	return s.store.Get(ctx, id)
}

func (s *FlowService) List(ctx context.Context) ([]*models.FlowRecord, error) {
	return s.store.List(ctx)
}

func (s *FlowService) Runs(ctx context.Context, flowID string) ([]*models.RunRecord, error) {
	return s.store.Runs(ctx, flowID)
}

func (s *FlowService) Run(ctx context.Context, flowID, runID string) (*models.RunRecord, error) {
	return s.store.Run(ctx, flowID, runID)
}

// Execute runs the flow immediately with the given trigger and persists the
// run record. A flow deleted while its run was in flight loses only the
// history entry; the record is still returned.
func (s *FlowService) Execute(ctx context.Context, id string, trigger models.Trigger) (*models.RunRecord, error) {
	flow, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	record := s.runner.RunNow(ctx, flow, trigger)

	err = s.store.AppendRun(ctx, record)
	if err != nil {
		if store.IsFlowNotFound(err) {
			s.logger.WarnContext(ctx, "Flow deleted during run, history not persisted",
				"flow_id", id,
				"run_id", record.ID)

			return record, nil
		}

		return nil, err
	}

	return record, nil
}

func (s *FlowService) publish(ctx context.Context, event eventbus.Event) {
	if s.bus == nil {
		return
	}

	err := s.bus.Publish(ctx, "flows", event)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish flow event",
			"event_type", event.GetType(),
			"error", err)
	}
}
