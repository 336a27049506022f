// Package memory provides an in-process store for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/store"
)

// Store keeps flows and run history in mutex-guarded maps. The single lock
// makes every read-modify-write atomic per flow, which is all the contract
// asks for.
type Store struct {
	mu    sync.RWMutex
	flows map[string]*models.FlowRecord
	runs  map[string][]*models.RunRecord
}

func NewStore() *Store {
	return &Store{
		flows: make(map[string]*models.FlowRecord),
		runs:  make(map[string][]*models.RunRecord),
	}
}

func (s *Store) List(ctx context.Context) ([]*models.FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flows := make([]*models.FlowRecord, 0, len(s.flows))
	for _, flow := range s.flows {
		flows = append(flows, cloneFlow(flow))
	}

	return flows, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.FlowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, exists := s.flows[id]
	if !exists {
		return nil, store.NewFlowError("Get", id, store.ErrFlowNotFound)
	}

	return cloneFlow(flow), nil
}

func (s *Store) Create(ctx context.Context, flow *models.FlowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flows[flow.ID]; exists {
		return store.NewFlowError("Create", flow.ID, store.ErrFlowExists)
	}

	s.flows[flow.ID] = cloneFlow(flow)
	s.runs[flow.ID] = make([]*models.RunRecord, 0)

	return nil
}

func (s *Store) Update(ctx context.Context, flow *models.FlowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.flows[flow.ID]
	if !exists {
		return store.NewFlowError("Update", flow.ID, store.ErrFlowNotFound)
	}

	updated := cloneFlow(flow)
	updated.LastRunAt = current.LastRunAt
	s.flows[flow.ID] = updated

	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.flows[id]; !exists {
		return store.NewFlowError("Delete", id, store.ErrFlowNotFound)
	}

	delete(s.flows, id)
	delete(s.runs, id)

	return nil
}

func (s *Store) AppendRun(ctx context.Context, record *models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, exists := s.flows[record.FlowID]
	if !exists {
		return store.NewFlowError("AppendRun", record.FlowID, store.ErrFlowNotFound)
	}

	history := append([]*models.RunRecord{record}, s.runs[record.FlowID]...)
	if len(history) > store.RunHistoryLimit {
		history = history[:store.RunHistoryLimit]
	}

	s.runs[record.FlowID] = history

	finishedAt := record.FinishedAt
	flow.LastRunAt = &finishedAt

	return nil
}

func (s *Store) Runs(ctx context.Context, flowID string) ([]*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.flows[flowID]; !exists {
		return nil, store.NewFlowError("Runs", flowID, store.ErrFlowNotFound)
	}

	history := s.runs[flowID]
	runs := make([]*models.RunRecord, len(history))
	copy(runs, history)

	return runs, nil
}

func (s *Store) Run(ctx context.Context, flowID, runID string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.flows[flowID]; !exists {
		return nil, store.NewFlowError("Run", flowID, store.ErrFlowNotFound)
	}

	for _, record := range s.runs[flowID] {
		if record.ID == runID {
			return record, nil
		}
	}

	return nil, store.NewFlowError("Run", flowID, store.ErrRunNotFound)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func cloneFlow(flow *models.FlowRecord) *models.FlowRecord {
	cloned := *flow

	if flow.LastRunAt != nil {
		lastRunAt := *flow.LastRunAt
		cloned.LastRunAt = &lastRunAt
	}

	return &cloned
}
