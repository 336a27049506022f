// Package store defines the persistence contract for flows and their run
// history.
package store

import (
	"context"

	"github.com/routinehq/routine/pkg/models"
)

// RunHistoryLimit caps the retained run records per flow. AppendRun evicts
// the oldest record once the cap is exceeded.
const RunHistoryLimit = 50

// Store holds flow records and their capped run history. Implementations
// must make AppendRun atomic per flow id: a manual run and a cron run of the
// same flow may complete concurrently, and neither history append may be
// lost (last completed write wins for lastRunAt).
type Store interface {
	// List returns every stored flow.
	List(ctx context.Context) ([]*models.FlowRecord, error)

	// Get returns a flow by id, or ErrFlowNotFound.
	Get(ctx context.Context, id string) (*models.FlowRecord, error)

	// Create stores a new flow, or returns ErrFlowExists when the id is
	// already taken.
	Create(ctx context.Context, flow *models.FlowRecord) error

	// Update replaces a stored flow, or returns ErrFlowNotFound.
	Update(ctx context.Context, flow *models.FlowRecord) error

	// Delete removes a flow and cascades to its run history.
	Delete(ctx context.Context, id string) error

	// AppendRun atomically prepends a run record to the flow's history,
	// trims the history to RunHistoryLimit, and sets the flow's lastRunAt
	// to the record's finishedAt. Returns ErrFlowNotFound when the flow no
	// longer exists.
	AppendRun(ctx context.Context, record *models.RunRecord) error

	// Runs returns a flow's run history, most recent first.
	Runs(ctx context.Context, flowID string) ([]*models.RunRecord, error)

	// Run returns one run record, or ErrRunNotFound.
	Run(ctx context.Context, flowID, runID string) (*models.RunRecord, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
