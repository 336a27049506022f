// Package postgres provides a PostgreSQL-backed store. Flow and run records
// are persisted as JSONB documents; the per-flow atomicity of AppendRun
// rides on a row lock.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/store"
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects to the database, runs migrations, and returns the store.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:     database,
		logger: logger,
	}, nil
}

func (s *Store) List(ctx context.Context) ([]*models.FlowRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM flows")
	if err != nil {
		return nil, store.NewFlowError("List", "", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	flows := make([]*models.FlowRecord, 0)

	for rows.Next() {
		var data []byte

		err := rows.Scan(&data)
		if err != nil {
			return nil, store.NewFlowError("List", "", err)
		}

		var flow models.FlowRecord

		err = json.Unmarshal(data, &flow)
		if err != nil {
			return nil, store.NewFlowError("List", "", err)
		}

		flows = append(flows, &flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, store.NewFlowError("List", "", err)
	}

	return flows, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.FlowRecord, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx, "SELECT data FROM flows WHERE id = $1", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NewFlowError("Get", id, store.ErrFlowNotFound)
	}

	if err != nil {
		return nil, store.NewFlowError("Get", id, err)
	}

	var flow models.FlowRecord

	err = json.Unmarshal(data, &flow)
	if err != nil {
		return nil, store.NewFlowError("Get", id, err)
	}

	return &flow, nil
}

func (s *Store) Create(ctx context.Context, flow *models.FlowRecord) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return store.NewFlowError("Create", flow.ID, err)
	}

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO flows (id, data) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		flow.ID, data)
	if err != nil {
		return store.NewFlowError("Create", flow.ID, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return store.NewFlowError("Create", flow.ID, err)
	}

	if inserted == 0 {
		return store.NewFlowError("Create", flow.ID, store.ErrFlowExists)
	}

	return nil
}

func (s *Store) Update(ctx context.Context, flow *models.FlowRecord) error {
	err := s.withFlowLock(ctx, "Update", flow.ID, func(tx *sql.Tx, current *models.FlowRecord) error {
		updated := *flow
		updated.LastRunAt = current.LastRunAt

		data, err := json.Marshal(&updated)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE flows SET data = $2 WHERE id = $1", flow.ID, data)

		return err
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	// Run history goes with the flow via ON DELETE CASCADE.
	result, err := s.db.ExecContext(ctx, "DELETE FROM flows WHERE id = $1", id)
	if err != nil {
		return store.NewFlowError("Delete", id, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return store.NewFlowError("Delete", id, err)
	}

	if deleted == 0 {
		return store.NewFlowError("Delete", id, store.ErrFlowNotFound)
	}

	return nil
}

func (s *Store) AppendRun(ctx context.Context, record *models.RunRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return store.NewFlowError("AppendRun", record.FlowID, err)
	}

	return s.withFlowLock(ctx, "AppendRun", record.FlowID, func(tx *sql.Tx, flow *models.FlowRecord) error {
		finishedAt := record.FinishedAt
		flow.LastRunAt = &finishedAt

		flowData, err := json.Marshal(flow)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE flows SET data = $2, last_run_at = $3 WHERE id = $1",
			record.FlowID, flowData, record.FinishedAt)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO flow_runs (id, flow_id, data, finished_at) VALUES ($1, $2, $3, $4)",
			record.ID, record.FlowID, data, record.FinishedAt)
		if err != nil {
			return err
		}

		// Evict everything beyond the newest RunHistoryLimit records.
		_, err = tx.ExecContext(ctx, `
			DELETE FROM flow_runs
			WHERE flow_id = $1
			  AND id NOT IN (
				SELECT id FROM flow_runs
				WHERE flow_id = $1
				ORDER BY finished_at DESC
				LIMIT $2
			  )`,
			record.FlowID, store.RunHistoryLimit)

		return err
	})
}

func (s *Store) Runs(ctx context.Context, flowID string) ([]*models.RunRecord, error) {
	_, err := s.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM flow_runs
		WHERE flow_id = $1
		ORDER BY finished_at DESC
		LIMIT $2`,
		flowID, store.RunHistoryLimit)
	if err != nil {
		return nil, store.NewFlowError("Runs", flowID, err)
	}

	defer func() {
		_ = rows.Close()
	}()

	runs := make([]*models.RunRecord, 0)

	for rows.Next() {
		var data []byte

		err := rows.Scan(&data)
		if err != nil {
			return nil, store.NewFlowError("Runs", flowID, err)
		}

		var record models.RunRecord

		err = json.Unmarshal(data, &record)
		if err != nil {
			return nil, store.NewFlowError("Runs", flowID, err)
		}

		runs = append(runs, &record)
	}

	err = rows.Err()
	if err != nil {
		return nil, store.NewFlowError("Runs", flowID, err)
	}

	return runs, nil
}

func (s *Store) Run(ctx context.Context, flowID, runID string) (*models.RunRecord, error) {
	var data []byte

	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM flow_runs WHERE flow_id = $1 AND id = $2",
		flowID, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		_, flowErr := s.Get(ctx, flowID)
		if flowErr != nil {
			return nil, flowErr
		}

		return nil, store.NewFlowError("Run", flowID, store.ErrRunNotFound)
	}

	if err != nil {
		return nil, store.NewFlowError("Run", flowID, err)
	}

	var record models.RunRecord

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, store.NewFlowError("Run", flowID, err)
	}

	return &record, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// withFlowLock runs fn inside a transaction holding the flow's row lock,
// serializing read-modify-write cycles per flow id.
func (s *Store) withFlowLock(ctx context.Context, op, flowID string, fn func(tx *sql.Tx, flow *models.FlowRecord) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.NewFlowError(op, flowID, err)
	}

	var data []byte

	err = tx.QueryRowContext(ctx, "SELECT data FROM flows WHERE id = $1 FOR UPDATE", flowID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()

		return store.NewFlowError(op, flowID, store.ErrFlowNotFound)
	}

	if err != nil {
		_ = tx.Rollback()

		return store.NewFlowError(op, flowID, err)
	}

	var flow models.FlowRecord

	err = json.Unmarshal(data, &flow)
	if err != nil {
		_ = tx.Rollback()

		return store.NewFlowError(op, flowID, err)
	}

	err = fn(tx, &flow)
	if err != nil {
		_ = tx.Rollback()

		return store.NewFlowError(op, flowID, err)
	}

	err = tx.Commit()
	if err != nil {
		return store.NewFlowError(op, flowID, err)
	}

	return nil
}
