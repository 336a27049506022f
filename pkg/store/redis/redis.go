// Package redis provides a Redis-backed store: flows in a hash, run history
// in capped per-flow lists.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/store"
)

const (
	flowsKey      = "routine:flows"
	runsKeyPrefix = "routine:runs:"

	// appendRunAttempts bounds the optimistic WATCH retry loop when a
	// concurrent run completion touches the same flow.
	appendRunAttempts = 5
)

type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore connects to the Redis instance named by URL
// (redis://host:port/db).
func NewStore(ctx context.Context, logger *slog.Logger, url string) (*Store, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Store{
		client: client,
		logger: logger,
	}, nil
}

func runsKey(flowID string) string {
	return runsKeyPrefix + flowID
}

func (s *Store) List(ctx context.Context) ([]*models.FlowRecord, error) {
	entries, err := s.client.HGetAll(ctx, flowsKey).Result()
	if err != nil {
		return nil, store.NewFlowError("List", "", err)
	}

	flows := make([]*models.FlowRecord, 0, len(entries))

	for id, entry := range entries {
		var flow models.FlowRecord

		err := json.Unmarshal([]byte(entry), &flow)
		if err != nil {
			return nil, store.NewFlowError("List", id, err)
		}

		flows = append(flows, &flow)
	}

	return flows, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.FlowRecord, error) {
	entry, err := s.client.HGet(ctx, flowsKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.NewFlowError("Get", id, store.ErrFlowNotFound)
	}

	if err != nil {
		return nil, store.NewFlowError("Get", id, err)
	}

	var flow models.FlowRecord

	err = json.Unmarshal([]byte(entry), &flow)
	if err != nil {
		return nil, store.NewFlowError("Get", id, err)
	}

	return &flow, nil
}

func (s *Store) Create(ctx context.Context, flow *models.FlowRecord) error {
	entry, err := json.Marshal(flow)
	if err != nil {
		return store.NewFlowError("Create", flow.ID, err)
	}

	created, err := s.client.HSetNX(ctx, flowsKey, flow.ID, entry).Result()
	if err != nil {
		return store.NewFlowError("Create", flow.ID, err)
	}

	if !created {
		return store.NewFlowError("Create", flow.ID, store.ErrFlowExists)
	}

	return nil
}

func (s *Store) Update(ctx context.Context, flow *models.FlowRecord) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.flowInTx(tx, ctx, flow.ID)
		if err != nil {
			return err
		}

		updated := *flow
		updated.LastRunAt = current.LastRunAt

		entry, err := json.Marshal(&updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, flowsKey, flow.ID, entry)

			return nil
		})

		return err
	}, flowsKey)
	if err != nil {
		return store.NewFlowError("Update", flow.ID, err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	exists, err := s.client.HExists(ctx, flowsKey, id).Result()
	if err != nil {
		return store.NewFlowError("Delete", id, err)
	}

	if !exists {
		return store.NewFlowError("Delete", id, store.ErrFlowNotFound)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, flowsKey, id)
		pipe.Del(ctx, runsKey(id))

		return nil
	})
	if err != nil {
		return store.NewFlowError("Delete", id, err)
	}

	return nil
}

// AppendRun pushes the record onto the flow's history list, trims the list
// to the history cap, and rewrites the flow's lastRunAt, all inside one
// WATCH-guarded transaction so a concurrent append never loses a write.
func (s *Store) AppendRun(ctx context.Context, record *models.RunRecord) error {
	entry, err := json.Marshal(record)
	if err != nil {
		return store.NewFlowError("AppendRun", record.FlowID, err)
	}

	for attempt := 0; attempt < appendRunAttempts; attempt++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			flow, err := s.flowInTx(tx, ctx, record.FlowID)
			if err != nil {
				return err
			}

			finishedAt := record.FinishedAt
			flow.LastRunAt = &finishedAt

			flowEntry, err := json.Marshal(flow)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, flowsKey, record.FlowID, flowEntry)
				pipe.LPush(ctx, runsKey(record.FlowID), entry)
				pipe.LTrim(ctx, runsKey(record.FlowID), 0, store.RunHistoryLimit-1)

				return nil
			})

			return err
		}, flowsKey)

		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	if err != nil {
		return store.NewFlowError("AppendRun", record.FlowID, err)
	}

	return nil
}

func (s *Store) Runs(ctx context.Context, flowID string) ([]*models.RunRecord, error) {
	exists, err := s.client.HExists(ctx, flowsKey, flowID).Result()
	if err != nil {
		return nil, store.NewFlowError("Runs", flowID, err)
	}

	if !exists {
		return nil, store.NewFlowError("Runs", flowID, store.ErrFlowNotFound)
	}

	entries, err := s.client.LRange(ctx, runsKey(flowID), 0, store.RunHistoryLimit-1).Result()
	if err != nil {
		return nil, store.NewFlowError("Runs", flowID, err)
	}

	runs := make([]*models.RunRecord, 0, len(entries))

	for _, entry := range entries {
		var record models.RunRecord

		err := json.Unmarshal([]byte(entry), &record)
		if err != nil {
			return nil, store.NewFlowError("Runs", flowID, err)
		}

		runs = append(runs, &record)
	}

	return runs, nil
}

func (s *Store) Run(ctx context.Context, flowID, runID string) (*models.RunRecord, error) {
	runs, err := s.Runs(ctx, flowID)
	if err != nil {
		return nil, err
	}

	for _, record := range runs {
		if record.ID == runID {
			return record, nil
		}
	}

	return nil, store.NewFlowError("Run", flowID, store.ErrRunNotFound)
}

func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close()
}

func (s *Store) flowInTx(tx *redis.Tx, ctx context.Context, id string) (*models.FlowRecord, error) {
	entry, err := tx.HGet(ctx, flowsKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrFlowNotFound
	}

	if err != nil {
		return nil, err
	}

	var flow models.FlowRecord

	err = json.Unmarshal([]byte(entry), &flow)
	if err != nil {
		return nil, err
	}

	return &flow, nil
}
