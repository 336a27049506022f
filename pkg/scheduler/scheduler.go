// Package scheduler polls the store on a fixed interval and executes every
// enabled flow whose schedule is due.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/routinehq/routine/pkg/executor"
	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/schedule"
	"github.com/routinehq/routine/pkg/store"
)

// DefaultPollInterval is the tick cadence when none is configured.
const DefaultPollInterval = 30 * time.Second

// Scheduler drives the tick cadence. A sweep still running when the next
// interval elapses causes that tick to be skipped whole — never queued,
// never run concurrently — so one slow flow cannot stack sweeps, and no
// flow fires twice within one polling interval from the schedule path.
type Scheduler struct {
	store    store.Store
	runner   *executor.Runner
	interval time.Duration
	logger   *slog.Logger

	ticker  *time.Ticker
	done    chan struct{}
	started bool
	mu      sync.RWMutex

	// ticking is the Idle/Ticking guard; tick entry is a CAS on it.
	ticking atomic.Bool
}

func NewScheduler(st store.Store, runner *executor.Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Scheduler{
		store:    st,
		runner:   runner,
		interval: interval,
		logger:   log.WithModule("scheduler"),
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Starting scheduler", "interval", s.interval)

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	s.started = true

	go s.poll(ctx)

	return nil
}

// Stop shuts the polling loop down. An in-flight sweep finishes on its own;
// no new tick starts.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping scheduler")

	s.ticker.Stop()
	close(s.done)
	s.started = false

	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one sweep: list all flows, execute the due ones concurrently,
// persist every run. One flow's failure never aborts the sweep for others.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.logger.WarnContext(ctx, "Previous sweep still running, skipping tick")

		return
	}

	defer s.ticking.Store(false)

	now := time.Now().UTC()

	flows, err := s.store.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list flows", "error", err)

		return
	}

	var wg sync.WaitGroup

	for _, flow := range flows {
		if !flow.Enabled {
			continue
		}

		if !schedule.IsDue(flow.Schedule, flow.LastRunAt, now) {
			continue
		}

		wg.Add(1)

		go func(flow *models.FlowRecord) {
			defer wg.Done()

			s.runFlow(ctx, flow)
		}(flow)
	}

	wg.Wait()
}

func (s *Scheduler) runFlow(ctx context.Context, flow *models.FlowRecord) {
	record := s.runner.RunNow(ctx, flow, models.TriggerCron)

	err := s.store.AppendRun(ctx, record)
	if err != nil {
		if store.IsFlowNotFound(err) {
			s.logger.InfoContext(ctx, "Flow deleted during run, dropping history",
				"flow_id", flow.ID,
				"run_id", record.ID)

			return
		}

		s.logger.ErrorContext(ctx, "Failed to append run record",
			"flow_id", flow.ID,
			"run_id", record.ID,
			"error", err)
	}
}
