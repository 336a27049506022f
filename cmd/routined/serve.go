package main

import (
	"context"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/executor"
	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/otelhelper"
	"github.com/routinehq/routine/pkg/scheduler"
	"github.com/routinehq/routine/pkg/services"
	"github.com/routinehq/routine/pkg/web"
)

const (
	defaultPort     = 9090
	shutdownTimeout = 10 * time.Second
)

func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the scheduler and the flow API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL (memory://, redis://, postgres://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Scheduler polling interval",
				Value:   scheduler.DefaultPollInterval,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "seed-dir",
				Usage:   "Directory of flow definition files to create at startup if absent",
				Value:   "",
				Sources: cli.EnvVars("SEED_DIR"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP tracing",
				Value:   false,
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("routined")

	logger.InfoContext(ctx, "Initializing Routine daemon")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tracer trace.Tracer

	if command.Bool("tracing") {
		var err error

		tracer, err = otelhelper.NewTracer(ctx, "routined")
		if err != nil {
			return err
		}
	}

	st, err := newStore(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := st.Close(context.Background())
		if err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	bus, err := newEventBus(command.String("event-bus"), logger)
	if err != nil {
		return err
	}

	defer func() {
		err := bus.Close()
		if err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	runner := executor.NewRunner(executor.NewExecutor(), bus, tracer)
	flowService := services.NewFlowService(st, runner, bus)

	if seedDir := command.String("seed-dir"); seedDir != "" {
		err := seedFlows(ctx, logger, flowService, seedDir)
		if err != nil {
			return err
		}
	}

	err = subscribeAuditLog(ctx, bus, logger)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler(st, runner, command.Duration("poll-interval"))

	err = sched.Start(ctx)
	if err != nil {
		return err
	}

	app := web.NewApp(flowService)

	go func() {
		err := app.Listen(":" + strconv.Itoa(command.Int("port")))
		if err != nil {
			logger.Error("API server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = sched.Stop(shutdownCtx)
	if err != nil {
		logger.Error("Failed to stop scheduler", "error", err)
	}

	err = app.ShutdownWithContext(shutdownCtx)
	if err != nil {
		logger.Error("Failed to shut down API server", "error", err)
	}

	return nil
}

// subscribeAuditLog logs every finished run, giving operators a trail even
// when no external bus consumer is attached.
func subscribeAuditLog(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	err := bus.Handle(events.RunFinishedEvent, func(ctx context.Context, event any) error {
		finished, ok := event.(*events.RunFinished)
		if !ok {
			return nil
		}

		logger.InfoContext(ctx, "Run finished",
			"flow_id", finished.FlowID,
			"run_id", finished.RunID,
			"status", finished.Status,
			"trigger", finished.Trigger,
			"duration_ms", finished.DurationMs,
			"steps", finished.Steps)

		return nil
	})
	if err != nil {
		return err
	}

	return bus.Subscribe(ctx)
}
