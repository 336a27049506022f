package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/routinehq/routine/pkg/executor"
	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/services"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a single flow immediately and print the run record",
		ArgsUsage: "<flow-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL (memory://, redis://, postgres://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runOnce,
	}
}

func runOnce(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	id := command.Args().First()
	if id == "" {
		return cli.Exit("flow id is required", 1)
	}

	logger := log.WithModule("routined")

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

	runner := executor.NewRunner(executor.NewExecutor(), nil, nil)
	flowService := services.NewFlowService(st, runner, nil)

	record, err := flowService.Execute(ctx, id, models.TriggerManual)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	if record.Status == models.RunFailure {
		return cli.Exit("", 1)
	}

	return nil
}
