package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/routinehq/routine/pkg/log"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/services"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate flow definition files without storing them",
		ArgsUsage: "<file> [<file>...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runValidate,
	}
}

func runValidate(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	paths := command.Args().Slice()
	if len(paths) == 0 {
		return cli.Exit("at least one flow file is required", 1)
	}

	failures := 0

	for _, path := range paths {
		err := validateFlowFile(path)
		if err != nil {
			failures++

			fmt.Printf("FAIL %s: %v\n", path, err)

			continue
		}

		fmt.Printf("OK   %s\n", path)
	}

	if failures > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files invalid", failures, len(paths)), 1)
	}

	return nil
}

func validateFlowFile(path string) error {
	doc, err := readFlowDocument(path)
	if err != nil {
		return err
	}

	err = models.ValidateFlowDocument(doc)
	if err != nil {
		return err
	}

	var req services.CreateFlowRequest

	err = json.Unmarshal(doc, &req)
	if err != nil {
		return err
	}

	definition := models.FlowDefinition{
		Name:     req.Name,
		Schedule: req.Schedule,
		Enabled:  req.Enabled == nil || *req.Enabled,
		Steps:    req.Steps,
	}

	return definition.Validate()
}
