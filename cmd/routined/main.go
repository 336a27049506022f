// Package main provides the routined binary: the flow scheduling and
// execution daemon plus one-off run and validate commands.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	// Missing .env is fine; flags and real environment take over.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:                  "routined",
		Usage:                 "Run scheduled flow automations",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewServeCommand(),
			NewRunCommand(),
			NewValidateCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
