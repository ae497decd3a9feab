package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print the available reports, one per line",
		Flags: []cli.Flag{
			newReportsDirFlag(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(ctx, command)
			if err != nil {
				return err
			}

			store, err := newStore(getLogger(ctx), cfg)
			if err != nil {
				return err
			}

			names, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}

			for _, name := range names {
				fmt.Fprintln(command.Root().Writer, name)
			}

			return nil
		},
	}
}
