package main

import (
	"context"
	"fmt"

	"github.com/infracollect/reportd/internal/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func newServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve reports over HTTP until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address, overrides listen",
			},
			newReportsDirFlag(),
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := getLogger(ctx)

			cfg, err := loadConfig(ctx, command)
			if err != nil {
				return err
			}

			store, err := newStore(logger, cfg)
			if err != nil {
				return err
			}

			logger.Info("serving reports",
				zap.String("directory", store.Directory()),
				zap.String("listen", cfg.Listen),
				zap.String("base_path", cfg.BasePath),
				zap.String("archive_format", cfg.Archive.Format),
			)

			srv := server.New(logger.Named("server"), store, serverConfig(cfg))
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("failed to run server: %w", err)
			}

			return nil
		},
	}
}
