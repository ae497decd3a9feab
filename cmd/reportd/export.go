package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/infracollect/reportd/internal/export"
	"github.com/infracollect/reportd/internal/export/archivers"
	"github.com/infracollect/reportd/internal/export/sinks"
	"github.com/infracollect/reportd/internal/reports"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func newExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export every report as one archive, or one by one, to a folder, S3 or stdout",
		Flags: []cli.Flag{
			newReportsDirFlag(),
			&cli.StringFlag{
				Name:  "format",
				Usage: fmt.Sprintf("Archive format %v, overrides archive.format", archivers.Formats()),
				Action: func(ctx context.Context, command *cli.Command, s string) error {
					if !archivers.IsSupported(s) {
						return fmt.Errorf("unsupported archive format %q (available: %v)", s, archivers.Formats())
					}
					return nil
				},
			},
			&cli.BoolFlag{
				Name:  "unarchived",
				Usage: "Write each report as its own object instead of one archive",
			},
			&cli.StringFlag{
				Name:  "folder",
				Usage: "Write to this local folder",
			},
			&cli.BoolFlag{
				Name:  "stdout",
				Usage: "Write the archive to stdout",
			},
			&cli.StringFlag{
				Name:  "s3-bucket",
				Usage: "Write to this S3 bucket",
			},
			&cli.StringFlag{
				Name:  "s3-prefix",
				Usage: "Key prefix inside the S3 bucket",
			},
			&cli.StringFlag{
				Name:    "s3-region",
				Usage:   "S3 region",
				Sources: cli.EnvVars("AWS_REGION"),
			},
			&cli.StringFlag{
				Name:  "s3-endpoint",
				Usage: "Custom S3 endpoint, e.g. for MinIO",
			},
			&cli.BoolFlag{
				Name:  "s3-path-style",
				Usage: "Address the bucket in the URL path, as MinIO expects",
			},
			&cli.Int64Flag{
				Name:  "s3-part-size",
				Usage: "Multipart upload chunk size in bytes, at least 5 MiB",
			},
			&cli.StringFlag{
				Name:    "s3-access-key-id",
				Usage:   "Static S3 access key id",
				Sources: cli.EnvVars("REPORTD_S3_ACCESS_KEY_ID"),
			},
			&cli.StringFlag{
				Name:    "s3-secret-access-key",
				Usage:   "Static S3 secret access key",
				Sources: cli.EnvVars("REPORTD_S3_SECRET_ACCESS_KEY"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := getLogger(ctx)

			cfg, err := loadConfig(ctx, command)
			if err != nil {
				return err
			}

			opts := exportOptions{
				format:     cfg.Archive.Format,
				level:      cfg.Archive.CompressionLevel,
				name:       fmt.Sprintf("%s-%s", cfg.Archive.Name, time.Now().UTC().Format(export.ISO8601Basic)),
				unarchived: command.Bool("unarchived"),
			}
			if command.IsSet("format") {
				opts.format = command.String("format")
			}

			store, err := newStore(logger, cfg)
			if err != nil {
				return err
			}

			inner, err := buildInnerSink(ctx, command, opts)
			if err != nil {
				return err
			}

			n, err := exportReports(ctx, logger, store, inner, opts)
			if err != nil {
				return err
			}

			logger.Info("reports exported", zap.Int("reports", n), zap.String("sink", inner.Name()))
			return nil
		},
	}
}

type exportOptions struct {
	format     string
	level      int
	name       string
	unarchived bool
}

// buildInnerSink creates the destination sink (filesystem, S3 or stdout).
func buildInnerSink(ctx context.Context, command *cli.Command, opts exportOptions) (export.Sink, error) {
	selected := 0
	for _, name := range []string{"folder", "stdout", "s3-bucket"} {
		if command.IsSet(name) {
			selected++
		}
	}
	if selected != 1 {
		return nil, fmt.Errorf("exactly one of --folder, --stdout or --s3-bucket is required")
	}

	switch {
	case command.Bool("stdout"):
		if opts.unarchived {
			return nil, fmt.Errorf("stdout sink cannot be used with --unarchived")
		}
		if isTerminal(os.Stdout) {
			return nil, fmt.Errorf("refusing to write an archive to a terminal, redirect stdout")
		}
		return sinks.NewStreamSink(os.Stdout), nil

	case command.IsSet("folder"):
		folder := command.String("folder")
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create folder %s: %w", folder, err)
		}
		return sinks.NewFilesystemSinkFromPath(folder)

	default:
		sink, err := sinks.NewS3Sink(ctx, getLogger(ctx).Named("s3"), sinks.S3Config{
			Bucket:          command.String("s3-bucket"),
			Region:          command.String("s3-region"),
			Endpoint:        command.String("s3-endpoint"),
			Prefix:          command.String("s3-prefix"),
			AccessKeyID:     command.String("s3-access-key-id"),
			SecretAccessKey: command.String("s3-secret-access-key"),
			ForcePathStyle:  command.Bool("s3-path-style"),
			PartSize:        command.Int64("s3-part-size"),
		})
		if err != nil {
			return nil, err
		}
		return sink, nil
	}
}

// exportReports copies every report to inner, wrapped in an archive unless
// opts.unarchived is set. inner is always closed. The directory is listed
// once, by CopyTo; an empty directory aborts the archive so nothing is left
// behind on inner.
func exportReports(ctx context.Context, logger *zap.Logger, store *reports.Store, inner export.Sink, opts exportOptions) (int, error) {
	if opts.unarchived {
		n, err := store.CopyTo(ctx, inner)
		return n, errors.Join(err, inner.Close(ctx))
	}

	archive, err := sinks.NewArchiveSink(ctx, inner, opts.format, opts.level, opts.name)
	if err != nil {
		return 0, errors.Join(fmt.Errorf("failed to create archive sink: %w", err), inner.Close(ctx))
	}

	logger.Debug("exporting reports archive", zap.String("archive", archive.ArchiveName()), zap.String("sink", inner.Name()))

	n, err := store.CopyTo(ctx, archive)
	if err != nil {
		return n, archive.Abort(ctx, err)
	}

	if err := archive.Close(ctx); err != nil {
		return n, fmt.Errorf("failed to write archive %s: %w", archive.ArchiveName(), err)
	}

	return n, nil
}
