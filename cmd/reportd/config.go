package main

import (
	"context"
	"fmt"
	"os"
	"time"

	v1 "github.com/infracollect/reportd/apis/v1"
	"github.com/infracollect/reportd/internal/config"
	"github.com/infracollect/reportd/internal/reports"
	"github.com/infracollect/reportd/internal/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func newReportsDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "reports-dir",
		Usage: "Reports directory, overrides reports.directory",
	}
}

// readConfigFile returns the configuration file contents, or nil when no
// file was given so defaults apply.
func readConfigFile(filename string) ([]byte, error) {
	if filename == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	return data, nil
}

// loadConfig reads, expands and validates the configuration, then applies
// command line overrides.
func loadConfig(ctx context.Context, command *cli.Command) (v1.ServerConfig, error) {
	logger := getLogger(ctx)

	filename := command.String("config")
	data, err := readConfigFile(filename)
	if err != nil {
		return v1.ServerConfig{}, err
	}

	cfg, err := config.Load(data, command.StringSlice("allowed-env"))
	if err != nil {
		return v1.ServerConfig{}, formatValidationError(err)
	}

	if command.IsSet("reports-dir") {
		cfg.Reports.Directory = command.String("reports-dir")
	}
	if command.IsSet("listen") {
		cfg.Listen = command.String("listen")
	}

	if err := config.Validate(cfg); err != nil {
		return v1.ServerConfig{}, formatValidationError(err)
	}

	logger.Debug("configuration loaded",
		zap.String("config", filename),
		zap.String("reports_directory", cfg.Reports.Directory),
	)

	return cfg, nil
}

func newStore(logger *zap.Logger, cfg v1.ServerConfig) (*reports.Store, error) {
	store, err := reports.New(logger.Named("reports"), reports.Config{
		Directory:        cfg.Reports.Directory,
		Extensions:       cfg.Reports.Extensions,
		ArchiveName:      cfg.Archive.Name,
		ArchiveFormat:    cfg.Archive.Format,
		CompressionLevel: cfg.Archive.CompressionLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reports store: %w", err)
	}
	return store, nil
}

func serverConfig(cfg v1.ServerConfig) server.Config {
	maxConcurrent := v1.DefaultMaxConcurrent
	if cfg.Archive.MaxConcurrent != nil {
		maxConcurrent = *cfg.Archive.MaxConcurrent
	}

	return server.Config{
		Listen:                cfg.Listen,
		BasePath:              cfg.BasePath,
		MaxConcurrentArchives: maxConcurrent,
		ReadHeaderTimeout:     time.Duration(cfg.HTTP.ReadHeaderTimeout) * time.Second,
		IdleTimeout:           time.Duration(cfg.HTTP.IdleTimeout) * time.Second,
		ShutdownTimeout:       time.Duration(cfg.HTTP.ShutdownTimeout) * time.Second,
	}
}
