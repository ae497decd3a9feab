package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var loggerDeferFunc func() error

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "reportd",
		Usage: "Serve and export generated report files",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable development logging",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log Level (debug, info, warn, error, fatal)",
				Action: func(ctx context.Context, command *cli.Command, s string) error {
					if _, err := zapcore.ParseLevel(s); err != nil {
						return fmt.Errorf("invalid log level %s: %w", s, err)
					}
					return nil
				},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("REPORTD_CONFIG"),
			},
			&cli.StringSliceFlag{
				Name:  "allowed-env",
				Usage: "Environment variables allowed in the configuration (can be repeated)",
			},
		},
		Commands: []*cli.Command{
			newServeCommand(),
			newListCommand(),
			newExportCommand(),
			newValidateCommand(),
			newVersionCommand(),
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			interactive := isInteractiveEnvironment()

			logger, err := createLogger(command.Bool("debug") || interactive, command.String("log-level"))
			if err != nil {
				return nil, err
			}

			logger.Debug("logger created", zap.String("log_level", command.String("log-level")))

			loggerDeferFunc = func() error {
				return logger.Sync()
			}

			return withInteractive(withLogger(ctx, logger), interactive), nil
		},
		ExitErrHandler: func(ctx context.Context, command *cli.Command, err error) {
			if err == nil {
				return
			}

			if logger := tryLogger(ctx); logger != nil {
				logger.Fatal("failed to run application", zap.Error(err))
			} else {
				log.Fatal(fmt.Errorf("failed to run application: %w", err))
			}
		},
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	defer func() {
		if loggerDeferFunc != nil {
			_ = loggerDeferFunc()
		}
	}()

	_ = newApp().Run(ctx, os.Args)
}
