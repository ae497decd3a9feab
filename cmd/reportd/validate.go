package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func newValidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate the configuration file",
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := getLogger(ctx)

			filename := command.String("config")
			if filename == "" {
				return fmt.Errorf("no config file provided, use --config")
			}

			logger.Debug("validating config file", zap.String("config", filename))

			cfg, err := loadConfig(ctx, command)
			if err != nil {
				fmt.Fprintln(command.Root().Writer, err)
				return fmt.Errorf("config file '%s' is invalid", filename)
			}

			mark := ""
			if isInteractive(ctx) {
				mark = "✓ "
			}
			fmt.Fprintf(command.Root().Writer, "%sConfig file '%s' is valid (reports: %s, archive: %s)\n",
				mark, filename, cfg.Reports.Directory, cfg.Archive.Format)
			return nil
		},
	}
}

// formatValidationError turns validator errors into a readable summary and
// returns any other error unchanged.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "config has %d validation error(s):", len(validationErrs))
	for _, fe := range validationErrs {
		fmt.Fprintf(&sb, "\n  • %s: failed '%s' validation", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			fmt.Fprintf(&sb, " (param: %s)", fe.Param())
		}
	}
	return errors.New(sb.String())
}
