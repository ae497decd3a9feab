package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type loggerCtxKeyType struct{}

var loggerCtxKey = loggerCtxKeyType{}

// createLogger builds the process logger. The development config is used for
// --debug and for interactive terminals.
func createLogger(development bool, logLevel string) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", logLevel, err)
	}

	var loggerCfg zap.Config
	if development {
		loggerCfg = zap.NewDevelopmentConfig()
	} else {
		loggerCfg = zap.NewProductionConfig()
	}
	loggerCfg.Level = level

	logger, err := loggerCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger.Named("reportd"), nil
}

func withLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

func tryLogger(ctx context.Context) *zap.Logger {
	logger, ok := ctx.Value(loggerCtxKey).(*zap.Logger)
	if !ok {
		return nil
	}
	return logger
}

func getLogger(ctx context.Context) *zap.Logger {
	logger := tryLogger(ctx)
	if logger == nil {
		panic("logger not found in context")
	}
	return logger
}
