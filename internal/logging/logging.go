// Package logging configures structured logging for the orchestrator
// process and carries run-scoped fields on context.Context.
package logging

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	runIDKey contextKey = "run-id"
	stageKey contextKey = "stage"
)

// New builds a SugaredLogger configured for env. An empty env reads
// APP_ENV; anything other than "development"/"dev" gets the production
// JSON encoder.
func New(env string) (*zap.SugaredLogger, error) {
	if env == "" {
		env = os.Getenv("APP_ENV")
	}

	var config zap.Config
	switch env {
	case "development", "dev":
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	default:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		config.EncoderConfig.CallerKey = "caller"
		config.EncoderConfig.LevelKey = "level"
		config.EncoderConfig.MessageKey = "message"
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// WithRunID injects an OrchestrationRun id into ctx for correlating every
// log line emitted during one run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// ExtractRunID retrieves the run id injected by WithRunID, or "".
func ExtractRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithStage injects the current pipeline stage name into ctx.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// ExtractStage retrieves the stage injected by WithStage, or "".
func ExtractStage(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey).(string); ok {
		return s
	}
	return ""
}

// FromContext returns a SugaredLogger with run_id/stage fields attached if
// present on ctx.
func FromContext(ctx context.Context, log *zap.SugaredLogger) *zap.SugaredLogger {
	if runID := ExtractRunID(ctx); runID != "" {
		log = log.With("run_id", runID)
	}
	if stage := ExtractStage(ctx); stage != "" {
		log = log.With("stage", stage)
	}
	return log
}
