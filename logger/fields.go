package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across legisync.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldJob    = "job"
	FieldRunID  = "run_id"
	FieldPeriod = "period"
	FieldEntity = "entity"

	// Components
	FieldComponent = "component"
	FieldBackend   = "backend"

	// Pipeline
	FieldStage       = "stage"
	FieldState       = "state"
	FieldDestination = "destination"
	FieldDryRun      = "dry_run"

	// Requests
	FieldMethod      = "method"
	FieldURL         = "url"
	FieldPath        = "path"
	FieldStatus      = "status"
	FieldPage        = "page"
	FieldAttempt     = "attempt"
	FieldMaxAttempts = "max_attempts"
	FieldLabel       = "label"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount     = "count"
	FieldBatchSize = "batch_size"
	FieldChunk     = "chunk"
	FieldTotal     = "total"
	FieldSucceeded = "succeeded"
	FieldFailed    = "failed"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	client := upstream.New(cfg, logger.ComponentLogger("upstream"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
//
// Example:
//
//	jobLogger := logger.ChildLogger(baseLogger, logger.FieldJob, "deputados")
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
