package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/logging"
	"lightmapper/internal/services"
	"lightmapper/internal/stage"
)

// Options controls one stage run.
type Options struct {
	Logger    *slog.Logger
	Store     *batchstore.Store
	Handler   stage.Handler
	StageName string
	Job       *stage.Job
}

// Run executes one stage for one job. The run is recorded in the batch
// store with the counters the handler collected, and logged as
// stage_start/stage_complete (or stage_failure) under a fresh request id.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("batch store is required")
	}
	if opts.Job == nil || opts.Job.Batch == nil {
		return fmt.Errorf("stage job is required")
	}

	requestID := uuid.NewString()
	stageCtx := WithStageContext(ctx, opts.StageName, opts.Job, requestID)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	runID, err := opts.Store.StartStage(stageCtx, opts.Job.Batch.ID, opts.Job.Group.Name, opts.StageName, requestID)
	if err != nil {
		return fmt.Errorf("persist stage start: %w", err)
	}
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", DeriveStageLabel(opts.StageName)),
		logging.Int("members", len(opts.Job.Members)),
	)
	opts.Job.TakeCounters()

	if err := opts.Handler.Prepare(stageCtx, opts.Job); err != nil {
		return handleFailure(stageCtx, stageLogger, opts.Store, runID, opts.Job, err)
	}
	if err := opts.Handler.Execute(stageCtx, opts.Job); err != nil {
		return handleFailure(stageCtx, stageLogger, opts.Store, runID, opts.Job, err)
	}

	counters := opts.Job.TakeCounters()
	if err := opts.Store.FinishStage(stageCtx, runID, batchstore.StatusCompleted, counters, ""); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(stageStart)),
	}
	for _, k := range slices.Sorted(maps.Keys(counters)) {
		attrs = append(attrs, logging.Int(k, counters[k]))
	}
	stageLogger.Info("stage completed", logging.Args(attrs...)...)
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, store *batchstore.Store, runID int64, job *stage.Job, stageErr error) error {
	status := services.FailureStatus(stageErr)
	message := strings.TrimSpace(stageErr.Error())
	// the run row must be closed even when ctx was cancelled
	persistCtx := context.WithoutCancel(ctx)
	if err := store.FinishStage(persistCtx, runID, status, job.TakeCounters(), message); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	if errors.Is(stageErr, context.Canceled) {
		logger.Debug("stage interrupted", logging.String("resolved_status", string(status)))
		return stageErr
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("resolved_status", string(status)),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorHint, services.Hint(stageErr)),
		logging.String(logging.FieldAlert, "stage_failure"),
		logging.Error(stageErr),
	)
	return stageErr
}

// WithStageContext tags ctx with the stage, bake group and request id of
// one stage run.
func WithStageContext(ctx context.Context, stageName string, job *stage.Job, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if job != nil && job.Batch != nil && job.Batch.ID != "" {
		ctx = services.WithBatchID(ctx, job.Batch.ID)
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if job != nil && job.Group.Name != "" {
		ctx = services.WithBakeGroup(ctx, job.Group.Name)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

// DeriveStageLabel turns a stage or status name into a display label,
// e.g. "uv_pack" gives "Uv Pack".
func DeriveStageLabel(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
