package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"lightmapper/internal/logging"
	"lightmapper/internal/services"
)


// failBatch records the terminal status of a failed batch. Stage failures
// are already logged by the stage executor; failures outside a stage are
// logged here.
func (m *Manager) failBatch(ctx context.Context, logger *slog.Logger, batchID, stageName string, batchErr error) error {
	status := services.FailureStatus(batchErr)
	message := strings.TrimSpace(batchErr.Error())
	persistCtx := context.WithoutCancel(ctx)
	if err := m.store.SetStatus(persistCtx, batchID, status, stageName, message); err != nil {
		logger.Error("failed to persist batch failure", logging.Error(err))
	}
	m.setLastError(batchErr)
	m.refreshLastBatch(persistCtx, batchID)

	switch {
	case errors.Is(batchErr, context.Canceled):
		logger.Info("batch cancelled",
			logging.String(logging.FieldEventType, "batch_cancelled"),
			logging.String(logging.FieldStage, stageName),
		)
	case stageName == "":
		logging.ErrorWithContext(logger, "batch rejected", "batch_failure",
			logging.String("resolved_status", string(status)),
			logging.String("error_message", message),
			logging.String(logging.FieldErrorHint, services.Hint(batchErr)),
			logging.Error(batchErr),
		)
	default:
		logger.Info("batch stopped",
			logging.String(logging.FieldEventType, "batch_stopped"),
			logging.String(logging.FieldStage, stageName),
			logging.String("resolved_status", string(status)),
		)
	}
	return batchErr
}
