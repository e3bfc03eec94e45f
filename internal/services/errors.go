package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lightmapper/internal/batchstore"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrStaleCache    = errors.New("stale render cache")
	ErrUnsupported   = errors.New("unsupported")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a stage error to the batch status the workflow manager
// should persist after the stage fails.
func FailureStatus(err error) batchstore.Status {
	switch {
	case errors.Is(err, context.Canceled):
		return batchstore.StatusCancelled
	default:
		return batchstore.StatusFailed
	}
}

// Hint returns the recovery advice logged alongside a stage failure.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrStaleCache):
		return "invalidate the affected cache entries with 'lightmapper cache invalidate' and re-run the batch"
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return "fix the table description or configuration and re-run the batch"
	case errors.Is(err, ErrExternalTool):
		return "check the external tool path and its output"
	case errors.Is(err, ErrUnsupported):
		return "enable the feature flag or change the bake mode"
	case errors.Is(err, context.Canceled):
		return "re-run the batch; completed renders are reused"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
