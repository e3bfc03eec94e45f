package stage

import (
	"context"
	"log/slog"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *Job) error
	Execute(context.Context, *Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept a per-stage logger
// carrying the batch, stage and group fields.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
