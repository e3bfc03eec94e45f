package workflow

import (
	"context"
	"fmt"

	"lightmapper/internal/stage"
	"lightmapper/internal/stageexec"
)

func (m *Manager) runStage(ctx context.Context, stg pipelineStage, job *stage.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.store.SetStatus(ctx, job.Batch.ID, stg.status, stg.name, ""); err != nil {
		return fmt.Errorf("persist batch status: %w", err)
	}
	return stageexec.Run(ctx, stageexec.Options{
		Logger:    m.logger,
		Store:     m.store,
		Handler:   stg.handler,
		StageName: stg.name,
		Job:       job,
	})
}
