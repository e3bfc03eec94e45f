package workflow

import (
	"context"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/logging"
	"lightmapper/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastBatch   *batchstore.Batch
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastBatch := m.lastBatch
	stages := append([]pipelineStage(nil), m.stages...)
	m.mu.RUnlock()

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, StageHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastBatch != nil {
		copy := *lastBatch
		summary.LastBatch = &copy
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) refreshLastBatch(ctx context.Context, id string) {
	batch, err := m.store.Get(ctx, id)
	if err != nil {
		m.logger.Warn("failed to reload batch", logging.String(logging.FieldBatchID, id), logging.Error(err))
		return
	}
	m.mu.Lock()
	m.lastBatch = batch
	m.mu.Unlock()
}
