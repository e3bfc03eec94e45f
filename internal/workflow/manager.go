package workflow

import (
	"log/slog"
	"sync"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/config"
	"lightmapper/internal/logging"
	"lightmapper/internal/stage"
)

// Manager runs bake batches using registered stage handlers.
type Manager struct {
	cfg    *config.Config
	store  *batchstore.Store
	logger *slog.Logger
	stages []pipelineStage

	mu        sync.RWMutex
	running   bool
	lastErr   error
	lastBatch *batchstore.Batch
}

// NewManager constructs a workflow manager. Stages with a nil handler are
// skipped.
func NewManager(cfg *config.Config, store *batchstore.Store, logger *slog.Logger, set StageSet) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
	for _, stg := range []pipelineStage{
		{name: stage.Partition, handler: set.Partitioner, status: batchstore.StatusPartitioning},
		{name: stage.Render, handler: set.Renderer, status: batchstore.StatusRendering},
		{name: stage.Mesh, handler: set.Mesher, status: batchstore.StatusMeshing},
		{name: stage.Pack, handler: set.Packer, status: batchstore.StatusPacking},
		{name: stage.Export, handler: set.Exporter, status: batchstore.StatusExporting, batchScoped: true},
	} {
		if stg.handler != nil {
			m.stages = append(m.stages, stg)
		}
	}
	return m
}
