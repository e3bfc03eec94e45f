package workflow

import (
	"log/slog"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/config"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/pipeline"
	"lightmapper/internal/rendercache"
	"lightmapper/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Partitioner stage.Handler
	Renderer    stage.Handler
	Mesher      stage.Handler
	Packer      stage.Handler
	Exporter    stage.Handler
}

// DefaultStageSet wires the pipeline handlers for cfg.
func DefaultStageSet(cfg *config.Config, cache *rendercache.Store, host hostrender.Renderer, logger *slog.Logger) StageSet {
	return StageSet{
		Partitioner: pipeline.NewPartitioner(cfg, logger),
		Renderer:    pipeline.NewRenderer(cfg, cache, host, logger),
		Mesher:      pipeline.NewMesher(cfg, logger),
		Packer:      pipeline.NewPacker(cfg, logger),
		Exporter:    pipeline.NewExporter(cfg, logger),
	}
}

type pipelineStage struct {
	name    string
	handler stage.Handler
	status  batchstore.Status
	// batchScoped stages run once per batch after every group finished.
	batchScoped bool
}

// RunOptions narrows one pipeline run.
type RunOptions struct {
	// Until names the last stage to run; empty runs through export.
	Until string
	// Groups restricts the run to the named bake groups; empty runs all.
	Groups []string
}
