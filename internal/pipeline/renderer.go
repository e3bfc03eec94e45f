package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"lightmapper/internal/config"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/logging"
	"lightmapper/internal/render"
	"lightmapper/internal/rendercache"
	"lightmapper/internal/services"
	"lightmapper/internal/stage"
)

// Renderer renders every (partition, situation) pair of a group through the
// render cache.
type Renderer struct {
	cache  *rendercache.Store
	host   hostrender.Renderer
	opts   render.Options
	logger *slog.Logger
}

// NewRenderer builds the render stage handler.
func NewRenderer(cfg *config.Config, cache *rendercache.Store, host hostrender.Renderer, logger *slog.Logger) *Renderer {
	r := &Renderer{cache: cache, host: host, opts: render.OptionsFromConfig(cfg)}
	r.SetLogger(logger)
	return r
}

// SetLogger replaces the handler logger.
func (r *Renderer) SetLogger(logger *slog.Logger) {
	r.logger = logging.NewComponentLogger(logger, "renderer")
}

// Prepare checks that partitions exist for the group.
func (r *Renderer) Prepare(ctx context.Context, job *stage.Job) error {
	if err := requireGroup(job, stage.Render); err != nil {
		return err
	}
	if len(job.Partitions) == 0 && len(job.Members) > 0 {
		return services.Wrap(services.ErrValidation, stage.Render, "prepare", "group has not been partitioned", nil)
	}
	return nil
}

// Execute renders the group while holding the cache writer lock. Renders
// already in the cache with matching inputs are reused.
func (r *Renderer) Execute(ctx context.Context, job *stage.Job) error {
	if len(job.Partitions) == 0 {
		return nil
	}
	if err := r.cache.Lock(); err != nil {
		if errors.Is(err, rendercache.ErrLocked) {
			return services.Wrap(services.ErrTransient, stage.Render, "cache lock",
				"another batch is writing the render cache", err)
		}
		return services.Wrap(services.ErrTransient, stage.Render, "cache lock", "", err)
	}
	defer func() {
		if err := r.cache.Unlock(); err != nil {
			r.logger.WarnContext(ctx, "render cache unlock failed", logging.Error(err))
		}
	}()

	renderer := render.New(job.Batch.Scene, r.cache, r.host, r.opts, r.logger)
	results, counters, err := renderer.RenderAll(ctx, job.Group, job.Partitions, job.Situations())
	if err != nil {
		return err
	}
	for _, res := range results {
		byPart := job.Renders[res.Key.Situation]
		if byPart == nil {
			byPart = make(map[int]*image.NRGBA64)
			job.Renders[res.Key.Situation] = byPart
		}
		byPart[res.Key.Partition] = res.Image
	}
	for k, v := range counters.Map() {
		job.Count(k, v)
	}
	job.Count("situations", len(job.Situations()))
	r.logger.InfoContext(ctx, "group rendered",
		logging.String(logging.FieldBakeGroup, job.Group.Name),
		logging.Int("renders_performed", counters.Performed),
		logging.Int("renders_skipped", counters.Skipped),
		logging.Int("renders_existing", counters.Existing),
	)
	return nil
}

// HealthCheck reports whether the cache and host renderer are wired.
func (r *Renderer) HealthCheck(context.Context) stage.Health {
	switch {
	case r.cache == nil:
		return stage.Unhealthy(stage.Render, "render cache not configured")
	case r.host == nil:
		return stage.Unhealthy(stage.Render, "host renderer not configured")
	}
	return stage.Healthy(stage.Render)
}
