package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"lightmapper/internal/config"
	"lightmapper/internal/logging"
	"lightmapper/internal/meshopt"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
	"lightmapper/internal/stage"
)

// Mesher builds the base mesh of a group and derives one light mesh per
// lit situation.
type Mesher struct {
	opts   meshopt.Options
	logger *slog.Logger
}

// NewMesher builds the mesh stage handler.
func NewMesher(cfg *config.Config, logger *slog.Logger) *Mesher {
	m := &Mesher{opts: meshopt.OptionsFromConfig(cfg)}
	m.SetLogger(logger)
	return m
}

// SetLogger replaces the handler logger.
func (m *Mesher) SetLogger(logger *slog.Logger) {
	m.logger = logging.NewComponentLogger(logger, "mesher")
}

// Prepare checks that every situation has a complete render set.
func (m *Mesher) Prepare(ctx context.Context, job *stage.Job) error {
	if err := requireGroup(job, stage.Mesh); err != nil {
		return err
	}
	for _, sit := range job.Situations() {
		if got := len(job.Renders[sit.ID]); got != len(job.Partitions) {
			return services.Wrap(services.ErrValidation, stage.Mesh, "prepare",
				fmt.Sprintf("situation %q has %d of %d partition renders", sit.Name, got, len(job.Partitions)), nil)
		}
	}
	return nil
}

// Execute runs the mesh optimizer on the group and prunes a light mesh for
// every non-base situation. Situations that light nothing are dropped.
func (m *Mesher) Execute(ctx context.Context, job *stage.Job) error {
	if len(job.Members) == 0 {
		return nil
	}
	store := job.Batch.Scene
	in := meshopt.Input{
		Group:      job.Group,
		Members:    job.Members,
		Partitions: job.Partitions,
		Camera:     store.Camera(),
		Playfield:  store.Playfield(),
	}
	if job.Group.Mode == scene.BakeMovable {
		if sync, ok := store.Get(job.Group.SyncObject); ok {
			in.Sync = sync
		}
	}
	base, stats, err := meshopt.BuildBaseMesh(in, m.opts)
	if err != nil {
		return err
	}
	job.Base = base
	job.BaseStats = stats
	for k, v := range stats.Map() {
		job.Count(k, v)
	}

	for _, sit := range job.Situations() {
		if sit.IsBase {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		lm := meshopt.DeriveLightMesh(base, job.Renders[sit.ID], m.opts)
		if lm.Empty() {
			m.logger.DebugContext(ctx, "situation lights nothing on group",
				logging.String(logging.FieldBakeGroup, job.Group.Name),
				logging.String(logging.FieldSituation, sit.Name),
			)
			continue
		}
		job.Lights[sit.ID] = lm
		m.logger.DebugContext(ctx, "light mesh derived",
			logging.String(logging.FieldBakeGroup, job.Group.Name),
			logging.String(logging.FieldSituation, sit.Name),
			logging.Int("faces", lm.Mesh.FaceCount()),
			logging.Float64("hdr_range", float64(lm.HDRRange)),
		)
	}
	job.Count("light_meshes", len(job.Lights))
	m.logger.InfoContext(ctx, "group meshed",
		logging.String(logging.FieldBakeGroup, job.Group.Name),
		logging.Int("faces", stats.Faces),
		logging.Int("vertices", stats.Vertices),
		logging.Int("light_meshes", len(job.Lights)),
	)
	return nil
}

// HealthCheck reports whether the prune resolution is usable.
func (m *Mesher) HealthCheck(context.Context) stage.Health {
	if m.opts.PruneWidth <= 0 || m.opts.PruneHeight <= 0 {
		return stage.Unhealthy(stage.Mesh, "prune resolution is not configured")
	}
	return stage.Healthy(stage.Mesh)
}
