package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lightmapper/internal/config"
	"lightmapper/internal/logging"
	"lightmapper/internal/partition"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
	"lightmapper/internal/stage"
)

// Partitioner splits a bake group into non-overlapping partitions.
type Partitioner struct {
	opts          partition.Options
	enableMovable bool
	logger        *slog.Logger
}

// NewPartitioner builds the partition stage handler.
func NewPartitioner(cfg *config.Config, logger *slog.Logger) *Partitioner {
	p := &Partitioner{
		opts:          partition.OptionsFromConfig(cfg),
		enableMovable: cfg.Bake.EnableMovable,
	}
	p.SetLogger(logger)
	return p
}

// SetLogger replaces the handler logger.
func (p *Partitioner) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "partitioner")
}

// Prepare rejects movable groups unless the feature is enabled.
func (p *Partitioner) Prepare(ctx context.Context, job *stage.Job) error {
	if err := requireGroup(job, stage.Partition); err != nil {
		return err
	}
	if job.Group.Mode == scene.BakeMovable && !p.enableMovable {
		return services.Wrap(services.ErrUnsupported, stage.Partition, "movable bake mode",
			fmt.Sprintf("group %q uses the experimental movable mode; set bake.enable_movable to bake it", job.Group.Name), nil)
	}
	if len(job.Members) == 0 {
		logging.WarnWithContext(p.logger, "bake group has no members", "empty_group",
			logging.String(logging.FieldBakeGroup, job.Group.Name),
			logging.String(logging.FieldImpact, "the group produces no mesh"),
			logging.String(logging.FieldErrorHint, "assign objects to the group or remove it"),
		)
	}
	return nil
}

// Execute partitions the group members and reports members hidden behind
// other geometry.
func (p *Partitioner) Execute(ctx context.Context, job *stage.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	store := job.Batch.Scene
	cam := store.Camera()
	parts, err := partition.Group(job.Members, cam, p.opts)
	if err != nil {
		return services.Wrap(services.ErrValidation, stage.Partition, "group", job.Group.Name, err)
	}
	job.Partitions = parts

	hidden := partition.Occluded(job.Members, store.Occluders(), cam, p.opts.Width, p.opts.Height)
	if len(hidden) > 0 {
		logging.WarnWithContext(p.logger, "bake group members are fully occluded", "occluded_members",
			logging.String(logging.FieldBakeGroup, job.Group.Name),
			logging.String("objects", strings.Join(hidden, ", ")),
			logging.String(logging.FieldImpact, "occluded objects get no texels"),
			logging.String(logging.FieldErrorHint, "move the objects to the hidden class or another group"),
		)
	}

	job.Count("members", len(job.Members))
	job.Count("partitions", len(parts))
	job.Count("occluded", len(hidden))
	p.logger.InfoContext(ctx, "group partitioned",
		logging.String(logging.FieldBakeGroup, job.Group.Name),
		logging.Int("members", len(job.Members)),
		logging.Int("partitions", len(parts)),
	)
	return nil
}

// HealthCheck reports whether the partition masks can be allocated.
func (p *Partitioner) HealthCheck(context.Context) stage.Health {
	if p.opts.Width <= 0 || p.opts.Height <= 0 {
		return stage.Unhealthy(stage.Partition, "mask resolution is not configured")
	}
	return stage.Healthy(stage.Partition)
}

func requireGroup(job *stage.Job, name string) error {
	if job == nil || job.Batch == nil || job.Batch.Scene == nil {
		return services.Wrap(services.ErrValidation, name, "prepare", "job has no scene", nil)
	}
	if job.BatchScoped() {
		return services.Wrap(services.ErrValidation, name, "prepare", "stage runs per bake group", nil)
	}
	return nil
}
