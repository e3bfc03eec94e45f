package pipeline

import (
	"context"
	"image"
	"log/slog"
	"os/exec"

	"lightmapper/internal/atlas"
	"lightmapper/internal/config"
	"lightmapper/internal/logging"
	"lightmapper/internal/mesh"
	"lightmapper/internal/scene"
	"lightmapper/internal/stage"
)

// Packer builds the atlas of the base mesh and of every light mesh of a
// group.
type Packer struct {
	opts   atlas.Options
	tool   string
	logger *slog.Logger
}

// NewPacker builds the pack stage handler.
func NewPacker(cfg *config.Config, logger *slog.Logger) *Packer {
	p := &Packer{opts: atlas.OptionsFromConfig(cfg), tool: cfg.Pack.UVPackerPath}
	p.SetLogger(logger)
	return p
}

// SetLogger replaces the handler logger.
func (p *Packer) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "packer")
	if u, ok := p.opts.Packer.(*atlas.UVPacker); ok {
		p.opts.Packer = atlas.NewUVPacker(u.Path, u.Timeout, logger)
	}
}

// Prepare checks that the mesh stage ran.
func (p *Packer) Prepare(ctx context.Context, job *stage.Job) error {
	return requireGroup(job, stage.Pack)
}

// Execute packs the solid mesh against the base situation renders and each
// light mesh against its own situation renders. Playfield groups are
// resampled into render-sized atlases instead.
func (p *Packer) Execute(ctx context.Context, job *stage.Job) error {
	if job.Base == nil {
		return nil
	}
	islands, largest := 0, 0
	add := func(id string, m *mesh.Mesh) error {
		at, err := p.pack(ctx, job.Group, m, job.Renders[id])
		if err != nil {
			return err
		}
		job.Atlases[id] = at
		islands += at.Islands
		if at.Image != nil {
			largest = max(largest, at.Image.Rect.Dx())
		}
		return nil
	}
	if err := add(scene.BaseSituationID, job.Base); err != nil {
		return err
	}
	for _, id := range job.LitSituations() {
		if err := add(id, job.Lights[id].Mesh); err != nil {
			return err
		}
	}
	job.Count("atlases", len(job.Atlases))
	job.Count("islands", islands)
	job.Count("atlas_size", largest)
	p.logger.InfoContext(ctx, "group packed",
		logging.String(logging.FieldBakeGroup, job.Group.Name),
		logging.Int("atlases", len(job.Atlases)),
		logging.Int("atlas_size", largest),
	)
	return nil
}

func (p *Packer) pack(ctx context.Context, group scene.BakeGroup, m *mesh.Mesh, renders map[int]*image.NRGBA64) (*atlas.Atlas, error) {
	if group.Mode == scene.BakePlayfield {
		return atlas.Resample(ctx, m, renders, p.opts)
	}
	return atlas.Pack(ctx, m, renders, p.opts)
}

// HealthCheck reports whether the configured UV packer can be found.
func (p *Packer) HealthCheck(context.Context) stage.Health {
	if p.tool != "" {
		if _, err := exec.LookPath(p.tool); err != nil {
			return stage.Unhealthy(stage.Pack, "uv packer not found: "+p.tool)
		}
	}
	return stage.Healthy(stage.Pack)
}
