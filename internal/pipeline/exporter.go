package pipeline

import (
	"context"
	"log/slog"

	"lightmapper/internal/atlas"
	"lightmapper/internal/config"
	"lightmapper/internal/exporter"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/logging"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
	"lightmapper/internal/stage"
)

// Exporter merges the lightmaps of every situation across groups and
// writes the batch results.
type Exporter struct {
	atlasOpts  atlas.Options
	exportOpts exporter.Options
	logger     *slog.Logger
}

// NewExporter builds the export stage handler.
func NewExporter(cfg *config.Config, logger *slog.Logger) *Exporter {
	e := &Exporter{atlasOpts: atlas.OptionsFromConfig(cfg), exportOpts: exporter.OptionsFromConfig(cfg)}
	e.SetLogger(logger)
	return e
}

// SetLogger replaces the handler logger.
func (e *Exporter) SetLogger(logger *slog.Logger) {
	e.logger = logging.NewComponentLogger(logger, "export")
	if u, ok := e.atlasOpts.Packer.(*atlas.UVPacker); ok {
		e.atlasOpts.Packer = atlas.NewUVPacker(u.Path, u.Timeout, logger)
	}
}

// Prepare checks that the job stands for the whole batch.
func (e *Exporter) Prepare(ctx context.Context, job *stage.Job) error {
	if job == nil || job.Batch == nil || !job.BatchScoped() {
		return services.Wrap(services.ErrValidation, stage.Export, "prepare", "export runs once per batch", nil)
	}
	return nil
}

// Execute builds the export parts and writes them. Solid meshes are
// exported per group; the lightmaps of one situation are merged into a
// single mesh except for playfield and movable groups.
func (e *Exporter) Execute(ctx context.Context, job *stage.Job) error {
	batch := job.Batch
	parts, err := e.parts(ctx, batch)
	if err != nil {
		return err
	}
	exp := exporter.New(e.exportOpts, e.logger)
	manifest, written, err := exp.Write(ctx, exporter.Meta{BatchID: batch.ID, TablePath: batch.TablePath}, parts)
	if err != nil {
		return err
	}
	batch.Outputs = written
	job.Count("meshes", len(manifest.Meshes))
	job.Count("lightmaps", len(manifest.Lightmaps()))
	job.Count("files", len(written))
	return nil
}

func (e *Exporter) parts(ctx context.Context, batch *stage.Batch) ([]exporter.Part, error) {
	var parts []exporter.Part
	var base scene.Situation
	for _, sit := range batch.Situations {
		if sit.IsBase {
			base = sit
		}
	}
	for _, job := range batch.Jobs {
		at := job.Atlases[scene.BaseSituationID]
		if at.Empty() {
			continue
		}
		parts = append(parts, exporter.Part{
			Kind:          exporter.KindSolid,
			Groups:        []string{job.Group.Name},
			SituationID:   base.ID,
			SituationName: base.Name,
			Lights:        lightsOf(batch.Scene, base),
			HDRRange:      maxHDR(at),
			Opaque:        job.Group.Opaque,
			Mesh:          at.Mesh,
			Image:         at.Image,
		})
	}

	for _, sit := range batch.Situations {
		if sit.IsBase {
			continue
		}
		var (
			items  []atlas.Item
			hdr    = make(map[string]float32)
			merged []string
			mhdr   float32
		)
		for _, job := range batch.Jobs {
			at, ok := job.Atlases[sit.ID]
			if !ok || at.Empty() {
				continue
			}
			items = append(items, atlas.Item{Group: job.Group.Name, Mode: job.Group.Mode, Atlas: at})
			hdr[job.Group.Name] = job.Lights[sit.ID].HDRRange
			if job.Group.Mode == scene.BakeDefault {
				merged = append(merged, job.Group.Name)
				mhdr = max(mhdr, job.Lights[sit.ID].HDRRange)
			}
		}
		if len(items) == 0 {
			continue
		}
		combined, kept, err := atlas.Merge(ctx, items, e.atlasOpts)
		if err != nil {
			return nil, err
		}
		lights := lightsOf(batch.Scene, sit)
		if !combined.Empty() {
			parts = append(parts, exporter.Part{
				Kind:          exporter.KindLightmap,
				Groups:        merged,
				SituationID:   sit.ID,
				SituationName: sit.Name,
				Lights:        lights,
				HDRRange:      mhdr,
				Mesh:          combined.Mesh,
				Image:         combined.Image,
			})
			e.logger.DebugContext(ctx, "lightmaps merged",
				logging.String(logging.FieldSituation, sit.Name),
				logging.Int("groups", len(merged)),
				logging.Int("islands", combined.Islands),
			)
		}
		for _, it := range kept {
			parts = append(parts, exporter.Part{
				Kind:          exporter.KindLightmap,
				Groups:        []string{it.Group},
				SituationID:   sit.ID,
				SituationName: sit.Name,
				Lights:        lights,
				HDRRange:      hdr[it.Group],
				Mesh:          it.Atlas.Mesh,
				Image:         it.Atlas.Image,
			})
		}
	}
	return parts, nil
}

// HealthCheck reports whether an export directory is configured.
func (e *Exporter) HealthCheck(context.Context) stage.Health {
	if e.exportOpts.Dir == "" {
		return stage.Unhealthy(stage.Export, "export directory not configured")
	}
	return stage.Healthy(stage.Export)
}

func lightsOf(store *scene.Store, sit scene.Situation) []exporter.Light {
	var out []exporter.Light
	for _, id := range sit.Lights {
		name := id
		if obj, ok := store.Get(id); ok {
			name = obj.Name
		}
		out = append(out, exporter.Light{ID: id, Name: name})
	}
	return out
}

// maxHDR returns the brightest channel stored in an atlas.
func maxHDR(at *atlas.Atlas) float32 {
	var peak float32
	b := at.Image.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			peak = max(peak, hostrender.MaxChannel(at.Image, x, y))
		}
	}
	return peak
}
