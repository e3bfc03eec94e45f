// Package render runs the situation renders of a bake group: one image per
// (partition, situation), each idempotent through the render cache.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"lightmapper/internal/config"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/logging"
	"lightmapper/internal/partition"
	"lightmapper/internal/rendercache"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
)

// Outcome classifies how a render result was obtained.
type Outcome string

const (
	OutcomePerformed Outcome = "performed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeExisting  Outcome = "existing"
)

// Options holds the render settings.
type Options struct {
	Width       int
	Height      int
	EnableAOI   bool
	Ambient     float32
	Workers     int
	StalePolicy string
}

// OptionsFromConfig derives render options from the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	w, h := cfg.RenderSize()
	return Options{
		Width:       w,
		Height:      h,
		EnableAOI:   cfg.Bake.EnableAOI,
		Ambient:     float32(cfg.Render.Ambient),
		Workers:     cfg.Render.Workers,
		StalePolicy: cfg.Render.StalePolicy,
	}
}

// Result is one rendered (partition, situation) image.
type Result struct {
	Key     rendercache.Key
	Digest  string
	Outcome Outcome
	Image   *image.NRGBA64
}

// Counters tallies render outcomes.
type Counters struct {
	Performed int
	Skipped   int
	Existing  int
}

// Total returns the number of results.
func (c Counters) Total() int {
	return c.Performed + c.Skipped + c.Existing
}

// Map returns the counters keyed for persistence and logging.
func (c Counters) Map() map[string]int {
	return map[string]int{
		"renders_performed": c.Performed,
		"renders_skipped":   c.Skipped,
		"renders_existing":  c.Existing,
	}
}

func (c *Counters) add(o Outcome) {
	switch o {
	case OutcomePerformed:
		c.Performed++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeExisting:
		c.Existing++
	}
}

// Renderer renders situations through a host renderer and the cache.
type Renderer struct {
	scene  *scene.Store
	cache  *rendercache.Store
	host   hostrender.Renderer
	opts   Options
	logger *slog.Logger
}

// New builds a situation renderer.
func New(store *scene.Store, cache *rendercache.Store, host hostrender.Renderer, opts Options, logger *slog.Logger) *Renderer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.StalePolicy == "" {
		opts.StalePolicy = config.StalePolicyError
	}
	return &Renderer{
		scene:  store,
		cache:  cache,
		host:   host,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "render"),
	}
}

// Render returns the image of one partition under one situation. A cached
// entry with the same input digest is returned without rendering; a cached
// entry with a different digest is handled by the stale policy.
func (r *Renderer) Render(ctx context.Context, group scene.BakeGroup, part partition.Partition, sit scene.Situation) (*Result, error) {
	key := rendercache.Key{Group: group.Name, Partition: part.Index, Situation: sit.ID}
	logger := r.logger.With(
		logging.String(logging.FieldBakeGroup, group.Name),
		logging.Int(logging.FieldPartition, part.Index),
		logging.String(logging.FieldSituation, sit.Name),
	)
	view, lights := r.view(part, sit)
	digest := r.digest(group, part, sit, view, lights)

	img, entry, err := r.cache.Load(ctx, key)
	switch {
	case err == nil && entry.Digest == digest:
		logger.DebugContext(ctx, "render cache hit", logging.String(logging.FieldEventType, "cache_hit"))
		return &Result{Key: key, Digest: digest, Outcome: OutcomeExisting, Image: img}, nil
	case err == nil:
		switch r.opts.StalePolicy {
		case config.StalePolicyReuse:
			logging.WarnWithContext(logger, "stale render reused", "cache_stale",
				logging.String(logging.FieldErrorHint, "run 'lightmapper cache invalidate' to refresh"),
				logging.String(logging.FieldImpact, "the render does not reflect the current table"),
			)
			return &Result{Key: key, Digest: entry.Digest, Outcome: OutcomeExisting, Image: img}, nil
		case config.StalePolicyRerender:
			logger.InfoContext(ctx, "stale render invalidated", logging.String(logging.FieldEventType, "cache_stale"))
		default:
			return nil, services.Wrap(services.ErrStaleCache, "render", "cache lookup",
				fmt.Sprintf("entry %s was produced from different inputs", key), nil)
		}
	case !errors.Is(err, rendercache.ErrMiss):
		return nil, services.Wrap(services.ErrTransient, "render", "cache lookup", key.String(), err)
	}

	outcome := OutcomePerformed
	var out *image.NRGBA64
	if r.opts.EnableAOI && !sit.IsBase {
		border, skip := r.border(part, lights)
		if skip {
			outcome = OutcomeSkipped
			out = hostrender.Black(r.opts.Width, r.opts.Height)
		}
		view.Border = border
	}
	if out == nil {
		rendered, err := r.host.RenderView(ctx, view)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, services.Wrap(services.ErrExternalTool, "render", "render view", key.String(), err)
		}
		out = hostrender.ToNRGBA64(rendered)
	}
	if _, err := r.cache.Put(ctx, key, digest, out, outcome == OutcomeSkipped); err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "cache store", key.String(), err)
	}
	event := "render_performed"
	if outcome == OutcomeSkipped {
		event = "render_skipped"
	}
	logger.DebugContext(ctx, "render stored", logging.String(logging.FieldEventType, event))
	return &Result{Key: key, Digest: digest, Outcome: outcome, Image: out}, nil
}

// RenderAll renders every (partition, situation) pair of a group on a
// bounded worker pool. Each task owns its own cache slot. On failure the
// remaining tasks are cancelled; completed entries stay in the cache.
func (r *Renderer) RenderAll(ctx context.Context, group scene.BakeGroup, parts []partition.Partition, sits []scene.Situation) ([]*Result, Counters, error) {
	results := make([]*Result, len(parts)*len(sits))
	var (
		mu       sync.Mutex
		counters Counters
	)
	sampler := logging.NewProgressSampler(25)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for si, sit := range sits {
		for pi, part := range parts {
			slot := si*len(parts) + pi
			g.Go(func() error {
				res, err := r.Render(gctx, group, part, sit)
				if err != nil {
					return err
				}
				results[slot] = res
				mu.Lock()
				counters.add(res.Outcome)
				done := counters.Total()
				if sampler.ShouldLog(done, len(results)) {
					r.logger.InfoContext(ctx, "render progress",
						logging.String(logging.FieldBakeGroup, group.Name),
						logging.Int("done", done),
						logging.Int("total", len(results)),
					)
				}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, counters, err
	}
	return results, counters, nil
}

// ActiveLights returns the emitters lit in a situation: its own lights plus
// every unassigned emitter.
func (r *Renderer) ActiveLights(sit scene.Situation) []*scene.Object {
	var out []*scene.Object
	for _, id := range sit.Lights {
		if obj, ok := r.scene.Get(id); ok {
			out = append(out, obj)
		}
	}
	for _, obj := range r.scene.UnassignedLights() {
		if !slices.Contains(sit.Lights, obj.ID) {
			out = append(out, obj)
		}
	}
	return out
}

func (r *Renderer) view(part partition.Partition, sit scene.Situation) (hostrender.View, []*scene.Object) {
	var targets []*scene.Object
	for _, id := range part.Members {
		if obj, ok := r.scene.Get(id); ok {
			targets = append(targets, obj)
		}
	}
	lights := r.ActiveLights(sit)
	sources := make([]hostrender.LightSource, 0, len(lights))
	for _, l := range lights {
		sources = append(sources, hostrender.LightFromObject(l))
	}
	view := hostrender.View{
		Camera:    r.scene.Camera(),
		Targets:   targets,
		Occluders: r.scene.Occluders(),
		Lights:    sources,
		Width:     r.opts.Width,
		Height:    r.opts.Height,
	}
	if sit.IsBase {
		view.Environment = r.opts.Ambient
	}
	return view, lights
}

func (r *Renderer) border(part partition.Partition, lights []*scene.Object) (image.Rectangle, bool) {
	cam := r.scene.Camera()
	influences := make([]Influence, 0, len(lights))
	for _, l := range lights {
		influences = append(influences, ProjectInfluence(l, cam, part.Mask))
	}
	return Border(influences, r.opts.Width, r.opts.Height)
}

func (r *Renderer) digest(group scene.BakeGroup, part partition.Partition, sit scene.Situation, view hostrender.View, lights []*scene.Object) string {
	parts := []string{
		group.Name, string(group.Mode),
		strconv.Itoa(part.Index),
		sit.ID,
		fmt.Sprintf("%v", view.Camera),
		strconv.Itoa(view.Width), strconv.Itoa(view.Height),
		strconv.FormatFloat(float64(view.Environment), 'g', -1, 32),
		strconv.FormatBool(r.opts.EnableAOI),
	}
	for _, obj := range view.Targets {
		parts = append(parts, "target", obj.Fingerprint())
	}
	for _, obj := range lights {
		parts = append(parts, "light", obj.Fingerprint())
	}
	for _, obj := range view.Occluders {
		parts = append(parts, "occluder", obj.Fingerprint())
	}
	return rendercache.Digest(parts...)
}
