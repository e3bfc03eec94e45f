package render_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/config"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/logging"
	"lightmapper/internal/partition"
	"lightmapper/internal/render"
	"lightmapper/internal/rendercache"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
	"lightmapper/internal/testsupport"
)

type fixture struct {
	cfg      *config.Config
	store    *scene.Store
	cache    *rendercache.Store
	renderer *render.Renderer
	group    scene.BakeGroup
	parts    []partition.Partition
}

func newFixture(t *testing.T, sc *scene.Scene, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustLoadScene(t, sc)
	cache, err := rendercache.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("rendercache.Open: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	group, _ := store.BakeGroup("Parts")
	parts, err := partition.Group(store.Members("Parts"), store.Camera(), partition.OptionsFromConfig(cfg))
	if err != nil {
		t.Fatalf("partition.Group: %v", err)
	}
	return &fixture{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		renderer: render.New(store, cache, hostrender.NewRasterizer(), render.OptionsFromConfig(cfg), logging.NewNop()),
		group:    group,
		parts:    parts,
	}
}

func TestRenderAllGroupMode(t *testing.T) {
	f := newFixture(t, testsupport.Table(scene.LightGroupMode))
	sits := f.store.Situations()
	results, counters, err := f.renderer.RenderAll(context.Background(), f.group, f.parts, sits)
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	if len(f.parts) != 3 || len(sits) != 2 {
		t.Fatalf("expected 3 partitions and 2 situations, got %d and %d", len(f.parts), len(sits))
	}
	if len(results) != 6 || counters.Performed != 6 {
		t.Fatalf("expected 6 performed renders, got %d results %+v", len(results), counters)
	}
}

func TestRenderAllSplitMode(t *testing.T) {
	f := newFixture(t, testsupport.Table(scene.LightSplit))
	sits := f.store.Situations()
	_, counters, err := f.renderer.RenderAll(context.Background(), f.group, f.parts, sits)
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	if counters.Total() != 3*5 {
		t.Fatalf("expected 15 renders, got %+v", counters)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	f := newFixture(t, testsupport.Table(scene.LightGroupMode))
	ctx := context.Background()
	sit := f.store.Situations()[1]
	first, err := f.renderer.Render(ctx, f.group, f.parts[0], sit)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := f.renderer.Render(ctx, f.group, f.parts[0], sit)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if first.Outcome != render.OutcomePerformed || second.Outcome != render.OutcomeExisting {
		t.Fatalf("unexpected outcomes %s then %s", first.Outcome, second.Outcome)
	}
	if !bytes.Equal(first.Image.Pix, second.Image.Pix) {
		t.Fatal("cached image differs from the rendered image")
	}
	lit := false
	for y := 0; y < second.Image.Rect.Dy() && !lit; y++ {
		for x := 0; x < second.Image.Rect.Dx(); x++ {
			if hostrender.MaxChannel(second.Image, x, y) > 0 {
				lit = true
				break
			}
		}
	}
	if !lit {
		t.Fatal("lit situation rendered black")
	}
}

func moveFirstPart(t *testing.T, store *scene.Store) {
	t.Helper()
	err := store.Update("part1", func(o *scene.Object) {
		o.Transform.Location = math32.Vec3(0, 0, 0.001)
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestStaleEntryFailsByDefault(t *testing.T) {
	f := newFixture(t, testsupport.Table(scene.LightGroupMode))
	ctx := context.Background()
	base := f.store.Situations()[0]
	if _, err := f.renderer.Render(ctx, f.group, f.parts[0], base); err != nil {
		t.Fatalf("Render: %v", err)
	}
	moveFirstPart(t, f.store)
	_, err := f.renderer.Render(ctx, f.group, f.parts[0], base)
	if !errors.Is(err, services.ErrStaleCache) {
		t.Fatalf("expected ErrStaleCache, got %v", err)
	}
}

func TestStalePolicies(t *testing.T) {
	for _, tc := range []struct {
		policy string
		want   render.Outcome
	}{
		{config.StalePolicyReuse, render.OutcomeExisting},
		{config.StalePolicyRerender, render.OutcomePerformed},
	} {
		t.Run(tc.policy, func(t *testing.T) {
			f := newFixture(t, testsupport.Table(scene.LightGroupMode), testsupport.WithStalePolicy(tc.policy))
			ctx := context.Background()
			base := f.store.Situations()[0]
			if _, err := f.renderer.Render(ctx, f.group, f.parts[0], base); err != nil {
				t.Fatalf("Render: %v", err)
			}
			moveFirstPart(t, f.store)
			res, err := f.renderer.Render(ctx, f.group, f.parts[0], base)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if res.Outcome != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, res.Outcome)
			}
		})
	}
}

func TestAOISkipsUninfluencedPartitions(t *testing.T) {
	sc := testsupport.Table(scene.LightSplit)
	far := sc.Objects[3]
	far.Transform.Location = math32.Vec3(0.5, -20, 0.5)
	far.Light.AOI = true
	f := newFixture(t, sc)

	var farSit scene.Situation
	for _, s := range f.store.Situations() {
		if len(s.Lights) == 1 && s.Lights[0] == far.ID {
			farSit = s
		}
	}
	_, counters, err := f.renderer.RenderAll(context.Background(), f.group, f.parts, []scene.Situation{farSit})
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	if counters.Skipped != len(f.parts) {
		t.Fatalf("expected every partition skipped, got %+v", counters)
	}
	entries, _ := f.cache.List(context.Background(), rendercache.Filter{Situation: farSit.ID})
	if len(entries) != len(f.parts) || !entries[0].Skipped {
		t.Fatalf("skipped renders must still be cached, got %+v", entries)
	}
}

func TestCancelledRenderLeavesCompletedEntries(t *testing.T) {
	f := newFixture(t, testsupport.Table(scene.LightGroupMode))
	ctx, cancel := context.WithCancel(context.Background())
	base := f.store.Situations()[0]
	if _, err := f.renderer.Render(ctx, f.group, f.parts[0], base); err != nil {
		t.Fatalf("Render: %v", err)
	}
	cancel()
	if _, _, err := f.renderer.RenderAll(ctx, f.group, f.parts, f.store.Situations()); err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, _, err := f.cache.Load(context.Background(), rendercache.Key{Group: "Parts", Partition: 0, Situation: base.ID}); err != nil {
		t.Fatalf("completed entry lost after cancellation: %v", err)
	}
}

func TestInfluenceRadiusInterpolates(t *testing.T) {
	obj := &scene.Object{ID: "l", Kind: scene.KindLight, Light: &scene.Light{Energy: 10, ShadowRadius: 0.01, AOI: true}}
	_, r, ok := render.InfluenceRadius(obj)
	if !ok || math32.Abs(r-2.019) > 1e-3 {
		t.Fatalf("expected radius 2.019, got %v ok=%v", r, ok)
	}
	obj.Light.Energy = 5000
	if _, _, ok := render.InfluenceRadius(obj); ok {
		t.Fatal("emissions beyond the table must force a full frame")
	}
}
