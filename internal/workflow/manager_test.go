package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/config"
	"lightmapper/internal/exporter"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/logging"
	"lightmapper/internal/rendercache"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
	"lightmapper/internal/stage"
	"lightmapper/internal/testsupport"
	"lightmapper/internal/workflow"
)

type harness struct {
	cfg     *config.Config
	store   *batchstore.Store
	manager *workflow.Manager
	table   string
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	cache, err := rendercache.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("rendercache.Open: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	logger := logging.NewNop()
	set := workflow.DefaultStageSet(cfg, cache, hostrender.NewRasterizer(), logger)
	return &harness{
		cfg:     cfg,
		store:   store,
		manager: workflow.NewManager(cfg, store, logger, set),
		table:   testsupport.WriteTable(t, testsupport.BaseDir(cfg), "table.toml", "# fixture\n"),
	}
}

func (h *harness) run(t *testing.T, sc *scene.Scene, opts workflow.RunOptions) (*stage.Batch, error) {
	t.Helper()
	return h.manager.Run(context.Background(), testsupport.MustLoadScene(t, sc), h.table, opts)
}

func (h *harness) manifest(t *testing.T) *exporter.Manifest {
	t.Helper()
	m, err := exporter.ReadManifest(filepath.Join(h.cfg.Paths.ExportDir, exporter.ManifestName))
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	return m
}

func TestRunGroupModeBakesOneSolidAndOneLightmap(t *testing.T) {
	h := newHarness(t)
	batch, err := h.run(t, testsupport.Table(scene.LightGroupMode), workflow.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(batch.Jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(batch.Jobs))
	}
	job := batch.Jobs[0]
	if len(job.Partitions) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(job.Partitions))
	}
	if len(job.Renders) != 2 {
		t.Fatalf("expected renders for 2 situations, got %d", len(job.Renders))
	}
	for id, renders := range job.Renders {
		if len(renders) != 3 {
			t.Fatalf("situation %s has %d renders, want 3", id, len(renders))
		}
	}

	m := h.manifest(t)
	if len(m.Meshes) != 2 {
		t.Fatalf("expected 2 exported meshes, got %+v", m.Meshes)
	}
	if m.Meshes[0].Kind != exporter.KindSolid || m.Meshes[0].Situation != scene.BaseSituationID {
		t.Fatalf("first mesh should be the solid bake, got %+v", m.Meshes[0])
	}
	lightmaps := m.Lightmaps()
	if len(lightmaps) != 1 || lightmaps[0].Situation != "GI" || len(lightmaps[0].Lights) != 4 {
		t.Fatalf("expected one GI lightmap driven by 4 lights, got %+v", lightmaps)
	}
	if m.BatchID != batch.ID || len(batch.Outputs) == 0 {
		t.Fatalf("batch outputs not recorded: %s %v", m.BatchID, batch.Outputs)
	}

	record, err := h.store.Get(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != batchstore.StatusCompleted {
		t.Fatalf("expected completed batch, got %s", record.Status)
	}
}

func TestRunSplitModeExportsOneLightmapPerLitLight(t *testing.T) {
	h := newHarness(t)
	batch, err := h.run(t, testsupport.Table(scene.LightSplit), workflow.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(batch.Situations) != 5 {
		t.Fatalf("expected base and 4 split situations, got %d", len(batch.Situations))
	}
	lit := batch.Jobs[0].LitSituations()
	lightmaps := h.manifest(t).Lightmaps()
	if len(lit) == 0 || len(lightmaps) != len(lit) {
		t.Fatalf("expected one lightmap per lit situation, got %d lightmaps for %v", len(lightmaps), lit)
	}
	for _, lm := range lightmaps {
		if !strings.HasPrefix(lm.Situation, "GI/") || len(lm.Lights) != 1 {
			t.Fatalf("unexpected split lightmap %+v", lm)
		}
	}
}

func TestRunRecordsStageRunsInOrder(t *testing.T) {
	h := newHarness(t)
	batch, err := h.run(t, testsupport.Table(scene.LightGroupMode), workflow.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	runs, err := h.store.StageRuns(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("StageRuns: %v", err)
	}
	if len(runs) != len(stage.Names) {
		t.Fatalf("expected %d stage runs, got %d", len(stage.Names), len(runs))
	}
	for i, run := range runs {
		if run.Stage != stage.Names[i] || run.Status != batchstore.StatusCompleted || run.RequestID == "" {
			t.Fatalf("run %d: %+v", i, run)
		}
	}
	if runs[0].BakeGroup != "Parts" || runs[len(runs)-1].BakeGroup != "" {
		t.Fatalf("unexpected bake groups %q and %q", runs[0].BakeGroup, runs[len(runs)-1].BakeGroup)
	}
	if runs[0].Counters["partitions"] != 3 || runs[1].Counters["situations"] != 2 {
		t.Fatalf("unexpected counters %v %v", runs[0].Counters, runs[1].Counters)
	}
}

func TestRunUntilStopsBeforeExport(t *testing.T) {
	h := newHarness(t)
	batch, err := h.run(t, testsupport.Table(scene.LightGroupMode), workflow.RunOptions{Until: stage.Render})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	job := batch.Jobs[0]
	if len(job.Renders) != 2 || job.Base != nil || len(batch.Outputs) != 0 {
		t.Fatalf("run went past the render stage: base=%v outputs=%v", job.Base != nil, batch.Outputs)
	}

	if _, err := h.run(t, testsupport.Table(scene.LightGroupMode), workflow.RunOptions{Until: "bogus"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown stage, got %v", err)
	}
}

func TestRunRejectsMovableGroupsUnlessEnabled(t *testing.T) {
	h := newHarness(t)
	sc := testsupport.Table(scene.LightGroupMode)
	sc.BakeGroups[0].Mode = scene.BakeMovable
	sc.BakeGroups[0].SyncObject = "part1"
	batch, err := h.run(t, sc, workflow.RunOptions{})
	if !errors.Is(err, services.ErrUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	record, err := h.store.Get(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != batchstore.StatusFailed || record.Stage != stage.Partition || record.ErrorMessage == "" {
		t.Fatalf("unexpected failed batch %+v", record)
	}
	if status := h.manager.Status(context.Background()); status.LastError == "" || status.LastBatch == nil {
		t.Fatalf("status does not report the failure: %+v", status)
	}
}

func TestRunRejectsCameraAspectMismatch(t *testing.T) {
	h := newHarness(t)
	h.cfg.Bake.AspectRatio = 0.75
	_, err := h.run(t, testsupport.Table(scene.LightGroupMode), workflow.RunOptions{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunRejectsUnknownGroupFilter(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, testsupport.Table(scene.LightGroupMode), workflow.RunOptions{Groups: []string{"Ramps"}})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	h := newHarness(t)
	status := h.manager.Status(context.Background())
	if status.Running {
		t.Fatal("manager should be idle")
	}
	for _, name := range []string{stage.Partition, stage.Render, stage.Mesh, stage.Export} {
		if health, ok := status.StageHealth[name]; !ok || !health.Ready {
			t.Fatalf("stage %s not healthy: %+v", name, health)
		}
	}
}
