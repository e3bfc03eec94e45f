package batchstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/testsupport"
)

func TestBatchLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	batch, err := store.NewBatch(ctx, "/tables/demo.toml")
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	if batch.ID == "" || batch.Status != batchstore.StatusPending {
		t.Fatalf("unexpected batch %#v", batch)
	}

	if err := store.SetStatus(ctx, batch.ID, batchstore.StatusRendering, "render", ""); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	runID, err := store.StartStage(ctx, batch.ID, "Parts", "render", "req-1")
	if err != nil {
		t.Fatalf("StartStage: %v", err)
	}
	counters := map[string]int{"performed": 4, "skipped": 1}
	if err := store.FinishStage(ctx, runID, batchstore.StatusCompleted, counters, ""); err != nil {
		t.Fatalf("FinishStage: %v", err)
	}
	if err := store.SetStatus(ctx, batch.ID, batchstore.StatusCompleted, "", ""); err != nil {
		t.Fatalf("SetStatus completed: %v", err)
	}

	got, err := store.Get(ctx, batch.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batchstore.StatusCompleted || got.FinishedAt.IsZero() {
		t.Fatalf("expected completed batch with finish time, got %#v", got)
	}

	runs, err := store.StageRuns(ctx, batch.ID)
	if err != nil {
		t.Fatalf("StageRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 stage run, got %d", len(runs))
	}
	if runs[0].Counters["performed"] != 4 || runs[0].Status != batchstore.StatusCompleted {
		t.Fatalf("unexpected stage run %#v", runs[0])
	}
}

func TestGetUnknownBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, batchstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetStatus(context.Background(), "missing", batchstore.StatusFailed, "", "x"); !errors.Is(err, batchstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from SetStatus, got %v", err)
	}
}

func TestReopenFailsInterruptedBatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store, err := batchstore.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	batch, err := store.NewBatch(ctx, "table.toml")
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	if err := store.SetStatus(ctx, batch.ID, batchstore.StatusMeshing, "mesh", ""); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := store.StartStage(ctx, batch.ID, "Parts", "mesh", "req"); err != nil {
		t.Fatalf("StartStage: %v", err)
	}
	_ = store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	got, err := reopened.Get(ctx, batch.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != batchstore.StatusFailed || got.ErrorMessage != batchstore.InterruptedReason {
		t.Fatalf("expected interrupted batch to be failed, got %#v", got)
	}
	runs, err := reopened.StageRuns(ctx, batch.ID)
	if err != nil {
		t.Fatalf("StageRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != batchstore.StatusFailed {
		t.Fatalf("expected interrupted stage run to be failed, got %#v", runs)
	}
}

func TestListAndRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, name := range []string{"a.toml", "b.toml"} {
		batch, err := store.NewBatch(ctx, name)
		if err != nil {
			t.Fatalf("NewBatch: %v", err)
		}
		if err := store.SetStatus(ctx, batch.ID, batchstore.StatusCompleted, "", ""); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	}
	list, err := store.List(ctx, 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 batches, got %d (%v)", len(list), err)
	}
	removed, err := store.Remove(ctx, time.Now().Add(time.Hour))
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 removed, got %d (%v)", removed, err)
	}
	if _, err := store.NewBatch(ctx, " "); err == nil {
		t.Fatal("expected error for blank table path")
	}
}
