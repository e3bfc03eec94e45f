package services_test

import (
	"context"
	"testing"

	"lightmapper/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithStage(ctx, "render")
	ctx = services.WithBakeGroup(ctx, "Parts")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "batch-1" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "render" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if group, ok := services.BakeGroupFromContext(ctx); !ok || group != "Parts" {
		t.Fatalf("unexpected group: %v %v", group, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
