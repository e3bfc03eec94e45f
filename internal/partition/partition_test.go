package partition_test

import (
	"fmt"
	"slices"
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
	"lightmapper/internal/partition"
	"lightmapper/internal/scene"
	"lightmapper/internal/testsupport"
)

var opts = partition.Options{Width: 64, Height: 128, Padding: 4}

func members(t *testing.T, sc *scene.Scene) ([]*scene.Object, *scene.Store) {
	t.Helper()
	store := testsupport.MustLoadScene(t, sc)
	return store.Members("Parts"), store
}

func assertExact(t *testing.T, objs []*scene.Object, parts []partition.Partition) {
	t.Helper()
	seen := map[string]int{}
	for _, p := range parts {
		for _, id := range p.Members {
			seen[id]++
		}
	}
	if len(seen) != len(objs) {
		t.Fatalf("partitions cover %d objects, want %d", len(seen), len(objs))
	}
	for _, obj := range objs {
		if seen[obj.ID] != 1 {
			t.Fatalf("object %s appears %d times", obj.ID, seen[obj.ID])
		}
	}
}

func TestStackedObjectsGetOwnPartitions(t *testing.T) {
	objs, store := members(t, testsupport.Table(scene.LightGroupMode))
	parts, err := partition.Group(objs, store.Camera(), opts)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 partitions, got %d", len(parts))
	}
	assertExact(t, objs, parts)
	// Largest projected area first.
	if parts[0].Members[0] != "part1" || parts[2].Members[0] != "part3" {
		t.Fatalf("unexpected order %v %v %v", parts[0].Members, parts[1].Members, parts[2].Members)
	}
}

func TestSpreadObjectsShareOnePartition(t *testing.T) {
	objs, store := members(t, testsupport.SpreadTable(scene.LightGroupMode))
	parts, err := partition.Group(objs, store.Camera(), opts)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(parts) != 1 || len(parts[0].Members) != 3 {
		t.Fatalf("expected one partition of three, got %+v", parts)
	}
	for i := range parts {
		for j := i + 1; j < len(parts); j++ {
			if parts[i].Mask.Overlaps(parts[j].Mask) {
				t.Fatal("partition masks overlap")
			}
		}
	}
}

func TestPartitionIsDeterministic(t *testing.T) {
	sc := testsupport.Table(scene.LightGroupMode)
	for i := 0; i < 6; i++ {
		lo := float32(i) * 0.15
		sc.Objects = append(sc.Objects, &scene.Object{
			ID:        fmt.Sprintf("extra%d", i),
			Kind:      scene.KindMesh,
			Mesh:      mesh.Box(math32.Vec3(lo, 0.1, 0), math32.Vec3(lo+0.2, 0.4, 0.1)),
			Transform: scene.Identity(),
			BakeGroup: "Parts",
			Declared:  100 + i,
		})
	}
	objs, store := members(t, sc)
	first, err := partition.Group(objs, store.Camera(), opts)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	assertExact(t, objs, first)

	reversed := slices.Clone(objs)
	slices.Reverse(reversed)
	for run := 0; run < 3; run++ {
		again, err := partition.Group(reversed, store.Camera(), opts)
		if err != nil {
			t.Fatalf("Group: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: %d partitions, want %d", run, len(again), len(first))
		}
		for i := range first {
			if !slices.Equal(first[i].Members, again[i].Members) {
				t.Fatalf("run %d partition %d: %v vs %v", run, i, again[i].Members, first[i].Members)
			}
		}
	}
}

func TestFullyOverlappingDegeneratesToOnePerObject(t *testing.T) {
	sc := testsupport.Table(scene.LightGroupMode)
	for _, obj := range sc.Objects[:3] {
		obj.Mesh = mesh.Box(math32.Vec3(0.4, 0.9, 0), math32.Vec3(0.6, 1.1, 0.1))
	}
	objs, store := members(t, sc)
	parts, err := partition.Group(objs, store.Camera(), opts)
	if err != nil {
		t.Fatalf("Group: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected one partition per object, got %d", len(parts))
	}
	// Identical areas fall back to declaration order.
	for i, p := range parts {
		if want := fmt.Sprintf("part%d", i+1); p.Members[0] != want {
			t.Fatalf("partition %d holds %v, want %s", i, p.Members, want)
		}
	}
}

func TestOccludedReportsHiddenObjects(t *testing.T) {
	sc := testsupport.Table(scene.LightGroupMode)
	sc.Objects[2].Mesh = mesh.Box(math32.Vec3(0.45, 0.95, 0.01), math32.Vec3(0.55, 1.05, 0.02))
	// part3 now sits inside part1's volume, below its top face.
	store := testsupport.MustLoadScene(t, sc)
	objs := store.Members("Parts")
	hidden := partition.Occluded(objs, store.Occluders(), store.Camera(), 64, 128)
	if !slices.Equal(hidden, []string{"part3"}) {
		t.Fatalf("expected part3 hidden, got %v", hidden)
	}
}

func TestGroupRejectsBadOptions(t *testing.T) {
	objs, store := members(t, testsupport.Table(scene.LightGroupMode))
	if _, err := partition.Group(objs, store.Camera(), partition.Options{}); err == nil {
		t.Fatal("expected error for zero mask size")
	}
}
