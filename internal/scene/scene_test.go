package scene_test

import (
	"errors"
	"slices"
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/scene"
	"lightmapper/internal/testsupport"
)

func TestSituationsGroupMode(t *testing.T) {
	store := testsupport.MustLoadScene(t, testsupport.Table(scene.LightGroupMode))

	sits := store.Situations()
	if len(sits) != 2 {
		t.Fatalf("expected base plus one group situation, got %d", len(sits))
	}
	if !sits[0].IsBase || sits[0].Name != scene.BaseSituationName {
		t.Fatalf("first situation must be the environment pass, got %+v", sits[0])
	}
	if sits[1].Name != "GI" || len(sits[1].Lights) != 4 {
		t.Fatalf("unexpected group situation %+v", sits[1])
	}
}

func TestSituationsSplitMode(t *testing.T) {
	store := testsupport.MustLoadScene(t, testsupport.Table(scene.LightSplit))

	sits := store.Situations()
	if len(sits) != 5 {
		t.Fatalf("expected base plus four split situations, got %d", len(sits))
	}
	if sits[1].Name != "GI - GI 1" || !slices.Equal(sits[1].Lights, []string{"gi1"}) {
		t.Fatalf("unexpected split situation %+v", sits[1])
	}
	ids := map[string]bool{}
	for _, s := range sits {
		if ids[s.ID] {
			t.Fatalf("duplicate situation id %q", s.ID)
		}
		ids[s.ID] = true
	}
}

func TestWorldLightsFoldIntoBase(t *testing.T) {
	sc := testsupport.Table(scene.LightWorld)
	store := testsupport.MustLoadScene(t, sc)

	sits := store.Situations()
	if len(sits) != 1 {
		t.Fatalf("expected only the base situation, got %d", len(sits))
	}
	if len(sits[0].Lights) != 4 {
		t.Fatalf("expected world lights in base pass, got %v", sits[0].Lights)
	}
}

func TestUnassignedLightsReported(t *testing.T) {
	sc := testsupport.Table(scene.LightGroupMode)
	sc.Objects[3].LightGroup = ""
	sc.Objects[4].LightGroup = "missing"
	store := testsupport.MustLoadScene(t, sc)

	var ids []string
	for _, obj := range store.UnassignedLights() {
		ids = append(ids, obj.ID)
	}
	if !slices.Equal(ids, []string{"gi1", "gi2"}) {
		t.Fatalf("unexpected unassigned lights %v", ids)
	}
	sits := store.Situations()
	if len(sits[1].Lights) != 2 {
		t.Fatalf("unassigned lights must not be counted in the group, got %v", sits[1].Lights)
	}
}

func TestImportKeepsLockedAttributes(t *testing.T) {
	store := testsupport.MustLoadScene(t, testsupport.Table(scene.LightGroupMode))

	err := store.Update("part1", func(o *scene.Object) {
		o.Name = "User Name"
		o.BakeGroup = "Custom"
	}, scene.AttrName)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	next := testsupport.Table(scene.LightGroupMode)
	next.Objects[0].Name = "Source Name"
	report, err := store.Import(next)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(report.Created) != 0 || len(report.Trashed) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	obj, _ := store.Get("part1")
	if obj.Name != "User Name" {
		t.Fatalf("locked name overwritten: %q", obj.Name)
	}
	if obj.BakeGroup != "Parts" {
		t.Fatalf("unlocked bake group should take incoming value, got %q", obj.BakeGroup)
	}
}

func TestImportTrashesAndRestores(t *testing.T) {
	store := testsupport.MustLoadScene(t, testsupport.Table(scene.LightGroupMode))

	next := testsupport.Table(scene.LightGroupMode)
	next.Objects = slices.Delete(next.Objects, 1, 2)
	report, err := store.Import(next)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !slices.Equal(report.Trashed, []string{"part2"}) {
		t.Fatalf("expected part2 trashed, got %+v", report)
	}
	obj, ok := store.Get("part2")
	if !ok || obj.Class != scene.ClassTrash {
		t.Fatalf("trashed object must be kept in trash class, got %+v", obj)
	}
	if len(store.Members("Parts")) != 2 {
		t.Fatalf("trashed object must not be a member")
	}

	report, err = store.Import(testsupport.Table(scene.LightGroupMode))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !slices.Equal(report.Restored, []string{"part2"}) {
		t.Fatalf("expected part2 restored, got %+v", report)
	}
}

func TestImportRejectsDuplicateIDs(t *testing.T) {
	sc := testsupport.Table(scene.LightGroupMode)
	sc.Objects[1].ID = sc.Objects[0].ID
	if _, err := scene.Load(sc); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestTrashUnknownObject(t *testing.T) {
	store := scene.NewStore()
	if err := store.Trash("nope"); !errors.Is(err, scene.ErrUnknownObject) {
		t.Fatalf("expected ErrUnknownObject, got %v", err)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	store := testsupport.MustLoadScene(t, testsupport.Table(scene.LightGroupMode))
	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	_ = store.Update("part1", func(o *scene.Object) {
		o.Name = "changed"
		o.Mesh.Positions[0] = math32.Vec3(9, 9, 9)
	})
	obj, ok := snap.Get("part1")
	if !ok {
		t.Fatal("snapshot lost object")
	}
	if obj.Name != "Part 1" || obj.Mesh.Positions[0] == math32.Vec3(9, 9, 9) {
		t.Fatalf("snapshot shares state with the store: %+v", obj.Name)
	}
	if len(snap.Situations()) != 2 {
		t.Fatal("snapshot lost light groups")
	}
}

func TestTransformRoundTrip(t *testing.T) {
	tr := scene.Transform{
		Location: math32.Vec3(1, 2, 3),
		Rotation: math32.Vec3(10, 20, 30),
		Scale:    math32.Vec3(2, 2, 2),
	}
	p := math32.Vec3(0.5, -0.25, 1)
	back := tr.Inverse(tr.Apply(p))
	if back.Sub(p).Length() > 1e-4 {
		t.Fatalf("round trip drifted: %v vs %v", back, p)
	}
	rot := scene.Transform{Rotation: math32.Vec3(0, 0, 90)}
	q := rot.Apply(math32.Vec3(1, 0, 0))
	if q.Sub(math32.Vec3(0, 1, 0)).Length() > 1e-5 {
		t.Fatalf("z rotation should map +X to +Y, got %v", q)
	}
}

func TestFingerprintTracksGeometry(t *testing.T) {
	sc := testsupport.Table(scene.LightGroupMode)
	a := sc.Objects[0].Fingerprint()
	if a != sc.Objects[0].Clone().Fingerprint() {
		t.Fatal("fingerprint must be stable for identical objects")
	}
	sc.Objects[0].Transform.Location.X += 0.1
	if a == sc.Objects[0].Fingerprint() {
		t.Fatal("fingerprint must change with the transform")
	}
}
