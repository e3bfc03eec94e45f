package testsupport

import (
	"fmt"
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/camera"
	"lightmapper/internal/mesh"
	"lightmapper/internal/scene"
)

// TablePlayfield is the playfield rectangle of the fixture table.
var TablePlayfield = camera.Playfield{MinX: 0, MinY: 0, MaxX: 1, MaxY: 2}

// Table returns a fixture with one default bake group holding three
// disjoint boxes stacked into a pyramid, so every pair of silhouettes
// overlaps from the bake camera, and one light group of four point lights
// in the given mode.
func Table(mode scene.LightMode) *scene.Scene {
	sc := &scene.Scene{
		Camera:    camera.Default(TablePlayfield, 0.5),
		Playfield: TablePlayfield,
		BakeGroups: []scene.BakeGroup{
			{Name: "Parts", Mode: scene.BakeDefault, Opaque: true},
		},
		LightGroups: []scene.LightGroup{
			{Name: "GI", Mode: mode},
		},
	}
	boxes := [][2]math32.Vector3{
		{math32.Vec3(0.2, 0.7, 0), math32.Vec3(0.8, 1.3, 0.05)},
		{math32.Vec3(0.3, 0.8, 0.1), math32.Vec3(0.7, 1.2, 0.15)},
		{math32.Vec3(0.4, 0.9, 0.2), math32.Vec3(0.6, 1.1, 0.25)},
	}
	for i, box := range boxes {
		sc.Objects = append(sc.Objects, &scene.Object{
			ID:        fmt.Sprintf("part%d", i+1),
			Name:      fmt.Sprintf("Part %d", i+1),
			Kind:      scene.KindMesh,
			Mesh:      mesh.Box(box[0], box[1]),
			Material:  scene.Material{Name: "white", Color: [3]float32{0.8, 0.8, 0.8}, Opaque: true},
			Transform: scene.Identity(),
			BakeGroup: "Parts",
			Declared:  i,
		})
	}
	lights := []math32.Vector3{
		math32.Vec3(0.5, 0.2, 0.5),
		math32.Vec3(0.5, 1.0, 0.5),
		math32.Vec3(0.5, 1.8, 0.5),
		math32.Vec3(0.5, 0.6, 0.5),
	}
	for i, pos := range lights {
		tr := scene.Identity()
		tr.Location = pos
		sc.Objects = append(sc.Objects, &scene.Object{
			ID:         fmt.Sprintf("gi%d", i+1),
			Name:       fmt.Sprintf("GI %d", i+1),
			Kind:       scene.KindLight,
			Transform:  tr,
			LightGroup: "GI",
			Light:      &scene.Light{Color: [3]float32{1, 1, 1}, Energy: 1, ShadowRadius: 0.01},
			Declared:   len(boxes) + i,
		})
	}
	return sc
}

// SpreadTable returns the Table fixture with the boxes moved apart on the
// playfield so that no silhouettes overlap.
func SpreadTable(mode scene.LightMode) *scene.Scene {
	sc := Table(mode)
	bands := [][2]float32{{0.1, 0.3}, {0.9, 1.1}, {1.7, 1.9}}
	for i, band := range bands {
		sc.Objects[i].Mesh = mesh.Box(math32.Vec3(0.3, band[0], 0), math32.Vec3(0.7, band[1], 0.05))
	}
	return sc
}

// MustLoadScene builds a scene store from sc.
func MustLoadScene(t testing.TB, sc *scene.Scene) *scene.Store {
	t.Helper()

	store, err := scene.Load(sc)
	if err != nil {
		t.Fatalf("scene.Load: %v", err)
	}
	return store
}
