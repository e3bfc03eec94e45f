package meshopt

import (
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
)

func TestDissolveKeepsRegionsWithHoles(t *testing.T) {
	grid := mesh.Grid(0, 0, 3, 3, 0, 3, 3)
	// drop the two faces of the center cell
	holed := grid.Subset(func(f int) bool { return f != 8 && f != 9 })
	before := holed.FaceCount()
	if removed := dissolve(holed, 1); removed != 0 {
		t.Fatalf("expected region with a hole untouched, removed %d faces", removed)
	}
	if holed.FaceCount() != before {
		t.Fatalf("face count changed: %d -> %d", before, holed.FaceCount())
	}
}

func TestDissolveKeepsSharedCollinearVertices(t *testing.T) {
	m := mesh.Grid(0, 0, 2, 1, 0, 2, 1)
	tip := m.AddVertex(math32.Vec3(1, 2, 1), math32.Vector2{})
	// tilted face hinged on the top edge, sharing vertex (1, 1, 0)
	m.AddFace(4, tip, 3, "", 0)

	dissolve(m, 1)
	if m.FaceCount() != 4 {
		t.Fatalf("expected 3 flat faces and the tilted one, got %d", m.FaceCount())
	}
	shared := math32.Vec3(1, 1, 0)
	dropped := math32.Vec3(1, 0, 0)
	flatUse := false
	for f, face := range m.Faces {
		flat := true
		for _, v := range face.V {
			if m.Positions[v].Z != 0 {
				flat = false
			}
		}
		for _, v := range face.V {
			if m.Positions[v] == dropped {
				t.Fatalf("face %d still uses the collinear vertex", f)
			}
			if flat && m.Positions[v] == shared {
				flatUse = true
			}
		}
	}
	if !flatUse {
		t.Fatal("expected the shared edge vertex to stay in the flat region")
	}
}

func TestEarClipSquare(t *testing.T) {
	pts := []math32.Vector2{math32.Vec2(0, 0), math32.Vec2(1, 0), math32.Vec2(1, 1), math32.Vec2(0, 1)}
	tris, ok := earClip(pts)
	if !ok || len(tris) != 2 {
		t.Fatalf("expected 2 triangles, got %v (ok=%v)", tris, ok)
	}
}
