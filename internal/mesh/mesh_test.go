package mesh_test

import (
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
)

func TestBoxNormalsPointOutward(t *testing.T) {
	box := mesh.Box(math32.Vec3(0, 0, 0), math32.Vec3(2, 2, 2))
	if box.VertexCount() != 8 || box.FaceCount() != 12 {
		t.Fatalf("unexpected box size: %d vertices %d faces", box.VertexCount(), box.FaceCount())
	}
	center := math32.Vec3(1, 1, 1)
	for f := range box.Faces {
		out := box.FaceCenter(f).Sub(center)
		if box.FaceNormal(f).Dot(out) <= 0 {
			t.Fatalf("face %d normal points inward", f)
		}
	}
}

func TestGridFacesPointUp(t *testing.T) {
	grid := mesh.Grid(0, 0, 3, 2, 1, 3, 2)
	if grid.VertexCount() != 12 || grid.FaceCount() != 12 {
		t.Fatalf("unexpected grid size: %d vertices %d faces", grid.VertexCount(), grid.FaceCount())
	}
	for f := range grid.Faces {
		if n := grid.FaceNormal(f); n.Z < 0.99 {
			t.Fatalf("face %d normal %v not +Z", f, n)
		}
	}
}

func TestSubsetKeepsAttributes(t *testing.T) {
	grid := mesh.Grid(0, 0, 2, 1, 0, 2, 1)
	for i := range grid.UVs {
		grid.UVs[i] = math32.Vec2(grid.Positions[i].X/2, grid.Positions[i].Y)
	}
	sub := grid.Subset(func(f int) bool { return f < 2 })
	if sub.FaceCount() != 2 {
		t.Fatalf("expected 2 faces, got %d", sub.FaceCount())
	}
	if sub.VertexCount() != 4 {
		t.Fatalf("expected unused vertices dropped, got %d", sub.VertexCount())
	}
	for i, p := range sub.Positions {
		if want := math32.Vec2(p.X/2, p.Y); sub.UVs[i] != want {
			t.Fatalf("vertex %d uv %v want %v", i, sub.UVs[i], want)
		}
	}
}

func TestAppendOffsetsIndicesAndColors(t *testing.T) {
	a := mesh.Grid(0, 0, 1, 1, 0, 1, 1)
	b := mesh.Grid(2, 0, 3, 1, 0, 1, 1)
	b.Colors = []float32{0, 0, 1, 1}
	a.Append(b)
	if a.VertexCount() != 8 || a.FaceCount() != 4 {
		t.Fatalf("unexpected merged size %d/%d", a.VertexCount(), a.FaceCount())
	}
	if a.Faces[2].V[0] != 4 {
		t.Fatalf("expected offset index 4, got %d", a.Faces[2].V[0])
	}
	if a.Color(0) != 1 || a.Color(4) != 0 {
		t.Fatalf("unexpected colors %v", a.Colors)
	}
}
