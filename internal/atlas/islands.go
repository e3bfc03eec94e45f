// Package atlas packs the UV islands of baked meshes into texture atlases and
// composites the rendered texels into them.
package atlas

import (
	"cmp"
	"image"
	"slices"

	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
)

// Island is a set of faces connected through shared vertices and textured
// from one source image.
type Island struct {
	Faces  []int
	Source int
	// Rect is the pixel bounding box in the source image, padding included.
	Rect image.Rectangle
}

// Area returns the padded pixel area of the island.
func (i Island) Area() int {
	return i.Rect.Dx() * i.Rect.Dy()
}

type islandKey struct {
	root   int
	source int
}

// findIslands groups faces into islands and measures them in source pixels.
// coords are per-vertex coordinates normalized to the source image, sizes
// holds the pixel size of every source. Islands are ordered by padded area,
// largest first, then by their first face.
func findIslands(m *mesh.Mesh, coords []math32.Vector2, sourceOf func(f int) int, sizes map[int]image.Point, padding int) []Island {
	parent := make([]int, m.VertexCount())
	for i := range parent {
		parent[i] = i
	}
	find := func(v int) int {
		for parent[v] != v {
			parent[v] = parent[parent[v]]
			v = parent[v]
		}
		return v
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[max(ra, rb)] = min(ra, rb)
		}
	}
	for _, f := range m.Faces {
		union(f.V[0], f.V[1])
		union(f.V[1], f.V[2])
	}

	index := make(map[islandKey]int)
	var islands []Island
	for f, face := range m.Faces {
		key := islandKey{root: find(face.V[0]), source: sourceOf(f)}
		i, ok := index[key]
		if !ok {
			i = len(islands)
			index[key] = i
			islands = append(islands, Island{Source: key.source})
		}
		islands[i].Faces = append(islands[i].Faces, f)
	}

	for i := range islands {
		size := sizes[islands[i].Source]
		box := math32.B2Empty()
		for _, f := range islands[i].Faces {
			for _, v := range m.Faces[f].V {
				box.ExpandByPoint(math32.Vec2(coords[v].X*float32(size.X), coords[v].Y*float32(size.Y)))
			}
		}
		r := image.Rect(
			int(math32.Floor(box.Min.X)), int(math32.Floor(box.Min.Y)),
			int(math32.Ceil(box.Max.X)), int(math32.Ceil(box.Max.Y)),
		)
		if r.Dx() == 0 {
			r.Max.X++
		}
		if r.Dy() == 0 {
			r.Max.Y++
		}
		islands[i].Rect = r.Inset(-padding)
	}

	slices.SortStableFunc(islands, func(a, b Island) int {
		if c := cmp.Compare(b.Area(), a.Area()); c != 0 {
			return c
		}
		return cmp.Compare(a.Faces[0], b.Faces[0])
	})
	return islands
}
