// Package mesh holds the triangle geometry shared by the importer, the mesh
// optimizer, the atlas packer and the exporter.
//
// Attributes are stored per vertex: positions in world (or local) space,
// texture coordinates in image space (origin top-left, v down), the
// position of the vertex in the bake camera renders and a fade weight used
// by light meshes. For perspective-projected meshes texture and screen
// coordinates coincide until the atlas packer remaps the texture ones. Every face carries the scene object it came
// from and the partition whose render textures it.
package mesh

import (
	"cogentcore.org/core/math32"
)

// Face is one triangle.
type Face struct {
	V         [3]int
	Object    string
	Partition int
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Positions []math32.Vector3
	UVs       []math32.Vector2
	Screen    []math32.Vector2
	// Colors holds one fade weight per vertex; nil means fully weighted.
	Colors []float32
	Faces  []Face
}

// New returns an empty mesh with capacity for the given counts.
func New(vertices, faces int) *Mesh {
	return &Mesh{
		Positions: make([]math32.Vector3, 0, vertices),
		UVs:       make([]math32.Vector2, 0, vertices),
		Screen:    make([]math32.Vector2, 0, vertices),
		Faces:     make([]Face, 0, faces),
	}
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	if m == nil {
		return 0
	}
	return len(m.Positions)
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int {
	if m == nil {
		return 0
	}
	return len(m.Faces)
}

// Empty reports whether the mesh has no faces.
func (m *Mesh) Empty() bool {
	return m.FaceCount() == 0
}

// AddVertex appends a vertex whose screen position equals its texture
// coordinate and returns its index.
func (m *Mesh) AddVertex(p math32.Vector3, uv math32.Vector2) int {
	return m.AddProjected(p, uv, uv)
}

// AddProjected appends a vertex with distinct texture and screen
// coordinates and returns its index.
func (m *Mesh) AddProjected(p math32.Vector3, uv, screen math32.Vector2) int {
	m.Positions = append(m.Positions, p)
	m.UVs = append(m.UVs, uv)
	m.Screen = append(m.Screen, screen)
	if m.Colors != nil {
		m.Colors = append(m.Colors, 1)
	}
	return len(m.Positions) - 1
}

// AddFace appends a triangle.
func (m *Mesh) AddFace(a, b, c int, object string, partition int) {
	m.Faces = append(m.Faces, Face{V: [3]int{a, b, c}, Object: object, Partition: partition})
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	out := &Mesh{
		Positions: append([]math32.Vector3(nil), m.Positions...),
		UVs:       append([]math32.Vector2(nil), m.UVs...),
		Screen:    append([]math32.Vector2(nil), m.Screen...),
		Faces:     append([]Face(nil), m.Faces...),
	}
	if m.Colors != nil {
		out.Colors = append([]float32(nil), m.Colors...)
	}
	return out
}

// Color returns the fade weight of vertex i.
func (m *Mesh) Color(i int) float32 {
	if m.Colors == nil {
		return 1
	}
	return m.Colors[i]
}

// Corners returns the three positions of face f.
func (m *Mesh) Corners(f int) (math32.Vector3, math32.Vector3, math32.Vector3) {
	v := m.Faces[f].V
	return m.Positions[v[0]], m.Positions[v[1]], m.Positions[v[2]]
}

// UVCorners returns the three texture coordinates of face f.
func (m *Mesh) UVCorners(f int) (math32.Vector2, math32.Vector2, math32.Vector2) {
	v := m.Faces[f].V
	return m.UVs[v[0]], m.UVs[v[1]], m.UVs[v[2]]
}

// ScreenCorners returns the three render-space coordinates of face f.
func (m *Mesh) ScreenCorners(f int) (math32.Vector2, math32.Vector2, math32.Vector2) {
	v := m.Faces[f].V
	return m.Screen[v[0]], m.Screen[v[1]], m.Screen[v[2]]
}

// FaceNormal returns the unit normal of face f (counter-clockwise winding).
func (m *Mesh) FaceNormal(f int) math32.Vector3 {
	a, b, c := m.Corners(f)
	return math32.Normal(a, b, c)
}

// FaceCenter returns the centroid of face f.
func (m *Mesh) FaceCenter(f int) math32.Vector3 {
	a, b, c := m.Corners(f)
	return a.Add(b).Add(c).MulScalar(1.0 / 3)
}

// FaceArea returns the area of face f.
func (m *Mesh) FaceArea(f int) float32 {
	a, b, c := m.Corners(f)
	return b.Sub(a).Cross(c.Sub(a)).Length() / 2
}

// Bounds returns the axis aligned bounding box of all vertices.
func (m *Mesh) Bounds() math32.Box3 {
	box := math32.B3Empty()
	for _, p := range m.Positions {
		box.ExpandByPoint(p)
	}
	return box
}

// Append concatenates other into m, offsetting indices.
func (m *Mesh) Append(other *Mesh) {
	if other == nil {
		return
	}
	m.fill()
	other.fill()
	offset := len(m.Positions)
	if other.Colors != nil && m.Colors == nil {
		m.Colors = make([]float32, offset)
		for i := range m.Colors {
			m.Colors[i] = 1
		}
	}
	m.Positions = append(m.Positions, other.Positions...)
	m.UVs = append(m.UVs, other.UVs...)
	m.Screen = append(m.Screen, other.Screen...)
	if m.Colors != nil {
		for i := range other.Positions {
			m.Colors = append(m.Colors, other.Color(i))
		}
	}
	for _, f := range other.Faces {
		f.V = [3]int{f.V[0] + offset, f.V[1] + offset, f.V[2] + offset}
		m.Faces = append(m.Faces, f)
	}
}

// Compact drops vertices no face references, preserving the order of the rest.
func (m *Mesh) Compact() {
	m.fill()
	remap := make([]int, len(m.Positions))
	for i := range remap {
		remap[i] = -1
	}
	for _, f := range m.Faces {
		for _, v := range f.V {
			remap[v] = 0
		}
	}
	next := 0
	for i, r := range remap {
		if r < 0 {
			continue
		}
		remap[i] = next
		m.Positions[next] = m.Positions[i]
		m.UVs[next] = m.UVs[i]
		m.Screen[next] = m.Screen[i]
		if m.Colors != nil {
			m.Colors[next] = m.Colors[i]
		}
		next++
	}
	m.Positions = m.Positions[:next]
	m.UVs = m.UVs[:next]
	m.Screen = m.Screen[:next]
	if m.Colors != nil {
		m.Colors = m.Colors[:next]
	}
	for i := range m.Faces {
		for k, v := range m.Faces[i].V {
			m.Faces[i].V[k] = remap[v]
		}
	}
}

// Subset returns a new compacted mesh holding only the faces for which keep is true.
// Vertex attributes of kept faces are copied unchanged.
func (m *Mesh) Subset(keep func(f int) bool) *Mesh {
	out := m.Clone()
	out.Faces = out.Faces[:0]
	for i, f := range m.Faces {
		if keep(i) {
			out.Faces = append(out.Faces, f)
		}
	}
	out.Compact()
	return out
}

// fill pads missing texture and screen coordinates so every attribute slice
// matches the position count.
func (m *Mesh) fill() {
	for len(m.UVs) < len(m.Positions) {
		m.UVs = append(m.UVs, math32.Vector2{})
	}
	for len(m.Screen) < len(m.Positions) {
		m.Screen = append(m.Screen, m.UVs[len(m.Screen)])
	}
}

// Degenerate reports whether face f has a repeated vertex index.
func (m *Mesh) Degenerate(f int) bool {
	v := m.Faces[f].V
	return v[0] == v[1] || v[1] == v[2] || v[0] == v[2]
}
