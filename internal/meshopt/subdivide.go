package meshopt

import (
	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
)

// subdivide splits edges whose render-space length, corrected for the image
// aspect, reaches the threshold. Each pass splits every long edge once at its
// midpoint and reprojects the new vertex. It returns the number of faces added.
func (b *builder) subdivide(m *mesh.Mesh) int {
	if b.opts.SubdivideThreshold <= 0 || b.opts.SubdividePasses <= 0 {
		return 0
	}
	aspect := b.opts.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	long := func(i, j int) bool {
		d := m.Screen[i].Sub(m.Screen[j])
		return math32.Sqrt(d.X*d.X*aspect*aspect+d.Y*d.Y) >= b.opts.SubdivideThreshold
	}
	before := m.FaceCount()
	for range b.opts.SubdividePasses {
		mids := make(map[edgeKey]int)
		midpoint := func(i, j int) int {
			key := undirected(i, j)
			if v, ok := mids[key]; ok {
				return v
			}
			p := m.Positions[i].Add(m.Positions[j]).MulScalar(0.5)
			uv, screen := b.project(p)
			v := m.AddProjected(p, uv, screen)
			if m.Colors != nil {
				m.Colors[v] = (m.Colors[i] + m.Colors[j]) / 2
			}
			mids[key] = v
			return v
		}
		faces := make([]mesh.Face, 0, len(m.Faces))
		split := false
		for _, face := range m.Faces {
			var cut [3]bool
			cuts := 0
			for k := range 3 {
				if long(face.V[k], face.V[(k+1)%3]) {
					cut[k] = true
					cuts++
				}
			}
			if cuts == 0 {
				faces = append(faces, face)
				continue
			}
			split = true
			faces = append(faces, splitFace(face, cut, cuts, midpoint)...)
		}
		m.Faces = faces
		if !split {
			break
		}
	}
	return m.FaceCount() - before
}

// splitFace replaces a triangle by 2, 3 or 4 triangles depending on how many
// of its edges are cut, preserving winding.
func splitFace(face mesh.Face, cut [3]bool, cuts int, midpoint func(i, j int) int) []mesh.Face {
	make3 := func(a, b, c int) mesh.Face {
		out := face
		out.V = [3]int{a, b, c}
		return out
	}
	v := face.V
	switch cuts {
	case 1:
		s := 0
		for k := range 3 {
			if cut[k] {
				s = k
			}
		}
		v0, v1, v2 := v[s], v[(s+1)%3], v[(s+2)%3]
		m01 := midpoint(v0, v1)
		return []mesh.Face{make3(v0, m01, v2), make3(m01, v1, v2)}
	case 2:
		s := 0
		for k := range 3 {
			if !cut[k] {
				s = (k + 1) % 3
			}
		}
		v0, v1, v2 := v[s], v[(s+1)%3], v[(s+2)%3]
		m01 := midpoint(v0, v1)
		m12 := midpoint(v1, v2)
		return []mesh.Face{make3(m01, v1, m12), make3(v0, m01, m12), make3(v0, m12, v2)}
	default:
		m01 := midpoint(v[0], v[1])
		m12 := midpoint(v[1], v[2])
		m20 := midpoint(v[2], v[0])
		return []mesh.Face{
			make3(v[0], m01, m20),
			make3(m01, v[1], m12),
			make3(m20, m12, v[2]),
			make3(m01, m12, m20),
		}
	}
}
