package meshopt

import (
	"math"

	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
)

type edgeKey struct{ a, b int }

func undirected(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// dissolve merges coplanar regions of faces whose normals deviate from the
// region seed by at most angleDeg. A region bounded by one simple loop is
// re-triangulated from its boundary, dropping interior vertices and
// collinear boundary vertices no other face uses. The outline of every
// region is unchanged. It returns the number of faces removed.
func dissolve(m *mesh.Mesh, angleDeg float32) int {
	n := m.FaceCount()
	if n < 2 || angleDeg < 0 {
		return 0
	}
	cosLimit := float32(math.Cos(float64(angleDeg) * math.Pi / 180))

	normals := make([]math32.Vector3, n)
	flat := make([]bool, n)
	adjacent := make(map[edgeKey][]int, n*3/2)
	uses := make([]int, m.VertexCount())
	for f, face := range m.Faces {
		normals[f], flat[f] = faceNormal(m, f)
		for k := range 3 {
			e := undirected(face.V[k], face.V[(k+1)%3])
			adjacent[e] = append(adjacent[e], f)
			uses[face.V[k]]++
		}
	}

	visited := make([]bool, n)
	out := make([]mesh.Face, 0, n)
	for seed := range m.Faces {
		if visited[seed] {
			continue
		}
		visited[seed] = true
		region := []int{seed}
		if flat[seed] {
			for i := 0; i < len(region); i++ {
				face := m.Faces[region[i]]
				for k := range 3 {
					for _, g := range adjacent[undirected(face.V[k], face.V[(k+1)%3])] {
						if visited[g] || !flat[g] {
							continue
						}
						other := m.Faces[g]
						if other.Object != m.Faces[seed].Object || other.Partition != m.Faces[seed].Partition {
							continue
						}
						if normals[g].Dot(normals[seed]) < cosLimit {
							continue
						}
						visited[g] = true
						region = append(region, g)
					}
				}
			}
		}
		if len(region) > 1 {
			if tris, ok := retriangulate(m, region, normals[seed], uses); ok && len(tris) <= len(region) {
				out = append(out, tris...)
				continue
			}
		}
		for _, f := range region {
			out = append(out, m.Faces[f])
		}
	}
	removed := n - len(out)
	m.Faces = out
	m.Compact()
	return removed
}

// retriangulate returns the ear-clipped triangulation of the region outline,
// or false when the outline is not a single simple loop.
func retriangulate(m *mesh.Mesh, region []int, normal math32.Vector3, uses []int) ([]mesh.Face, bool) {
	count := make(map[edgeKey]int, len(region)*3)
	inRegion := make(map[int]int, len(region)*3)
	for _, f := range region {
		face := m.Faces[f]
		for k := range 3 {
			count[undirected(face.V[k], face.V[(k+1)%3])]++
			inRegion[face.V[k]]++
		}
	}
	next := make(map[int]int)
	for _, f := range region {
		face := m.Faces[f]
		for k := range 3 {
			a, b := face.V[k], face.V[(k+1)%3]
			if count[undirected(a, b)] != 1 {
				continue
			}
			if _, dup := next[a]; dup {
				return nil, false
			}
			next[a] = b
		}
	}
	if len(next) < 3 {
		return nil, false
	}
	start := -1
	for v := range next {
		if start < 0 || v < start {
			start = v
		}
	}
	loop := make([]int, 0, len(next))
	for v := start; ; {
		loop = append(loop, v)
		nv, ok := next[v]
		if !ok {
			return nil, false
		}
		v = nv
		if v == start {
			break
		}
		if len(loop) > len(next) {
			return nil, false
		}
	}
	if len(loop) != len(next) {
		return nil, false
	}

	loop = dropCollinear(m, loop, func(v int) bool { return uses[v] == inRegion[v] })
	if len(loop) < 3 {
		return nil, false
	}

	u := perpendicular(normal)
	w := normal.Cross(u)
	pts := make([]math32.Vector2, len(loop))
	var area float32
	for i, v := range loop {
		p := m.Positions[v]
		pts[i] = math32.Vec2(p.Dot(u), p.Dot(w))
	}
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	if area <= 0 {
		return nil, false
	}
	tmpl := m.Faces[region[0]]
	idx, ok := earClip(pts)
	if !ok {
		return nil, false
	}
	tris := make([]mesh.Face, 0, len(idx))
	for _, t := range idx {
		face := tmpl
		face.V = [3]int{loop[t[0]], loop[t[1]], loop[t[2]]}
		tris = append(tris, face)
	}
	return tris, true
}

// dropCollinear removes loop vertices lying on the straight segment between
// their neighbours when removable reports no face outside the region needs them.
func dropCollinear(m *mesh.Mesh, loop []int, removable func(int) bool) []int {
	for changed := true; changed && len(loop) > 3; {
		changed = false
		for i := 0; i < len(loop) && len(loop) > 3; i++ {
			prev := m.Positions[loop[(i+len(loop)-1)%len(loop)]]
			cur := m.Positions[loop[i]]
			next := m.Positions[loop[(i+1)%len(loop)]]
			d0 := cur.Sub(prev)
			d1 := next.Sub(cur)
			l0, l1 := d0.Length(), d1.Length()
			if l0 == 0 || l1 == 0 {
				continue
			}
			if d0.Cross(d1).Length() > 1e-5*l0*l1 || d0.Dot(d1) <= 0 {
				continue
			}
			if !removable(loop[i]) {
				continue
			}
			loop = append(loop[:i], loop[i+1:]...)
			changed = true
			i--
		}
	}
	return loop
}

func perpendicular(n math32.Vector3) math32.Vector3 {
	axis := math32.Vec3(1, 0, 0)
	if math32.Abs(n.X) > 0.9 {
		axis = math32.Vec3(0, 1, 0)
	}
	return n.Cross(axis).Normal()
}

// earClip triangulates a counter-clockwise simple polygon.
func earClip(pts []math32.Vector2) ([][3]int, bool) {
	remaining := make([]int, len(pts))
	for i := range remaining {
		remaining[i] = i
	}
	out := make([][3]int, 0, len(pts)-2)
	for len(remaining) > 3 {
		clipped := false
		for i := range remaining {
			p := remaining[(i+len(remaining)-1)%len(remaining)]
			c := remaining[i]
			n := remaining[(i+1)%len(remaining)]
			if cross2(pts[p], pts[c], pts[n]) <= 1e-12 {
				continue
			}
			ear := true
			for _, o := range remaining {
				if o == p || o == c || o == n || pts[o] == pts[p] || pts[o] == pts[c] || pts[o] == pts[n] {
					continue
				}
				if insideOrOn(pts[o], pts[p], pts[c], pts[n]) {
					ear = false
					break
				}
			}
			if !ear {
				continue
			}
			out = append(out, [3]int{p, c, n})
			remaining = append(remaining[:i], remaining[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			return nil, false
		}
	}
	if cross2(pts[remaining[0]], pts[remaining[1]], pts[remaining[2]]) <= 1e-12 {
		return nil, false
	}
	out = append(out, [3]int{remaining[0], remaining[1], remaining[2]})
	return out, true
}

func cross2(a, b, c math32.Vector2) float32 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func insideOrOn(p, a, b, c math32.Vector2) bool {
	const eps = -1e-7
	return cross2(a, b, p) >= eps && cross2(b, c, p) >= eps && cross2(c, a, p) >= eps
}
