package mesh

import "cogentcore.org/core/math32"

// Box builds a closed axis aligned box with outward counter-clockwise faces.
func Box(min, max math32.Vector3) *Mesh {
	m := New(8, 12)
	corner := func(i, j, k int) int {
		return i | j<<1 | k<<2
	}
	for idx := 0; idx < 8; idx++ {
		p := min
		if idx&1 != 0 {
			p.X = max.X
		}
		if idx&2 != 0 {
			p.Y = max.Y
		}
		if idx&4 != 0 {
			p.Z = max.Z
		}
		m.AddVertex(p, math32.Vector2{})
	}
	quads := [][4][3]int{
		{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
		{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}},
		{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
		{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
		{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}},
		{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}},
	}
	for _, q := range quads {
		a := corner(q[0][0], q[0][1], q[0][2])
		b := corner(q[1][0], q[1][1], q[1][2])
		c := corner(q[2][0], q[2][1], q[2][2])
		d := corner(q[3][0], q[3][1], q[3][2])
		m.AddFace(a, b, c, "", 0)
		m.AddFace(a, c, d, "", 0)
	}
	return m
}

// Grid builds a flat rectangle at height z facing +Z, split into nx by ny cells.
func Grid(minX, minY, maxX, maxY, z float32, nx, ny int) *Mesh {
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	m := New((nx+1)*(ny+1), nx*ny*2)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			x := minX + (maxX-minX)*float32(i)/float32(nx)
			y := minY + (maxY-minY)*float32(j)/float32(ny)
			m.AddVertex(math32.Vec3(x, y, z), math32.Vector2{})
		}
	}
	at := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a, b, c, d := at(i, j), at(i+1, j), at(i+1, j+1), at(i, j+1)
			m.AddFace(a, b, c, "", 0)
			m.AddFace(a, c, d, "", 0)
		}
	}
	return m
}
