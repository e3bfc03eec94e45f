package meshopt

import (
	"image"

	"lightmapper/internal/hostrender"
	"lightmapper/internal/mesh"
	"lightmapper/internal/raster"
)

// LightMesh is the pruned copy of a base mesh carrying one situation.
type LightMesh struct {
	Mesh *mesh.Mesh
	// HDRRange is the brightest channel value seen on a visible lit pixel.
	HDRRange float32
	Lit      int
}

// Empty reports whether the situation lights nothing on the mesh.
func (l LightMesh) Empty() bool {
	return l.Mesh == nil || l.Mesh.Empty()
}

// influence holds the max-filtered luminance and brightest channel of one
// or more renders at the prune resolution.
type influence struct {
	w, h int
	luma []float32
	max  []float32
}

// newInfluence downsamples a render keeping the brightest premultiplied
// value of each block of source pixels.
func newInfluence(img *image.NRGBA64, w, h int) *influence {
	inf := &influence{w: w, h: h, luma: make([]float32, w*h), max: make([]float32, w*h)}
	if img == nil {
		return inf
	}
	sw, sh := img.Rect.Dx(), img.Rect.Dy()
	for y := range h {
		y0, y1 := block(y, h, sh)
		for x := range w {
			x0, x1 := block(x, w, sw)
			var r, g, b float32
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					pr, pg, pb, pa := hostrender.Radiance(img, sx, sy)
					r = max(r, pr*pa)
					g = max(g, pg*pa)
					b = max(b, pb*pa)
				}
			}
			inf.set(x, y, r, g, b)
		}
	}
	return inf
}

func block(i, n, src int) (int, int) {
	lo := i * src / n
	hi := (i + 1) * src / n
	if hi <= lo {
		hi = lo + 1
	}
	return lo, min(hi, src)
}

func (inf *influence) set(x, y int, r, g, b float32) {
	i := y*inf.w + x
	inf.luma[i] = 0.299*r + 0.587*g + 0.114*b
	inf.max[i] = max(r, g, b)
}

// footprint returns the prune pixels covered by face f in render space,
// grown by one pixel so thin faces still register.
func footprint(m *mesh.Mesh, f, w, h int) []int {
	seen := make(map[int]struct{})
	a, b, c := m.ScreenCorners(f)
	raster.ForEachPixel(w, h, a, b, c, func(x, y int, _ [3]float32) {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				px, py := x+dx, y+dy
				if px < 0 || py < 0 || px >= w || py >= h {
					continue
				}
				seen[py*w+px] = struct{}{}
			}
		}
	})
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out
}

// DeriveLightMesh keeps the faces of base that one situation lights, plus a
// ring of neighbouring faces to fade the lightmap out. renders maps each
// partition index to its render for the situation. Vertex colors are 1 on
// lit faces and 0 on fade-only vertices. The result is empty when nothing is
// lit or the brightest lit value does not exceed twice the threshold.
func DeriveLightMesh(base *mesh.Mesh, renders map[int]*image.NRGBA64, opts Options) LightMesh {
	w, h := opts.PruneWidth, opts.PruneHeight
	threshold := opts.LightmapThreshold
	empty := LightMesh{Mesh: mesh.New(0, 0)}
	if base == nil || base.Empty() || w <= 0 || h <= 0 {
		return empty
	}

	parts := make(map[int]*influence, len(renders))
	global := &influence{w: w, h: h, luma: make([]float32, w*h), max: make([]float32, w*h)}
	for idx, img := range renders {
		inf := newInfluence(img, w, h)
		parts[idx] = inf
		for i := range inf.max {
			global.max[i] = max(global.max[i], inf.max[i])
			global.luma[i] = max(global.luma[i], inf.luma[i])
		}
	}

	var hdr float32
	lit := make([]bool, base.FaceCount())
	litCount := 0
	for f, face := range base.Faces {
		own := parts[face.Partition]
		for _, p := range footprint(base, f, w, h) {
			if global.max[p] <= threshold {
				continue
			}
			hdr = max(hdr, global.max[p])
			if own != nil && own.luma[p] > threshold && !lit[f] {
				lit[f] = true
				litCount++
			}
		}
	}
	if litCount == 0 || hdr <= 2*threshold {
		return empty
	}

	litVertex := make([]bool, base.VertexCount())
	for f, face := range base.Faces {
		if lit[f] {
			for _, v := range face.V {
				litVertex[v] = true
			}
		}
	}
	keep := make([]bool, base.FaceCount())
	for f, face := range base.Faces {
		keep[f] = lit[f] || litVertex[face.V[0]] || litVertex[face.V[1]] || litVertex[face.V[2]]
	}

	tagged := base.Clone()
	tagged.Colors = make([]float32, tagged.VertexCount())
	for v, on := range litVertex {
		if on {
			tagged.Colors[v] = 1
		}
	}
	out := tagged.Subset(func(f int) bool { return keep[f] })
	return LightMesh{Mesh: out, HDRRange: hdr, Lit: litCount}
}
