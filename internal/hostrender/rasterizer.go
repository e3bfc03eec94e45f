package hostrender

import (
	"context"
	"image"

	"cogentcore.org/core/math32"

	"lightmapper/internal/raster"
	"lightmapper/internal/scene"
)

const shadowBias = 1e-4

type triangle struct {
	object string
	a, b   math32.Vector3
	c      math32.Vector3
}

type target struct {
	obj      *scene.Object
	tris     []triangle
	emission float32
}

// Rasterizer is a software renderer: z-buffered targets, Lambert shading
// with inverse-square falloff, hard shadows from occluders and a uniform
// ambient term for the environment pass.
type Rasterizer struct{}

// NewRasterizer returns the bundled renderer.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// RenderView implements Renderer.
func (r *Rasterizer) RenderView(ctx context.Context, view View) (image.Image, error) {
	if err := view.Camera.Validate(); err != nil {
		return nil, err
	}
	out := Black(view.Width, view.Height)
	frame := view.Frame()
	if frame.Empty() {
		return out, nil
	}

	active := make(map[string]bool, len(view.Lights))
	for _, l := range view.Lights {
		active[l.ObjectID] = true
	}
	targets := make([]target, 0, len(view.Targets))
	for _, obj := range view.Targets {
		t := target{obj: obj, tris: triangles(obj)}
		if active[obj.ID] {
			t.emission = obj.Material.Emission
		}
		targets = append(targets, t)
	}
	var blockers []triangle
	for _, obj := range view.Occluders {
		blockers = append(blockers, triangles(obj)...)
	}

	w, h := view.Width, view.Height
	depth := make([]float32, w*h)
	for i := range depth {
		depth[i] = math32.Inf(1)
	}
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, tri := range t.tris {
			sa, da, oka := view.Camera.Project(tri.a)
			sb, db, okb := view.Camera.Project(tri.b)
			sc, dc, okc := view.Camera.Project(tri.c)
			if !oka || !okb || !okc {
				continue
			}
			normal := math32.Normal(tri.a, tri.b, tri.c)
			raster.ForEachPixel(w, h, sa, sb, sc, func(x, y int, bary [3]float32) {
				if !(image.Point{X: x, Y: y}).In(frame) {
					return
				}
				inv := bary[0]/da + bary[1]/db + bary[2]/dc
				d := 1 / inv
				i := y*w + x
				if d >= depth[i] {
					return
				}
				depth[i] = d
				// Perspective-correct world position.
				p := tri.a.MulScalar(bary[0] / da * d).
					Add(tri.b.MulScalar(bary[1] / db * d)).
					Add(tri.c.MulScalar(bary[2] / dc * d))
				rgb := shade(t, p, normal, view, blockers)
				out.SetNRGBA64(x, y, pixel(rgb[0], rgb[1], rgb[2]))
			})
		}
	}
	return out, nil
}

func shade(t target, p, n math32.Vector3, view View, blockers []triangle) [3]float32 {
	albedo := t.obj.Material.Color
	var irr [3]float32
	for i := range irr {
		irr[i] = view.Environment
	}
	origin := p.Add(n.MulScalar(shadowBias))
	for _, l := range view.Lights {
		toLight := l.Position.Sub(p)
		dist := toLight.Length()
		if dist == 0 {
			continue
		}
		dir := toLight.MulScalar(1 / dist)
		cos := n.Dot(dir)
		if cos <= 0 {
			continue
		}
		if blocked(origin, l.Position, l.ObjectID, blockers) {
			continue
		}
		falloff := l.Energy * cos / (dist*dist + l.Radius*l.Radius)
		for i := range irr {
			irr[i] += falloff * l.Color[i]
		}
	}
	var rgb [3]float32
	for i := range rgb {
		rgb[i] = albedo[i]*irr[i] + t.emission*albedo[i]
	}
	return rgb
}

func blocked(from, to math32.Vector3, light string, blockers []triangle) bool {
	seg := to.Sub(from)
	dist := seg.Length()
	if dist == 0 {
		return false
	}
	dir := seg.MulScalar(1 / dist)
	for _, tri := range blockers {
		if tri.object == light {
			continue
		}
		if hit, ok := intersect(from, dir, tri); ok && hit < dist-shadowBias {
			return true
		}
	}
	return false
}

// intersect is the Möller-Trumbore ray/triangle test.
func intersect(origin, dir math32.Vector3, tri triangle) (float32, bool) {
	const eps = 1e-7
	e1 := tri.b.Sub(tri.a)
	e2 := tri.c.Sub(tri.a)
	pv := dir.Cross(e2)
	det := e1.Dot(pv)
	if det > -eps && det < eps {
		return 0, false
	}
	inv := 1 / det
	tv := origin.Sub(tri.a)
	u := tv.Dot(pv) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	qv := tv.Cross(e1)
	v := dir.Dot(qv) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(qv) * inv
	return t, t > eps
}

func triangles(obj *scene.Object) []triangle {
	world := obj.WorldMesh()
	out := make([]triangle, 0, world.FaceCount())
	for f := range world.Faces {
		if world.Degenerate(f) {
			continue
		}
		a, b, c := world.Corners(f)
		out = append(out, triangle{object: obj.ID, a: a, b: b, c: c})
	}
	return out
}
