package render

import (
	"image"

	"cogentcore.org/core/math32"

	"lightmapper/internal/camera"
	"lightmapper/internal/raster"
	"lightmapper/internal/scene"
)

// Measured influence radii per shadow radius bucket for emissions of
// 1, 10, 100 and 1000, interpolated on log10(emission).
var (
	pointAOI = map[float32][4]float32{
		0.01: {1.069, 2.019, 4.314, 10.00},
		0.05: {1.093, 2.139, 4.434, 10.00},
		0.10: {1.214, 2.223, 4.656, 10.00},
	}
	meshAOI = map[float32][4]float32{
		0.01: {0.240, 0.252, 0.409, 0.625},
		0.05: {0.613, 1.202, 2.223, 4.530},
		0.10: {0.961, 1.790, 3.436, 6.140},
	}
)

// InfluenceRadius returns the world-space radius beyond which the emitter
// no longer contributes visibly. ok is false when the emitter has AOI
// disabled or is too bright for the measured table.
func InfluenceRadius(obj *scene.Object) (center math32.Vector3, radius float32, ok bool) {
	em := obj.Emission()
	if !em.AOI || em.Energy <= 0 {
		return math32.Vector3{}, 0, false
	}
	table := pointAOI
	size := em.ShadowRadius
	if obj.Kind == scene.KindMesh {
		table = meshAOI
		size = obj.WorldBounds().Size().Length() / 2
	}
	p := math32.Log10(em.Energy)
	if p >= 3 {
		return math32.Vector3{}, 0, false
	}
	if p < 0 {
		p = 0
	}
	i := int(math32.Floor(p))
	a := p - float32(i)
	row := table[bucket(size)]
	return obj.EmitterPosition(), (1-a)*row[i] + a*row[i+1], true
}

func bucket(size float32) float32 {
	switch {
	case size <= 0.01:
		return 0.01
	case size <= 0.05:
		return 0.05
	default:
		return 0.10
	}
}

// Influence is the projected area of influence of one emitter.
type Influence struct {
	// Full is set when the emitter has no usable AOI; it forces a full
	// frame render.
	Full bool
	// Rect is the normalized screen bounding box of the influence ellipse.
	Rect math32.Box2
	// Touches reports whether the ellipse covers any pixel of the mask.
	Touches bool
}

// ProjectInfluence projects the emitter's influence sphere to an ellipse
// and tests it against the partition mask.
func ProjectInfluence(obj *scene.Object, cam camera.Camera, mask *raster.Mask) Influence {
	center, radius, ok := InfluenceRadius(obj)
	if !ok {
		return Influence{Full: true, Touches: true}
	}
	screen, _, visible := cam.Project(center)
	rx, ry, sized := cam.ProjectedRadius(center, radius)
	if !visible || !sized {
		// A light behind the camera still lights visible geometry.
		return Influence{Full: true, Touches: true}
	}
	rect := math32.B2(screen.X-rx, screen.Y-ry, screen.X+rx, screen.Y+ry).Intersect(math32.B2(0, 0, 1, 1))
	inf := Influence{Rect: rect}
	if mask == nil {
		inf.Touches = !rect.IsEmpty()
		return inf
	}
	inf.Touches = mask.TouchesEllipse(screen, rx, ry)
	return inf
}

// Border combines the influences of a situation's lights. skip is true when
// no light reaches the partition; an empty border means full frame.
func Border(influences []Influence, w, h int) (border image.Rectangle, skip bool) {
	union := math32.B2Empty()
	touched := false
	for _, inf := range influences {
		if inf.Full {
			return image.Rectangle{}, false
		}
		if !inf.Touches {
			continue
		}
		touched = true
		union = union.Union(inf.Rect)
	}
	if !touched {
		return image.Rectangle{}, true
	}
	r := image.Rect(
		int(math32.Floor(union.Min.X*float32(w))),
		int(math32.Floor(union.Min.Y*float32(h))),
		int(math32.Ceil(union.Max.X*float32(w))),
		int(math32.Ceil(union.Max.Y*float32(h))),
	).Intersect(image.Rect(0, 0, w, h))
	if r.Empty() {
		return image.Rectangle{}, true
	}
	return r, false
}
