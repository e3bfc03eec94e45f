// Package hostrender is the boundary to the renderer that produces the bake
// images. Renderer is the contract the pipeline relies on; Rasterizer is the
// bundled deterministic software implementation.
//
// Images carry linear HDR radiance in 16-bit channels: a stored value v maps
// to v/65535*HDRScale. Alpha holds target coverage.
package hostrender

import (
	"context"
	"image"

	"cogentcore.org/core/math32"

	"lightmapper/internal/camera"
	"lightmapper/internal/scene"
)

// LightSource is one active emitter of a view.
type LightSource struct {
	ObjectID string
	Position math32.Vector3
	Color    [3]float32
	Energy   float32
	Radius   float32
}

// View describes one render request.
type View struct {
	Camera camera.Camera
	// Targets are drawn; Occluders only cast shadows.
	Targets   []*scene.Object
	Occluders []*scene.Object
	Lights    []LightSource
	// Environment is the uniform ambient radiance of the base pass.
	Environment float32
	Width       int
	Height      int
	// Border limits rendering to a pixel rectangle; empty means full frame.
	Border image.Rectangle
}

// Frame returns the pixel rectangle that will be rendered.
func (v View) Frame() image.Rectangle {
	full := image.Rect(0, 0, v.Width, v.Height)
	if v.Border.Empty() {
		return full
	}
	return v.Border.Intersect(full)
}

// Renderer renders a view. Identical views must produce identical images.
type Renderer interface {
	RenderView(ctx context.Context, view View) (image.Image, error)
}

// LightFromObject converts an emitter to a light source.
func LightFromObject(obj *scene.Object) LightSource {
	em := obj.Emission()
	return LightSource{
		ObjectID: obj.ID,
		Position: obj.EmitterPosition(),
		Color:    em.Color,
		Energy:   em.Energy,
		Radius:   em.ShadowRadius,
	}
}
