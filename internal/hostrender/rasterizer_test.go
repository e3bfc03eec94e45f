package hostrender_test

import (
	"bytes"
	"context"
	"image"
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/camera"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/mesh"
	"lightmapper/internal/scene"
)

func floorView() hostrender.View {
	floor := &scene.Object{
		ID:        "floor",
		Kind:      scene.KindMesh,
		Mesh:      mesh.Grid(-1, -1, 1, 1, 0, 4, 4),
		Material:  scene.Material{Color: [3]float32{1, 1, 1}, Opaque: true},
		Transform: scene.Identity(),
	}
	return hostrender.View{
		Camera: camera.Camera{
			Position: math32.Vec3(0, 0, 2),
			Target:   math32.Vec3(0, 0, 0),
			Up:       math32.Vec3(0, 1, 0),
			FOV:      60,
			Aspect:   1,
		},
		Targets:   []*scene.Object{floor},
		Occluders: []*scene.Object{floor},
		Width:     32,
		Height:    32,
	}
}

func render(t *testing.T, view hostrender.View) *image.NRGBA64 {
	t.Helper()
	img, err := hostrender.NewRasterizer().RenderView(context.Background(), view)
	if err != nil {
		t.Fatalf("RenderView: %v", err)
	}
	return hostrender.ToNRGBA64(img)
}

func TestEnvironmentPassCoversTarget(t *testing.T) {
	view := floorView()
	view.Environment = 0.5
	img := render(t, view)
	r, _, _, a := hostrender.Radiance(img, 16, 16)
	if a != 1 {
		t.Fatalf("expected full coverage, got %v", a)
	}
	if r < 0.49 || r > 0.51 {
		t.Fatalf("expected ambient radiance 0.5, got %v", r)
	}
}

func TestLightFalloffAndDeterminism(t *testing.T) {
	view := floorView()
	view.Lights = []hostrender.LightSource{{ObjectID: "l", Position: math32.Vec3(0, 0, 1), Color: [3]float32{1, 1, 1}, Energy: 1}}
	first := render(t, view)
	second := render(t, view)
	if !bytes.Equal(first.Pix, second.Pix) {
		t.Fatal("identical views must render identical images")
	}
	center := hostrender.MaxChannel(first, 16, 16)
	edge := hostrender.MaxChannel(first, 16, 2)
	if center < 0.9 || center <= edge {
		t.Fatalf("expected bright center and darker edge, got %v and %v", center, edge)
	}
}

func TestOccluderCastsShadow(t *testing.T) {
	view := floorView()
	view.Lights = []hostrender.LightSource{{ObjectID: "l", Position: math32.Vec3(0, 0, 1), Color: [3]float32{1, 1, 1}, Energy: 1}}
	blocker := &scene.Object{
		ID:        "blocker",
		Kind:      scene.KindMesh,
		Mesh:      mesh.Box(math32.Vec3(-0.2, -0.2, 0.5), math32.Vec3(0.2, 0.2, 0.6)),
		Transform: scene.Identity(),
	}
	view.Occluders = append(view.Occluders, blocker)
	img := render(t, view)
	if v := hostrender.MaxChannel(img, 16, 16); v != 0 {
		t.Fatalf("expected shadowed center, got %v", v)
	}
}

func TestBorderLimitsRender(t *testing.T) {
	view := floorView()
	view.Environment = 1
	view.Border = image.Rect(0, 0, 8, 8)
	img := render(t, view)
	if _, _, _, a := hostrender.Radiance(img, 4, 4); a == 0 {
		t.Fatal("pixel inside border should be rendered")
	}
	if _, _, _, a := hostrender.Radiance(img, 20, 20); a != 0 {
		t.Fatal("pixel outside border should stay empty")
	}
}

func TestEncodeDecode(t *testing.T) {
	if hostrender.Encode(-1) != 0 || hostrender.Encode(100) != 0xffff {
		t.Fatal("encode must clamp")
	}
	v := hostrender.Decode(hostrender.Encode(1.25))
	if math32.Abs(v-1.25) > 1e-3 {
		t.Fatalf("round trip drifted: %v", v)
	}
}
