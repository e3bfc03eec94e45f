package atlas_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/atlas"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/mesh"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
)

// quads builds one two-triangle island per screen rectangle.
func quads(partition int, rects ...[4]float32) *mesh.Mesh {
	m := mesh.New(0, 0)
	for _, r := range rects {
		a := m.AddVertex(math32.Vec3(r[0], r[1], 0), math32.Vec2(r[0], r[1]))
		b := m.AddVertex(math32.Vec3(r[2], r[1], 0), math32.Vec2(r[2], r[1]))
		c := m.AddVertex(math32.Vec3(r[2], r[3], 0), math32.Vec2(r[2], r[3]))
		d := m.AddVertex(math32.Vec3(r[0], r[3], 0), math32.Vec2(r[0], r[3]))
		m.AddFace(a, b, c, "obj", partition)
		m.AddFace(a, c, d, "obj", partition)
	}
	return m
}

// gradient encodes the pixel position in the red and green channels.
func gradient(w, h int) *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: hostrender.Encode(float32(x) / float32(w)),
				G: hostrender.Encode(float32(y) / float32(h)),
				A: 0xffff,
			})
		}
	}
	return img
}

func options() atlas.Options {
	return atlas.Options{Padding: 1, MaxSize: 256, RenderWidth: 32, RenderHeight: 64}
}

func TestPackCopiesTexelsAtPureTranslation(t *testing.T) {
	m := quads(0, [4]float32{0.125, 0.125, 0.375, 0.25}, [4]float32{0.5, 0.5, 0.875, 0.75})
	render := gradient(32, 64)
	at, err := atlas.Pack(context.Background(), m, map[int]*image.NRGBA64{0: render}, options())
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if at.Islands != 2 {
		t.Fatalf("expected 2 islands, got %d", at.Islands)
	}
	size := at.Image.Rect.Dx()
	if size != at.Image.Rect.Dy() || size&(size-1) != 0 {
		t.Fatalf("atlas is not a power of two square: %v", at.Image.Rect)
	}

	probes := []image.Point{{8, 12}, {22, 40}}
	for island := range 2 {
		var offset math32.Vector2
		for k := range 4 {
			v := island*4 + k
			uv := at.Mesh.UVs[v]
			if uv.X < 0 || uv.Y < 0 || uv.X > 1 || uv.Y > 1 {
				t.Fatalf("vertex %d uv %v outside atlas", v, uv)
			}
			d := uv.MulScalar(float32(size)).Sub(math32.Vec2(m.Screen[v].X*32, m.Screen[v].Y*64))
			if k == 0 {
				offset = d
				if d.X != math32.Floor(d.X) || d.Y != math32.Floor(d.Y) {
					t.Fatalf("island %d offset %v is not whole pixels", island, d)
				}
				continue
			}
			if d != offset {
				t.Fatalf("island %d is not translated uniformly: %v vs %v", island, d, offset)
			}
			if at.Mesh.Screen[v] != m.Screen[v] {
				t.Fatalf("vertex %d screen coordinate changed", v)
			}
		}
		p := probes[island]
		got := at.Image.NRGBA64At(p.X+int(offset.X), p.Y+int(offset.Y))
		if want := render.NRGBA64At(p.X, p.Y); got != want {
			t.Fatalf("island %d texel %v want %v", island, got, want)
		}
	}
}

func TestPackRejectsOversizedAtlas(t *testing.T) {
	m := quads(0, [4]float32{0, 0, 1, 1})
	opts := options()
	opts.MaxSize = 16
	_, err := atlas.Pack(context.Background(), m, nil, opts)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPackEmptyMesh(t *testing.T) {
	at, err := atlas.Pack(context.Background(), mesh.New(0, 0), nil, options())
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !at.Empty() {
		t.Fatal("expected empty atlas")
	}
}

func TestMergeSkipsPlayfieldAndMovable(t *testing.T) {
	ctx := context.Background()
	render := gradient(32, 64)
	first, err := atlas.Pack(ctx, quads(0, [4]float32{0.125, 0.125, 0.375, 0.25}), map[int]*image.NRGBA64{0: render}, options())
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	second, err := atlas.Pack(ctx, quads(1, [4]float32{0.5, 0.5, 0.875, 0.75}), map[int]*image.NRGBA64{1: render}, options())
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	pf, err := atlas.Resample(ctx, quads(0, [4]float32{0, 0, 1, 1}), map[int]*image.NRGBA64{0: render}, options())
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	items := []atlas.Item{
		{Group: "Parts", Mode: scene.BakeDefault, Atlas: first},
		{Group: "Playfield", Mode: scene.BakePlayfield, Atlas: pf},
		{Group: "Ramps", Mode: scene.BakeDefault, Atlas: second},
		{Group: "Flipper", Mode: scene.BakeMovable, Atlas: first},
	}
	merged, kept, err := atlas.Merge(ctx, items, options())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Islands != 2 || merged.Mesh.FaceCount() != 4 {
		t.Fatalf("expected 2 islands and 4 faces, got %d and %d", merged.Islands, merged.Mesh.FaceCount())
	}
	if len(kept) != 2 || kept[0].Group != "Playfield" || kept[1].Group != "Flipper" {
		t.Fatalf("unexpected unmerged items %+v", kept)
	}
}

func TestResampleFollowsRenderSpace(t *testing.T) {
	m := mesh.New(4, 2)
	// uv covers the whole atlas while the render footprint is the left half
	a := m.AddProjected(math32.Vec3(0, 0, 0), math32.Vec2(0, 0), math32.Vec2(0, 0))
	b := m.AddProjected(math32.Vec3(1, 0, 0), math32.Vec2(1, 0), math32.Vec2(0.5, 0))
	c := m.AddProjected(math32.Vec3(1, 1, 0), math32.Vec2(1, 1), math32.Vec2(0.5, 1))
	d := m.AddProjected(math32.Vec3(0, 1, 0), math32.Vec2(0, 1), math32.Vec2(0, 1))
	m.AddFace(a, b, c, "pf", 0)
	m.AddFace(a, c, d, "pf", 0)
	render := gradient(32, 64)
	at, err := atlas.Resample(context.Background(), m, map[int]*image.NRGBA64{0: render}, options())
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if at.Image.Rect.Dx() != 32 || at.Image.Rect.Dy() != 64 {
		t.Fatalf("unexpected atlas size %v", at.Image.Rect)
	}
	if got, want := at.Image.NRGBA64At(31, 10), render.NRGBA64At(15, 10); got != want {
		t.Fatalf("texel %v want %v", got, want)
	}
	if at.Mesh.UVs[b] != m.UVs[b] {
		t.Fatal("resample must keep the playfield uvs")
	}
}
