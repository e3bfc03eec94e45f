package atlas

import (
	"context"
	"fmt"
	"image"
	"time"

	"cogentcore.org/core/math32"
	"golang.org/x/image/draw"

	"lightmapper/internal/config"
	"lightmapper/internal/mesh"
	"lightmapper/internal/raster"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
)

// Options holds the atlas settings.
type Options struct {
	Padding      int
	MaxSize      int
	RenderWidth  int
	RenderHeight int
	// Packer places islands; nil uses MaxRects.
	Packer Packer
}

// OptionsFromConfig derives atlas options from the configuration. A
// configured UV packer executable replaces the built-in packer.
func OptionsFromConfig(cfg *config.Config) Options {
	w, h := cfg.RenderSize()
	opts := Options{
		Padding:      cfg.Pack.Padding,
		MaxSize:      cfg.Pack.MaxSize,
		RenderWidth:  w,
		RenderHeight: h,
	}
	if cfg.Pack.UVPackerPath != "" {
		opts.Packer = NewUVPacker(cfg.Pack.UVPackerPath, time.Duration(cfg.Pack.UVPackerTimeout)*time.Second, nil)
	}
	return opts
}

func (o Options) packer() Packer {
	if o.Packer == nil {
		return MaxRects{}
	}
	return o.Packer
}

// Atlas is a packed texture together with the mesh whose UVs address it.
type Atlas struct {
	Mesh    *mesh.Mesh
	Image   *image.NRGBA64
	Islands int
	// Coverage is the fraction of atlas texels holding data.
	Coverage float64
}

// Empty reports whether the atlas holds no texels.
func (a *Atlas) Empty() bool {
	return a == nil || a.Image == nil || a.Mesh == nil || a.Mesh.Empty()
}

// Pack lays out the islands of m, measured in render pixels, into one atlas
// and copies every island's texels from its partition render at a pure
// translation. renders maps partition indices to images; a missing render
// leaves its islands transparent. The returned mesh has its UVs remapped to
// the atlas; render-space coordinates are untouched.
func Pack(ctx context.Context, m *mesh.Mesh, renders map[int]*image.NRGBA64, opts Options) (*Atlas, error) {
	if m == nil || m.Empty() {
		return &Atlas{Mesh: mesh.New(0, 0)}, nil
	}
	sizes := make(map[int]image.Point)
	for _, f := range m.Faces {
		sizes[f.Partition] = image.Pt(opts.RenderWidth, opts.RenderHeight)
	}
	sourceOf := func(f int) int { return m.Faces[f].Partition }
	return pack(ctx, m, m.Screen, sourceOf, sizes, renders, opts)
}

// Item is one lightmap mesh and its atlas offered for merging.
type Item struct {
	Group string
	Mode  scene.BakeMode
	Atlas *Atlas
}

// Merge concatenates the lightmap meshes of one situation across bake
// groups into a single mesh with a single atlas. Playfield and movable
// groups never merge; they are returned unchanged in kept.
func Merge(ctx context.Context, items []Item, opts Options) (merged *Atlas, kept []Item, err error) {
	combined := mesh.New(0, 0)
	var sourceOf []int
	sizes := make(map[int]image.Point)
	sources := make(map[int]*image.NRGBA64)
	for i, it := range items {
		if it.Mode == scene.BakePlayfield || it.Mode == scene.BakeMovable {
			kept = append(kept, it)
			continue
		}
		if it.Atlas.Empty() {
			continue
		}
		sizes[i] = it.Atlas.Image.Rect.Size()
		sources[i] = it.Atlas.Image
		combined.Append(it.Atlas.Mesh)
		for range it.Atlas.Mesh.Faces {
			sourceOf = append(sourceOf, i)
		}
	}
	if combined.Empty() {
		return nil, kept, nil
	}
	merged, err = pack(ctx, combined, combined.UVs, func(f int) int { return sourceOf[f] }, sizes, sources, opts)
	if err != nil {
		return nil, nil, err
	}
	return merged, kept, nil
}

func pack(ctx context.Context, m *mesh.Mesh, coords []math32.Vector2, sourceOf func(int) int, sizes map[int]image.Point, sources map[int]*image.NRGBA64, opts Options) (*Atlas, error) {
	if opts.MaxSize <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pack", "atlas", "max size must be positive", nil)
	}
	coords = append([]math32.Vector2(nil), coords...)
	req := Request{
		Mesh:    m,
		Coords:  coords,
		Sizes:   sizes,
		Islands: findIslands(m, coords, sourceOf, sizes, opts.Padding),
		Padding: opts.Padding,
		MaxSize: opts.MaxSize,
	}
	layout, err := opts.packer().Pack(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(layout.Offsets) != len(req.Islands) {
		return nil, services.Wrap(services.ErrValidation, "pack", "atlas",
			fmt.Sprintf("packer placed %d of %d islands", len(layout.Offsets), len(req.Islands)), nil)
	}
	return compose(ctx, req, layout, sources)
}

// compose copies each island's dilated coverage from its source into the
// atlas and rewrites the UVs of its vertices.
func compose(ctx context.Context, req Request, layout Layout, sources map[int]*image.NRGBA64) (*Atlas, error) {
	dst := image.NewNRGBA64(image.Rect(0, 0, layout.Size, layout.Size))
	out := req.Mesh.Clone()
	for i, is := range req.Islands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		size := req.Sizes[is.Source]
		off := layout.Offsets[i]
		rw, rh := is.Rect.Dx(), is.Rect.Dy()
		local := func(v int) math32.Vector2 {
			c := req.Coords[v]
			return math32.Vec2(
				(c.X*float32(size.X)-float32(is.Rect.Min.X))/float32(rw),
				(c.Y*float32(size.Y)-float32(is.Rect.Min.Y))/float32(rh),
			)
		}
		cover := raster.NewMask(rw, rh)
		for _, f := range is.Faces {
			v := req.Mesh.Faces[f].V
			cover.FillTriangle(local(v[0]), local(v[1]), local(v[2]))
		}
		cover = cover.Dilate(req.Padding)
		if src := sources[is.Source]; src != nil {
			r := image.Rectangle{Min: off, Max: off.Add(is.Rect.Size())}
			draw.DrawMask(dst, r, src, is.Rect.Min, cover.Alpha(), image.Point{}, draw.Src)
		}
		for _, f := range is.Faces {
			for _, v := range req.Mesh.Faces[f].V {
				c := req.Coords[v]
				out.UVs[v] = math32.Vec2(
					(c.X*float32(size.X)-float32(is.Rect.Min.X)+float32(off.X))/float32(layout.Size),
					(c.Y*float32(size.Y)-float32(is.Rect.Min.Y)+float32(off.Y))/float32(layout.Size),
				)
			}
		}
	}
	return &Atlas{Mesh: out, Image: dst, Islands: len(req.Islands), Coverage: coverage(dst)}, nil
}

func coverage(img *image.NRGBA64) float64 {
	total := img.Rect.Dx() * img.Rect.Dy()
	if total == 0 {
		return 0
	}
	covered := 0
	for i := 6; i < len(img.Pix); i += 8 {
		if img.Pix[i] != 0 || img.Pix[i+1] != 0 {
			covered++
		}
	}
	return float64(covered) / float64(total)
}
