package atlas

import (
	"context"
	"image"

	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
	"lightmapper/internal/raster"
)

// Resample builds the atlas of a playfield-mode mesh. Its UVs are a top-down
// projection that does not match the perspective renders, so each face is
// rasterized in UV space and every texel is fetched from the partition
// render at the matching render-space position. The atlas has the render
// size and empty texels within padding of a face take their nearest filled
// neighbour. The mesh UVs are left unchanged.
func Resample(ctx context.Context, m *mesh.Mesh, renders map[int]*image.NRGBA64, opts Options) (*Atlas, error) {
	if m == nil || m.Empty() {
		return &Atlas{Mesh: mesh.New(0, 0)}, nil
	}
	w, h := opts.RenderWidth, opts.RenderHeight
	dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
	filled := raster.NewMask(w, h)
	for f, face := range m.Faces {
		if f%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		src := renders[face.Partition]
		if src == nil {
			continue
		}
		sw, sh := src.Rect.Dx(), src.Rect.Dy()
		a, b, c := m.UVCorners(f)
		sa, sb, sc := m.ScreenCorners(f)
		raster.ForEachPixel(w, h, a, b, c, func(x, y int, bary [3]float32) {
			s := sa.MulScalar(bary[0]).Add(sb.MulScalar(bary[1])).Add(sc.MulScalar(bary[2]))
			sx := clamp(int(math32.Floor(s.X*float32(sw))), sw)
			sy := clamp(int(math32.Floor(s.Y*float32(sh))), sh)
			dst.SetNRGBA64(x, y, src.NRGBA64At(src.Rect.Min.X+sx, src.Rect.Min.Y+sy))
			filled.Set(x, y)
		})
	}
	bleed(dst, filled, opts.Padding)
	return &Atlas{Mesh: m.Clone(), Image: dst, Islands: 1, Coverage: coverage(dst)}, nil
}

func clamp(v, n int) int {
	return max(0, min(v, n-1))
}

// bleed grows the filled texels outward one ring per pass.
func bleed(img *image.NRGBA64, filled *raster.Mask, passes int) {
	neighbours := [4]image.Point{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	for range passes {
		next := filled.Clone()
		for y := range filled.H {
			for x := range filled.W {
				if filled.At(x, y) {
					continue
				}
				for _, d := range neighbours {
					nx, ny := x+d.X, y+d.Y
					if filled.At(nx, ny) {
						img.SetNRGBA64(x, y, img.NRGBA64At(nx, ny))
						next.Set(x, y)
						break
					}
				}
			}
		}
		filled = next
	}
}
