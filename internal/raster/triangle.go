package raster

import (
	"cogentcore.org/core/math32"
)

// ForEachPixel calls fn for each pixel of a w×h grid whose center lies
// inside the triangle abc (normalized coordinates). The barycentric weights
// of the pixel center are passed along. Degenerate or sub-pixel triangles
// report the pixel holding their first vertex.
func ForEachPixel(w, h int, a, b, c math32.Vector2, fn func(x, y int, bary [3]float32)) {
	ax, ay := a.X*float32(w), a.Y*float32(h)
	bx, by := b.X*float32(w), b.Y*float32(h)
	cx, cy := c.X*float32(w), c.Y*float32(h)

	area := edge(ax, ay, bx, by, cx, cy)
	minX := clampInt(int(math32.Floor(math32.Min(ax, math32.Min(bx, cx)))), 0, w-1)
	maxX := clampInt(int(math32.Ceil(math32.Max(ax, math32.Max(bx, cx)))), 0, w-1)
	minY := clampInt(int(math32.Floor(math32.Min(ay, math32.Min(by, cy)))), 0, h-1)
	maxY := clampInt(int(math32.Ceil(math32.Max(ay, math32.Max(by, cy)))), 0, h-1)

	hit := false
	if area != 0 {
		for y := minY; y <= maxY; y++ {
			py := float32(y) + 0.5
			for x := minX; x <= maxX; x++ {
				px := float32(x) + 0.5
				w0 := edge(bx, by, cx, cy, px, py) / area
				w1 := edge(cx, cy, ax, ay, px, py) / area
				w2 := edge(ax, ay, bx, by, px, py) / area
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
				hit = true
				fn(x, y, [3]float32{w0, w1, w2})
			}
		}
	}
	if !hit {
		x, y := int(math32.Floor(ax)), int(math32.Floor(ay))
		if x >= 0 && y >= 0 && x < w && y < h {
			fn(x, y, [3]float32{1, 0, 0})
		}
	}
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
