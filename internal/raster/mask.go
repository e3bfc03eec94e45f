// Package raster rasterizes projected geometry into coverage masks.
//
// Coordinates passed to the fill functions are normalized screen or texture
// coordinates in [0,1] with the origin at the top-left corner; a pixel is
// covered when its center falls inside the primitive.
package raster

import (
	"image"
	"image/color"

	"cogentcore.org/core/math32"
	"github.com/anthonynsimon/bild/effect"
)

// Mask is a binary coverage image.
type Mask struct {
	W, H int
	Pix  []bool
}

// NewMask returns an empty w×h mask.
func NewMask(w, h int) *Mask {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return &Mask{W: w, H: h, Pix: make([]bool, w*h)}
}

// At reports whether pixel (x, y) is covered. Out of range pixels are not.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x]
}

// Set marks pixel (x, y) when it is in range.
func (m *Mask) Set(x, y int) {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return
	}
	m.Pix[y*m.W+x] = true
}

// Count returns the number of covered pixels.
func (m *Mask) Count() int {
	n := 0
	for _, p := range m.Pix {
		if p {
			n++
		}
	}
	return n
}

// Empty reports whether no pixel is covered.
func (m *Mask) Empty() bool {
	for _, p := range m.Pix {
		if p {
			return false
		}
	}
	return true
}

// Clone returns a copy of the mask.
func (m *Mask) Clone() *Mask {
	return &Mask{W: m.W, H: m.H, Pix: append([]bool(nil), m.Pix...)}
}

// Overlaps reports whether both masks cover a common pixel.
func (m *Mask) Overlaps(o *Mask) bool {
	if m.W != o.W || m.H != o.H {
		return false
	}
	for i, p := range m.Pix {
		if p && o.Pix[i] {
			return true
		}
	}
	return false
}

// Union adds the coverage of o to m.
func (m *Mask) Union(o *Mask) {
	if m.W != o.W || m.H != o.H {
		return
	}
	for i, p := range o.Pix {
		if p {
			m.Pix[i] = true
		}
	}
}

// Bounds returns the smallest rectangle holding every covered pixel.
func (m *Mask) Bounds() image.Rectangle {
	r := image.Rectangle{}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.Pix[y*m.W+x] {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

// FillRect covers every pixel inside r, clipped to the mask.
func (m *Mask) FillRect(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, m.W, m.H))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[y*m.W+x] = true
		}
	}
}

// PixelRect converts a normalized box to the pixel rectangle it touches.
func (m *Mask) PixelRect(box math32.Box2) image.Rectangle {
	x0 := int(math32.Floor(box.Min.X * float32(m.W)))
	y0 := int(math32.Floor(box.Min.Y * float32(m.H)))
	x1 := int(math32.Ceil(box.Max.X * float32(m.W)))
	y1 := int(math32.Ceil(box.Max.Y * float32(m.H)))
	if x1 == x0 {
		x1++
	}
	if y1 == y0 {
		y1++
	}
	return image.Rect(x0, y0, x1, y1)
}

// FillTriangle covers the pixels whose centers lie inside the triangle.
// Triangles too thin to contain a pixel center still mark the pixel holding
// their first vertex so no face disappears from the mask.
func (m *Mask) FillTriangle(a, b, c math32.Vector2) {
	ForEachPixel(m.W, m.H, a, b, c, func(x, y int, _ [3]float32) {
		m.Set(x, y)
	})
}

// TouchesEllipse reports whether any covered pixel center lies inside the
// axis aligned ellipse given in normalized coordinates.
func (m *Mask) TouchesEllipse(center math32.Vector2, rx, ry float32) bool {
	if rx <= 0 || ry <= 0 {
		return false
	}
	box := math32.B2(center.X-rx, center.Y-ry, center.X+rx, center.Y+ry)
	r := m.PixelRect(box).Intersect(image.Rect(0, 0, m.W, m.H))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !m.Pix[y*m.W+x] {
				continue
			}
			dx := ((float32(x)+0.5)/float32(m.W) - center.X) / rx
			dy := ((float32(y)+0.5)/float32(m.H) - center.Y) / ry
			if dx*dx+dy*dy <= 1 {
				return true
			}
		}
	}
	return false
}

// Gray renders the mask as an 8-bit image, covered pixels white.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for i, p := range m.Pix {
		if p {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// Alpha renders the mask as an alpha image usable with draw.DrawMask.
func (m *Mask) Alpha() *image.Alpha {
	img := image.NewAlpha(image.Rect(0, 0, m.W, m.H))
	for i, p := range m.Pix {
		if p {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// FromImage builds a mask of the pixels whose alpha is non-zero.
func FromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if c.Y > 0 {
				m.Pix[y*m.W+x] = true
			}
		}
	}
	return m
}

// Dilate grows the coverage by radius pixels.
func (m *Mask) Dilate(radius int) *Mask {
	if radius <= 0 {
		return m.Clone()
	}
	grown := effect.Dilate(m.Gray(), float64(radius))
	out := NewMask(m.W, m.H)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if grown.Pix[y*grown.Stride+x*4] > 0 {
				out.Pix[y*m.W+x] = true
			}
		}
	}
	// Keep the source coverage even if the filter clipped an edge pixel.
	out.Union(m)
	return out
}
