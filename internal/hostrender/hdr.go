package hostrender

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// HDRScale is the radiance stored by a full-scale channel value.
const HDRScale = 8

// Encode quantizes radiance into a 16-bit channel, clamping to HDRScale.
func Encode(v float32) uint16 {
	if v <= 0 {
		return 0
	}
	if v >= HDRScale {
		return 0xffff
	}
	return uint16(v/HDRScale*0xffff + 0.5)
}

// Decode maps a 16-bit channel back to radiance.
func Decode(c uint16) float32 {
	return float32(c) / 0xffff * HDRScale
}

// Radiance returns the decoded RGB and coverage of pixel (x, y).
func Radiance(img *image.NRGBA64, x, y int) (r, g, b, a float32) {
	c := img.NRGBA64At(x, y)
	return Decode(c.R), Decode(c.G), Decode(c.B), float32(c.A) / 0xffff
}

// MaxChannel returns the brightest RGB channel of pixel (x, y).
func MaxChannel(img *image.NRGBA64, x, y int) float32 {
	r, g, b, _ := Radiance(img, x, y)
	return max(r, g, b)
}

// Luma returns the Rec. 601 luminance of pixel (x, y).
func Luma(img *image.NRGBA64, x, y int) float32 {
	r, g, b, _ := Radiance(img, x, y)
	return 0.299*r + 0.587*g + 0.114*b
}

// ToNRGBA64 returns img as an NRGBA64 anchored at the origin, copying
// when the concrete type differs.
func ToNRGBA64(img image.Image) *image.NRGBA64 {
	if n, ok := img.(*image.NRGBA64); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// Black returns an empty frame, the result of a skipped render.
func Black(w, h int) *image.NRGBA64 {
	return image.NewNRGBA64(image.Rect(0, 0, w, h))
}

func pixel(r, g, b float32) color.NRGBA64 {
	return color.NRGBA64{R: Encode(r), G: Encode(g), B: Encode(b), A: 0xffff}
}
