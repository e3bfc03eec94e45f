package atlas

import (
	"context"
	"fmt"
	"image"

	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
	"lightmapper/internal/services"
)

// Request is the input of a packer: the islands of one mesh measured in
// their source images.
type Request struct {
	Mesh *mesh.Mesh
	// Coords are the per-vertex coordinates normalized to the source images.
	Coords  []math32.Vector2
	Sizes   map[int]image.Point
	Islands []Island
	Padding int
	MaxSize int
}

// Layout places every island of a request in a square atlas.
type Layout struct {
	Size int
	// Offsets[i] is the atlas position of Islands[i].Rect.Min.
	Offsets []image.Point
}

// Packer places islands without rotating or rescaling them.
type Packer interface {
	Pack(ctx context.Context, req Request) (Layout, error)
}

// MaxRects is the built-in maximal rectangles packer using the best area
// fit heuristic. The atlas grows by powers of two from the smallest square
// that could hold the islands up to the request's maximum size.
type MaxRects struct{}

// Pack implements Packer.
func (MaxRects) Pack(ctx context.Context, req Request) (Layout, error) {
	if len(req.Islands) == 0 {
		return Layout{Size: 1}, nil
	}
	for size := startSize(req.Islands); size <= req.MaxSize; size *= 2 {
		if err := ctx.Err(); err != nil {
			return Layout{}, err
		}
		if offsets, ok := placeAll(req.Islands, size); ok {
			return Layout{Size: size, Offsets: offsets}, nil
		}
	}
	return Layout{}, services.Wrap(services.ErrValidation, "pack", "maxrects",
		fmt.Sprintf("%d islands do not fit a %dx%d atlas", len(req.Islands), req.MaxSize, req.MaxSize), nil)
}

// startSize returns the smallest power of two square whose area and side
// could hold the islands.
func startSize(islands []Island) int {
	area, side := 0, 0
	for _, is := range islands {
		area += is.Area()
		side = max(side, is.Rect.Dx(), is.Rect.Dy())
	}
	size := 1
	for size*size < area || size < side {
		size *= 2
	}
	return size
}

func placeAll(islands []Island, size int) ([]image.Point, bool) {
	p := newMaxRectsPacker(size, size)
	offsets := make([]image.Point, len(islands))
	for i, is := range islands {
		pos, ok := p.insert(is.Rect.Dx(), is.Rect.Dy())
		if !ok {
			return nil, false
		}
		offsets[i] = pos
	}
	return offsets, true
}

// maxRectsPacker keeps the maximal free rectangles of a bin and splits every
// free rectangle a placement overlaps.
type maxRectsPacker struct {
	free []image.Rectangle
}

func newMaxRectsPacker(w, h int) *maxRectsPacker {
	return &maxRectsPacker{free: []image.Rectangle{image.Rect(0, 0, w, h)}}
}

// insert places a w×h rectangle in the free rectangle that leaves the least
// area unused.
func (p *maxRectsPacker) insert(w, h int) (image.Point, bool) {
	best := -1
	bestFit := 0
	for i, r := range p.free {
		if w > r.Dx() || h > r.Dy() {
			continue
		}
		fit := r.Dx()*r.Dy() - w*h
		if best < 0 || fit < bestFit {
			best = i
			bestFit = fit
		}
	}
	if best < 0 {
		return image.Point{}, false
	}
	pos := p.free[best].Min
	p.split(image.Rectangle{Min: pos, Max: pos.Add(image.Pt(w, h))})
	return pos, true
}

func (p *maxRectsPacker) split(placed image.Rectangle) {
	next := make([]image.Rectangle, 0, len(p.free)+4)
	for _, r := range p.free {
		if !r.Overlaps(placed) {
			next = append(next, r)
			continue
		}
		if placed.Min.X > r.Min.X {
			next = append(next, image.Rect(r.Min.X, r.Min.Y, placed.Min.X, r.Max.Y))
		}
		if placed.Max.X < r.Max.X {
			next = append(next, image.Rect(placed.Max.X, r.Min.Y, r.Max.X, r.Max.Y))
		}
		if placed.Min.Y > r.Min.Y {
			next = append(next, image.Rect(r.Min.X, r.Min.Y, r.Max.X, placed.Min.Y))
		}
		if placed.Max.Y < r.Max.Y {
			next = append(next, image.Rect(r.Min.X, placed.Max.Y, r.Max.X, r.Max.Y))
		}
	}
	p.free = pruneContained(next)
}

func pruneContained(rects []image.Rectangle) []image.Rectangle {
	kept := make([]image.Rectangle, 0, len(rects))
	for i, a := range rects {
		contained := false
		for j, b := range rects {
			if i == j || !a.In(b) {
				continue
			}
			// identical rectangles: keep the first
			if a == b && i < j {
				continue
			}
			contained = true
			break
		}
		if !contained {
			kept = append(kept, a)
		}
	}
	return kept
}
