// Package partition splits the members of a bake group into subsets whose
// silhouettes, as seen from the bake camera, do not overlap. Each subset can
// be rendered in a single pass and its texels cut back out per object.
package partition

import (
	"errors"
	"image"
	"slices"
	"strings"

	"cogentcore.org/core/math32"

	"lightmapper/internal/camera"
	"lightmapper/internal/config"
	"lightmapper/internal/raster"
	"lightmapper/internal/scene"
)

// Options sets the mask resolution used for conflict detection.
type Options struct {
	Width   int
	Height  int
	Padding int
}

// OptionsFromConfig derives the mask settings from the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	w, h := cfg.MaskSize()
	return Options{Width: w, Height: h, Padding: cfg.MaskPadding()}
}

// Partition is one set of mutually non-overlapping objects.
type Partition struct {
	Index   int
	Members []string
	// Mask is the union of the dilated member silhouettes.
	Mask *raster.Mask
}

// Contains reports whether id is a member of the partition.
func (p Partition) Contains(id string) bool {
	return slices.Contains(p.Members, id)
}

type candidate struct {
	obj  *scene.Object
	area float32
	mask *raster.Mask
}

// Group partitions members greedily: objects are visited by projected area,
// largest first, and each joins the first partition its dilated silhouette
// does not overlap. The result depends only on the inputs, so repeated runs
// produce identical partitions.
func Group(members []*scene.Object, cam camera.Camera, opts Options) ([]Partition, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.New("partition mask size must be positive")
	}
	if err := cam.Validate(); err != nil {
		return nil, err
	}

	cands := make([]candidate, 0, len(members))
	for _, obj := range members {
		if obj == nil || obj.Excluded() {
			continue
		}
		cands = append(cands, candidate{
			obj:  obj,
			area: ProjectedArea(obj, cam),
			mask: ObjectMask(obj, cam, opts.Width, opts.Height).Dilate(opts.Padding),
		})
	}
	slices.SortStableFunc(cands, func(a, b candidate) int {
		switch {
		case a.area > b.area:
			return -1
		case a.area < b.area:
			return 1
		case a.obj.Declared != b.obj.Declared:
			return a.obj.Declared - b.obj.Declared
		}
		return strings.Compare(a.obj.ID, b.obj.ID)
	})

	var parts []Partition
	for _, c := range cands {
		placed := false
		for i := range parts {
			if parts[i].Mask.Overlaps(c.mask) {
				continue
			}
			parts[i].Members = append(parts[i].Members, c.obj.ID)
			parts[i].Mask.Union(c.mask)
			placed = true
			break
		}
		if !placed {
			parts = append(parts, Partition{
				Index:   len(parts),
				Members: []string{c.obj.ID},
				Mask:    c.mask.Clone(),
			})
		}
	}
	return parts, nil
}

// ObjectMask rasterizes the object's world-space silhouette. Objects without
// triangles fall back to their projected bounding box.
func ObjectMask(obj *scene.Object, cam camera.Camera, w, h int) *raster.Mask {
	m := raster.NewMask(w, h)
	world := obj.WorldMesh()
	if world.FaceCount() == 0 {
		m.FillRect(m.PixelRect(projectedBox(obj, cam)))
		return m
	}
	for f := range world.Faces {
		a, b, c := world.Corners(f)
		m.FillTriangle(cam.ProjectClamped(a), cam.ProjectClamped(b), cam.ProjectClamped(c))
	}
	return m
}

// ProjectedArea returns the normalized screen area of the object's
// projected bounding box.
func ProjectedArea(obj *scene.Object, cam camera.Camera) float32 {
	box := projectedBox(obj, cam)
	if box.IsEmpty() {
		return 0
	}
	size := box.Size()
	return size.X * size.Y
}

func projectedBox(obj *scene.Object, cam camera.Camera) math32.Box2 {
	b := obj.WorldBounds()
	box := math32.B2Empty()
	for i := 0; i < 8; i++ {
		p := math32.Vec3(pick(i&1, b.Min.X, b.Max.X), pick(i&2, b.Min.Y, b.Max.Y), pick(i&4, b.Min.Z, b.Max.Z))
		box.ExpandByPoint(cam.ProjectClamped(p))
	}
	return box
}

func pick(bit int, lo, hi float32) float32 {
	if bit == 0 {
		return lo
	}
	return hi
}

// Occluded returns the members that own no pixel of an object-id depth
// buffer built from every occluder, i.e. objects fully hidden from the
// camera. Occluders usually include the members themselves.
func Occluded(members, occluders []*scene.Object, cam camera.Camera, w, h int) []string {
	owner := make([]string, w*h)
	depth := make([]float32, w*h)
	for i := range depth {
		depth[i] = math32.Inf(1)
	}
	for _, obj := range occluders {
		world := obj.WorldMesh()
		for f := range world.Faces {
			pa, pb, pc := world.Corners(f)
			sa, da, oka := cam.Project(pa)
			sb, db, okb := cam.Project(pb)
			sc, dc, okc := cam.Project(pc)
			if !oka || !okb || !okc {
				continue
			}
			raster.ForEachPixel(w, h, sa, sb, sc, func(x, y int, bary [3]float32) {
				d := 1 / (bary[0]/da + bary[1]/db + bary[2]/dc)
				i := y*w + x
				if d < depth[i] {
					depth[i] = d
					owner[i] = obj.ID
				}
			})
		}
	}
	visible := make(map[string]bool)
	for _, id := range owner {
		if id != "" {
			visible[id] = true
		}
	}
	var out []string
	for _, obj := range members {
		if !visible[obj.ID] {
			out = append(out, obj.ID)
		}
	}
	return out
}

// Rect returns the pixel bounds of the partition mask at the given render
// size.
func (p Partition) Rect(w, h int) image.Rectangle {
	if p.Mask == nil {
		return image.Rect(0, 0, w, h)
	}
	b := p.Mask.Bounds()
	sx := float64(w) / float64(p.Mask.W)
	sy := float64(h) / float64(p.Mask.H)
	return image.Rect(int(float64(b.Min.X)*sx), int(float64(b.Min.Y)*sy),
		int(float64(b.Max.X)*sx+0.999), int(float64(b.Max.Y)*sy+0.999))
}
