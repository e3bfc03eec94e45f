// Package meshopt builds the optimized base mesh of a bake group and derives
// the pruned light meshes that carry one situation's lightmap.
package meshopt

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"cogentcore.org/core/math32"

	"lightmapper/internal/camera"
	"lightmapper/internal/config"
	"lightmapper/internal/mesh"
	"lightmapper/internal/partition"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
)

// Options holds the optimizer tolerances.
type Options struct {
	MergeDistance       float32
	DissolveAngle       float32
	BackfaceLimit       float32
	KeepReflectionFaces bool
	SubdivideThreshold  float32
	SubdividePasses     int
	// Aspect is the render width / height, used to measure UV edge lengths.
	Aspect            float32
	LightmapThreshold float32
	PruneWidth        int
	PruneHeight       int
}

// OptionsFromConfig derives optimizer options from the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	pw, ph := cfg.PruneSize()
	return Options{
		MergeDistance:       float32(cfg.Mesh.MergeDistance),
		DissolveAngle:       float32(cfg.Mesh.DissolveAngle),
		BackfaceLimit:       float32(cfg.Mesh.BackfaceLimit),
		KeepReflectionFaces: cfg.Mesh.KeepReflectionFaces,
		SubdivideThreshold:  float32(cfg.Mesh.SubdivideThreshold),
		SubdividePasses:     cfg.Mesh.SubdividePasses,
		Aspect:              float32(cfg.Bake.AspectRatio),
		LightmapThreshold:   float32(cfg.Mesh.LightmapThreshold),
		PruneWidth:          pw,
		PruneHeight:         ph,
	}
}

// Input describes one bake group ready for mesh building.
type Input struct {
	Group      scene.BakeGroup
	Members    []*scene.Object
	Partitions []partition.Partition
	// Sync is the pivot object of movable groups.
	Sync      *scene.Object
	Camera    camera.Camera
	Playfield camera.Playfield
}

// Stats reports what each optimization step changed.
type Stats struct {
	InputVertices int
	InputFaces    int
	Merged        int
	Dissolved     int
	Culled        int
	Subdivided    int
	Vertices      int
	Faces         int
}

// Map returns the stats keyed for persistence and logging.
func (s Stats) Map() map[string]int {
	return map[string]int{
		"input_vertices": s.InputVertices,
		"input_faces":    s.InputFaces,
		"merged":         s.Merged,
		"dissolved":      s.Dissolved,
		"culled":         s.Culled,
		"subdivided":     s.Subdivided,
		"vertices":       s.Vertices,
		"faces":          s.Faces,
	}
}

// builder carries the projection state shared by the optimization steps.
type builder struct {
	opts    Options
	in      Input
	toWorld func(math32.Vector3) math32.Vector3
}

func (b *builder) project(p math32.Vector3) (uv, screen math32.Vector2) {
	world := b.toWorld(p)
	screen = b.in.Camera.ProjectClamped(world)
	if b.in.Group.Mode == scene.BakePlayfield {
		return b.in.Playfield.ProjectTopDown(world), screen
	}
	return screen, screen
}

// BuildBaseMesh merges the group members into one mesh, projects its UVs and
// runs the optimization steps in order: dedup, limited dissolve, backface
// culling, subdivision and depth sort. Each face is tagged with the index of
// the partition whose renders texture it.
func BuildBaseMesh(in Input, opts Options) (*mesh.Mesh, Stats, error) {
	b := &builder{opts: opts, in: in, toWorld: func(p math32.Vector3) math32.Vector3 { return p }}
	if in.Group.Mode == scene.BakeMovable {
		if in.Sync == nil {
			return nil, Stats{}, services.Wrap(services.ErrConfiguration, "mesh", "build base mesh",
				fmt.Sprintf("movable group %q has no sync object", in.Group.Name), nil)
		}
		pivot := in.Sync.Transform
		b.toWorld = pivot.Apply
	}

	owner := make(map[string]int, len(in.Members))
	for _, part := range in.Partitions {
		for _, id := range part.Members {
			owner[id] = part.Index
		}
	}

	merged := mesh.New(0, 0)
	for _, obj := range in.Members {
		part, ok := owner[obj.ID]
		if !ok {
			return nil, Stats{}, services.Wrap(services.ErrValidation, "mesh", "build base mesh",
				fmt.Sprintf("object %q of group %q is not in any partition", obj.ID, in.Group.Name), nil)
		}
		world := obj.WorldMesh()
		for i := range world.Faces {
			world.Faces[i].Partition = part
		}
		if in.Group.Mode == scene.BakeMovable {
			for i, p := range world.Positions {
				world.Positions[i] = in.Sync.Transform.Inverse(p)
			}
		}
		merged.Append(world)
	}
	merged.Colors = nil
	b.reproject(merged)

	stats := Stats{InputVertices: merged.VertexCount(), InputFaces: merged.FaceCount()}
	stats.Merged = dedup(merged, opts.MergeDistance)
	stats.Dissolved = dissolve(merged, opts.DissolveAngle)
	if in.Group.Mode != scene.BakeMovable && opts.BackfaceLimit < 90 {
		stats.Culled = b.cullBackfaces(merged)
	}
	stats.Subdivided = b.subdivide(merged)
	b.sortFaces(merged)
	merged.Compact()
	stats.Vertices = merged.VertexCount()
	stats.Faces = merged.FaceCount()
	return merged, stats, nil
}

func (b *builder) reproject(m *mesh.Mesh) {
	m.UVs = m.UVs[:0]
	m.Screen = m.Screen[:0]
	for _, p := range m.Positions {
		uv, screen := b.project(p)
		m.UVs = append(m.UVs, uv)
		m.Screen = append(m.Screen, screen)
	}
}

type cellKey struct {
	object  string
	x, y, z int64
}

// dedup merges vertices of the same object closer than dist and drops faces
// that collapse. It returns the number of vertices removed.
func dedup(m *mesh.Mesh, dist float32) int {
	before := m.VertexCount()
	if dist <= 0 || before == 0 {
		return 0
	}
	object := make([]string, before)
	for _, f := range m.Faces {
		for _, v := range f.V {
			object[v] = f.Object
		}
	}
	cell := func(p math32.Vector3) (int64, int64, int64) {
		return int64(math.Floor(float64(p.X / dist))), int64(math.Floor(float64(p.Y / dist))), int64(math.Floor(float64(p.Z / dist)))
	}
	grid := make(map[cellKey][]int)
	remap := make([]int, before)
	for i, p := range m.Positions {
		remap[i] = i
		cx, cy, cz := cell(p)
		found := -1
	search:
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range grid[cellKey{object[i], cx + dx, cy + dy, cz + dz}] {
						if m.Positions[j].Sub(p).Length() <= dist {
							found = j
							break search
						}
					}
				}
			}
		}
		if found >= 0 {
			remap[i] = found
			continue
		}
		key := cellKey{object[i], cx, cy, cz}
		grid[key] = append(grid[key], i)
	}
	faces := m.Faces[:0]
	for _, f := range m.Faces {
		f.V = [3]int{remap[f.V[0]], remap[f.V[1]], remap[f.V[2]]}
		if f.V[0] == f.V[1] || f.V[1] == f.V[2] || f.V[0] == f.V[2] {
			continue
		}
		faces = append(faces, f)
	}
	m.Faces = faces
	m.Compact()
	return before - m.VertexCount()
}

// faceNormal returns the unit normal of face f and false for faces with no area.
func faceNormal(m *mesh.Mesh, f int) (math32.Vector3, bool) {
	a, b, c := m.Corners(f)
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Length()
	if l < 1e-12 {
		return math32.Vector3{}, false
	}
	return n.MulScalar(1 / l), true
}

// faceBoundsCenter returns the center of the bounding box of face f.
func faceBoundsCenter(a, b, c math32.Vector3) math32.Vector3 {
	box := math32.B3Empty()
	box.ExpandByPoint(a)
	box.ExpandByPoint(b)
	box.ExpandByPoint(c)
	return box.Center()
}

// cullBackfaces removes faces turned away from the camera by more than the
// configured limit. Faces whose mirror image in the playfield faces the
// camera survive when reflections are kept.
func (b *builder) cullBackfaces(m *mesh.Mesh) int {
	limit := math.Cos(float64(b.opts.BackfaceLimit+90) * math.Pi / 180)
	dotLimit := float32(limit)
	cam := b.in.Camera.Position
	before := m.FaceCount()
	faces := m.Faces[:0]
	for f := range m.Faces {
		face := m.Faces[f]
		n, ok := faceNormal(m, f)
		if !ok {
			faces = append(faces, face)
			continue
		}
		a, bb, c := m.Corners(f)
		center := faceBoundsCenter(b.toWorld(a), b.toWorld(bb), b.toWorld(c))
		if n.Dot(cam.Sub(center).Normal()) >= dotLimit {
			faces = append(faces, face)
			continue
		}
		if b.opts.KeepReflectionFaces {
			mirrored := center
			mirrored.Z = -mirrored.Z
			reflected := mirrored.Sub(cam).Normal()
			reflected.Z = -reflected.Z
			if -n.Dot(reflected) >= dotLimit {
				faces = append(faces, face)
			}
		}
	}
	m.Faces = faces
	m.Compact()
	return before - m.FaceCount()
}

// sortFaces orders faces front-to-back for opaque groups and back-to-front
// otherwise. Ties keep their previous order.
func (b *builder) sortFaces(m *mesh.Mesh) {
	type ranked struct {
		face mesh.Face
		dist float32
	}
	ranks := make([]ranked, len(m.Faces))
	for f, face := range m.Faces {
		ranks[f] = ranked{face: face, dist: b.in.Camera.Distance(b.toWorld(m.FaceCenter(f)))}
	}
	slices.SortStableFunc(ranks, func(x, y ranked) int {
		if b.in.Group.Opaque {
			return cmp.Compare(x.dist, y.dist)
		}
		return cmp.Compare(y.dist, x.dist)
	})
	for f := range ranks {
		m.Faces[f] = ranks[f].face
	}
}
