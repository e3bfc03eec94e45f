package scene

import (
	"math"
	"slices"

	"cogentcore.org/core/math32"

	"lightmapper/internal/mesh"
)

// Kind distinguishes geometry from punctual lights.
type Kind string

const (
	KindMesh  Kind = "mesh"
	KindLight Kind = "light"
)

// Class marks objects that are excluded from baking. The zero value is a
// regular bake candidate.
type Class string

const (
	ClassNone     Class = ""
	ClassIndirect Class = "indirect"
	ClassOverlay  Class = "overlay"
	ClassHidden   Class = "hidden"
	ClassTrash    Class = "trash"
)

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	switch c {
	case ClassNone, ClassIndirect, ClassOverlay, ClassHidden, ClassTrash:
		return true
	}
	return false
}

// Attribute names accepted in Object.Locked.
const (
	AttrName       = "name"
	AttrGeometry   = "geometry"
	AttrMaterial   = "material"
	AttrTransform  = "transform"
	AttrBakeGroup  = "bake_group"
	AttrLightGroup = "light_group"
	AttrClass      = "class"
	AttrLight      = "light"
)

// Attributes lists every lockable attribute.
var Attributes = []string{AttrName, AttrGeometry, AttrMaterial, AttrTransform, AttrBakeGroup, AttrLightGroup, AttrClass, AttrLight}

// Material is the subset of surface properties the bake needs.
type Material struct {
	Name     string
	Color    [3]float32
	Opaque   bool
	Emission float32
}

// Transform places local geometry in the world. Rotation is XYZ Euler in degrees.
type Transform struct {
	Location math32.Vector3
	Rotation math32.Vector3
	Scale    math32.Vector3
}

// Identity returns the neutral transform.
func Identity() Transform {
	return Transform{Scale: math32.Vec3(1, 1, 1)}
}

func (t Transform) scale() math32.Vector3 {
	if t.Scale == (math32.Vector3{}) {
		return math32.Vec3(1, 1, 1)
	}
	return t.Scale
}

func rotate(p math32.Vector3, axis int, deg float32) math32.Vector3 {
	if deg == 0 {
		return p
	}
	sin, cos := math.Sincos(float64(deg) * math.Pi / 180)
	s, c := float32(sin), float32(cos)
	switch axis {
	case 0:
		return math32.Vec3(p.X, p.Y*c-p.Z*s, p.Y*s+p.Z*c)
	case 1:
		return math32.Vec3(p.X*c+p.Z*s, p.Y, -p.X*s+p.Z*c)
	default:
		return math32.Vec3(p.X*c-p.Y*s, p.X*s+p.Y*c, p.Z)
	}
}

// Apply maps a local point to world space: scale, rotate X, Y, Z, translate.
func (t Transform) Apply(p math32.Vector3) math32.Vector3 {
	s := t.scale()
	p = math32.Vec3(p.X*s.X, p.Y*s.Y, p.Z*s.Z)
	p = rotate(p, 0, t.Rotation.X)
	p = rotate(p, 1, t.Rotation.Y)
	p = rotate(p, 2, t.Rotation.Z)
	return p.Add(t.Location)
}

// Inverse maps a world point back into the local space of t.
func (t Transform) Inverse(p math32.Vector3) math32.Vector3 {
	p = p.Sub(t.Location)
	p = rotate(p, 2, -t.Rotation.Z)
	p = rotate(p, 1, -t.Rotation.Y)
	p = rotate(p, 0, -t.Rotation.X)
	s := t.scale()
	return math32.Vec3(safeDiv(p.X, s.X), safeDiv(p.Y, s.Y), safeDiv(p.Z, s.Z))
}

func safeDiv(a, b float32) float32 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Light holds the emission parameters of a light or emissive mesh.
type Light struct {
	Color [3]float32
	// Energy is the light power; for emissive meshes it mirrors the
	// material emission strength.
	Energy       float32
	ShadowRadius float32
	// AOI enables area-of-influence culling for this light.
	AOI bool
}

// Object is one scene object.
type Object struct {
	ID         string
	Name       string
	Kind       Kind
	Mesh       *mesh.Mesh
	Material   Material
	Transform  Transform
	BakeGroup  string
	LightGroup string
	Class      Class
	Light      *Light
	Locked     []string
	Declared   int
}

// Excluded reports whether the object never takes part in a bake.
func (o *Object) Excluded() bool {
	return o.Class != ClassNone
}

// Occluder reports whether the object still blocks light and camera rays.
func (o *Object) Occluder() bool {
	return o.Kind == KindMesh && (o.Class == ClassNone || o.Class == ClassIndirect)
}

// IsEmitter reports whether the object contributes light.
func (o *Object) IsEmitter() bool {
	if o.Class == ClassTrash || o.Class == ClassHidden {
		return false
	}
	return o.Kind == KindLight || o.Material.Emission > 0
}

// IsLocked reports whether attr keeps its user value on re-import.
func (o *Object) IsLocked(attr string) bool {
	return slices.Contains(o.Locked, attr)
}

// Lock adds attr to the locked set.
func (o *Object) Lock(attr string) {
	if !o.IsLocked(attr) {
		o.Locked = append(o.Locked, attr)
		slices.Sort(o.Locked)
	}
}

// WorldMesh returns a copy of the object geometry in world space. Lights
// and objects without geometry return an empty mesh.
func (o *Object) WorldMesh() *mesh.Mesh {
	if o.Mesh == nil {
		return mesh.New(0, 0)
	}
	out := o.Mesh.Clone()
	for i, p := range out.Positions {
		out.Positions[i] = o.Transform.Apply(p)
	}
	for i := range out.Faces {
		out.Faces[i].Object = o.ID
	}
	return out
}

// WorldBounds returns the world-space bounding box; lights yield a point box.
func (o *Object) WorldBounds() math32.Box3 {
	if o.Mesh == nil || o.Mesh.VertexCount() == 0 {
		box := math32.B3Empty()
		box.ExpandByPoint(o.Transform.Location)
		return box
	}
	return o.WorldMesh().Bounds()
}

// EmitterPosition returns the point the light is considered to shine from.
func (o *Object) EmitterPosition() math32.Vector3 {
	if o.Kind == KindLight || o.Mesh == nil {
		return o.Transform.Location
	}
	return o.WorldBounds().Center()
}

// Emission returns the light parameters of an emitter, deriving them from
// the material for emissive meshes.
func (o *Object) Emission() Light {
	if o.Light != nil {
		return *o.Light
	}
	return Light{Color: o.Material.Color, Energy: o.Material.Emission, AOI: false}
}

// Clone returns a deep copy of the object.
func (o *Object) Clone() *Object {
	c := *o
	c.Mesh = o.Mesh.Clone()
	if o.Light != nil {
		l := *o.Light
		c.Light = &l
	}
	c.Locked = slices.Clone(o.Locked)
	return &c
}
