// Package camera models the single fixed bake camera every render, partition
// mask and projected UV is computed from.
//
// Screen coordinates are normalized to [0,1] with the origin at the top-left
// corner and v growing downward, which is also the texture coordinate
// convention of the exported meshes.
package camera

import (
	"errors"
	"math"

	"cogentcore.org/core/math32"
)

// Camera is a perspective camera looking from Position toward Target.
type Camera struct {
	Position math32.Vector3
	Target   math32.Vector3
	Up       math32.Vector3
	// FOV is the vertical field of view in degrees.
	FOV float32
	// Aspect is width / height of the image plane.
	Aspect float32
	Near   float32
}

// Playfield is the world-space rectangle used for top-down projection.
type Playfield struct {
	MinX, MinY, MaxX, MaxY float32
}

// Validate reports camera parameters that cannot produce a projection.
func (c Camera) Validate() error {
	if c.FOV <= 0 || c.FOV >= 180 {
		return errors.New("camera fov must be between 0 and 180 degrees")
	}
	if c.Aspect <= 0 {
		return errors.New("camera aspect must be positive")
	}
	if c.Target.Sub(c.Position).Length() == 0 {
		return errors.New("camera target must differ from position")
	}
	if c.Up.Length() == 0 {
		return errors.New("camera up vector must be non-zero")
	}
	fwd := c.Target.Sub(c.Position).Normal()
	if fwd.Cross(c.Up.Normal()).Length() < 1e-6 {
		return errors.New("camera up vector is parallel to the view direction")
	}
	return nil
}

// Basis returns the orthonormal right, up and forward axes of the camera.
func (c Camera) Basis() (right, up, forward math32.Vector3) {
	forward = c.Target.Sub(c.Position).Normal()
	right = forward.Cross(c.Up).Normal()
	up = right.Cross(forward).Normal()
	return right, up, forward
}

func (c Camera) near() float32 {
	if c.Near > 0 {
		return c.Near
	}
	return 0.01
}

// Project maps a world point to normalized screen coordinates and its view
// depth. ok is false for points behind the near plane.
func (c Camera) Project(p math32.Vector3) (screen math32.Vector2, depth float32, ok bool) {
	right, up, forward := c.Basis()
	d := p.Sub(c.Position)
	z := d.Dot(forward)
	if z < c.near() {
		return math32.Vector2{}, z, false
	}
	tanHalf := float32(math.Tan(float64(c.FOV) * math.Pi / 360))
	x := d.Dot(right) / (z * tanHalf * c.Aspect)
	y := d.Dot(up) / (z * tanHalf)
	return math32.Vec2(0.5+x*0.5, 0.5-y*0.5), z, true
}

// ProjectClamped projects p, pulling points behind the camera onto the near plane.
func (c Camera) ProjectClamped(p math32.Vector3) math32.Vector2 {
	if s, _, ok := c.Project(p); ok {
		return s
	}
	_, _, forward := c.Basis()
	d := p.Sub(c.Position)
	z := d.Dot(forward)
	pulled := p.Add(forward.MulScalar(c.near() - z))
	s, _, _ := c.Project(pulled)
	return s
}

// DirectionTo returns the unit vector from p toward the camera.
func (c Camera) DirectionTo(p math32.Vector3) math32.Vector3 {
	return c.Position.Sub(p).Normal()
}

// Distance returns the distance from the camera to p.
func (c Camera) Distance(p math32.Vector3) float32 {
	return c.Position.Sub(p).Length()
}

// ProjectedRadius estimates the screen-space half extents of a sphere of the
// given radius centered at p, as fractions of the image width and height.
func (c Camera) ProjectedRadius(p math32.Vector3, radius float32) (rx, ry float32, ok bool) {
	right, up, _ := c.Basis()
	center, _, ok := c.Project(p)
	if !ok {
		return 0, 0, false
	}
	sx, _, okx := c.Project(p.Add(right.MulScalar(radius)))
	sy, _, oky := c.Project(p.Add(up.MulScalar(radius)))
	if !okx || !oky {
		return 0, 0, false
	}
	rx = math32.Abs(sx.X - center.X)
	ry = math32.Abs(sy.Y - center.Y)
	return rx, ry, rx > 0 && ry > 0
}

// Validate reports an empty playfield rectangle.
func (p Playfield) Validate() error {
	if p.MaxX <= p.MinX || p.MaxY <= p.MinY {
		return errors.New("playfield rectangle must have positive width and height")
	}
	return nil
}

// ProjectTopDown maps a world point orthographically onto the playfield rectangle.
func (p Playfield) ProjectTopDown(pt math32.Vector3) math32.Vector2 {
	return math32.Vec2((pt.X-p.MinX)/(p.MaxX-p.MinX), (pt.Y-p.MinY)/(p.MaxY-p.MinY))
}

// Default returns a camera looking at the playfield from above the player end.
func Default(pf Playfield, aspect float32) Camera {
	cx := (pf.MinX + pf.MaxX) / 2
	cy := (pf.MinY + pf.MaxY) / 2
	h := pf.MaxY - pf.MinY
	return Camera{
		Position: math32.Vec3(cx, pf.MaxY+h*0.8, h*1.4),
		Target:   math32.Vec3(cx, cy, 0),
		Up:       math32.Vec3(0, 0, 1),
		FOV:      45,
		Aspect:   aspect,
		Near:     0.01,
	}
}
