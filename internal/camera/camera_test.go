package camera_test

import (
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/camera"
)

func topDown() camera.Camera {
	return camera.Camera{
		Position: math32.Vec3(0, 0, 10),
		Target:   math32.Vec3(0, 0, 0),
		Up:       math32.Vec3(0, 1, 0),
		FOV:      90,
		Aspect:   1,
	}
}

func near(a, b float32) bool {
	return math32.Abs(a-b) < 1e-4
}

func TestProjectCenterAndEdges(t *testing.T) {
	cam := topDown()
	if err := cam.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	s, depth, ok := cam.Project(math32.Vec3(0, 0, 0))
	if !ok || !near(s.X, 0.5) || !near(s.Y, 0.5) || !near(depth, 10) {
		t.Fatalf("center projected to %v depth %v ok=%v", s, depth, ok)
	}
	// fov 90 at distance 10 spans [-10, 10]; v grows toward -Y.
	s, _, _ = cam.Project(math32.Vec3(10, -10, 0))
	if !near(s.X, 1) || !near(s.Y, 1) {
		t.Fatalf("corner projected to %v", s)
	}
	if _, _, ok := cam.Project(math32.Vec3(0, 0, 20)); ok {
		t.Fatal("expected point behind camera to be rejected")
	}
}

func TestValidateRejectsDegenerateCameras(t *testing.T) {
	cam := topDown()
	cam.Up = math32.Vec3(0, 0, 5)
	if err := cam.Validate(); err == nil {
		t.Fatal("expected parallel up vector to be rejected")
	}
	cam = topDown()
	cam.FOV = 0
	if err := cam.Validate(); err == nil {
		t.Fatal("expected zero fov to be rejected")
	}
}

func TestProjectedRadius(t *testing.T) {
	cam := topDown()
	rx, ry, ok := cam.ProjectedRadius(math32.Vec3(0, 0, 0), 2)
	if !ok || !near(rx, 0.1) || !near(ry, 0.1) {
		t.Fatalf("unexpected radius %v %v ok=%v", rx, ry, ok)
	}
}

func TestPlayfieldTopDown(t *testing.T) {
	pf := camera.Playfield{MinX: 0, MinY: 0, MaxX: 10, MaxY: 20}
	uv := pf.ProjectTopDown(math32.Vec3(5, 5, 3))
	if !near(uv.X, 0.5) || !near(uv.Y, 0.25) {
		t.Fatalf("unexpected uv %v", uv)
	}
	if err := (camera.Playfield{}).Validate(); err == nil {
		t.Fatal("expected empty playfield to be rejected")
	}
}

func TestDefaultCameraSeesPlayfield(t *testing.T) {
	pf := camera.Playfield{MinX: 0, MinY: 0, MaxX: 1, MaxY: 2}
	cam := camera.Default(pf, 0.5)
	if err := cam.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, p := range []math32.Vector3{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 2}, {X: 1, Y: 2}} {
		s, _, ok := cam.Project(p)
		if !ok || s.X < 0 || s.X > 1 || s.Y < 0 || s.Y > 1 {
			t.Fatalf("playfield corner %v projected outside the frame: %v", p, s)
		}
	}
}
