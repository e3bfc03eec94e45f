package atlas

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"testing"

	"cogentcore.org/core/math32"

	"lightmapper/internal/logging"
	"lightmapper/internal/mesh"
	"lightmapper/internal/services"
)

type packerObject struct {
	id   uint32
	name string
	uvs  [][2]float64
}

// parseRequest decodes the framed request written by encodeRequest.
func parseRequest(t *testing.T, data []byte) (uint32, []packerObject) {
	t.Helper()
	r := bytes.NewReader(data)
	read := func(v any) {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			t.Fatalf("decode request: %v", err)
		}
	}
	var length uint32
	read(&length)
	if int(length) != len(data)-4 {
		t.Fatalf("frame length %d, payload %d", length, len(data)-4)
	}
	var header [6]uint32
	read(&header)
	if header[0] != 1 || header[1] != 1 || header[2] != 0 {
		t.Fatalf("unexpected protocol version %v", header[:3])
	}
	width := header[4]
	var padding float64
	read(&padding)
	var flags [4]bool
	read(&flags)
	if flags[1] || flags[2] || flags[3] {
		t.Fatalf("rescale and rotation must be off, got %v", flags)
	}
	var tail [4]uint32
	read(&tail)
	objects := make([]packerObject, tail[3])
	for i := range objects {
		var id, nameLen uint32
		read(&id)
		read(&nameLen)
		name := make([]byte, nameLen)
		read(name)
		var verts uint32
		read(&verts)
		pos := make([][3]float64, verts)
		read(pos)
		var faces uint32
		read(&faces)
		obj := packerObject{id: id, name: string(name)}
		for range faces {
			var loops uint32
			read(&loops)
			for range loops {
				var idx uint32
				var normal [3]float64
				var uv [2]float64
				var pinned bool
				var loop uint32
				read(&idx)
				read(&normal)
				read(&uv)
				read(&pinned)
				read(&loop)
				obj.uvs = append(obj.uvs, uv)
			}
		}
		objects[i] = obj
	}
	return width, objects
}

func message(kind uint32, body ...any) []byte {
	var payload bytes.Buffer
	_ = binary.Write(&payload, binary.LittleEndian, kind)
	for _, b := range body {
		_ = binary.Write(&payload, binary.LittleEndian, b)
	}
	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, uint32(payload.Len()))
	out.Write(payload.Bytes())
	return out.Bytes()
}

func twoIslands() Request {
	m := mesh.New(0, 0)
	for _, r := range [][4]float32{{0.125, 0.125, 0.375, 0.25}, {0.5, 0.5, 0.875, 0.75}} {
		a := m.AddVertex(math32.Vec3(r[0], r[1], 0), math32.Vec2(r[0], r[1]))
		b := m.AddVertex(math32.Vec3(r[2], r[1], 0), math32.Vec2(r[2], r[1]))
		c := m.AddVertex(math32.Vec3(r[2], r[3], 0), math32.Vec2(r[2], r[3]))
		d := m.AddVertex(math32.Vec3(r[0], r[3], 0), math32.Vec2(r[0], r[3]))
		m.AddFace(a, b, c, "obj", 0)
		m.AddFace(a, c, d, "obj", 0)
	}
	sizes := map[int]image.Point{0: {32, 64}}
	islands := findIslands(m, m.Screen, func(int) int { return 0 }, sizes, 1)
	return Request{Mesh: m, Coords: m.Screen, Sizes: sizes, Islands: islands, Padding: 1, MaxSize: 256}
}

func TestUVPackerTranslatesIslands(t *testing.T) {
	req := twoIslands()
	p := NewUVPacker("uvpacker", 0, logging.NewNop())
	p.run = func(_ context.Context, name string, stdin []byte) ([]byte, error) {
		if name != "uvpacker" {
			t.Fatalf("unexpected executable %q", name)
		}
		width, objects := parseRequest(t, stdin)
		var reply bytes.Buffer
		reply.Write(message(uvpProgress, 0.5))
		var body []any
		body = append(body, uint32(len(objects)))
		for _, obj := range objects {
			body = append(body, obj.id, uint32(len(obj.name)), []byte(obj.name), uint32(len(obj.uvs)))
			for _, uv := range obj.uvs {
				// second island moves 16 pixels right
				if obj.id == 1 {
					uv[0] += 16 / float64(width)
				}
				body = append(body, uv)
			}
		}
		body = append(body, 0.75)
		reply.Write(message(uvpSuccess, body...))
		return reply.Bytes(), nil
	}

	layout, err := p.Pack(context.Background(), req)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if layout.Size != 32 {
		t.Fatalf("expected 32px atlas, got %d", layout.Size)
	}
	if layout.Offsets[0] != (image.Point{}) || layout.Offsets[1] != image.Pt(16, 0) {
		t.Fatalf("unexpected offsets %v", layout.Offsets)
	}
}

func TestUVPackerReportsToolErrors(t *testing.T) {
	req := twoIslands()
	p := NewUVPacker("uvpacker", 0, logging.NewNop())
	p.run = func(context.Context, string, []byte) ([]byte, error) {
		text := []byte("no license")
		return message(uvpError, uint32(len(text)), text), nil
	}
	if _, err := p.Pack(context.Background(), req); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	p.run = func(context.Context, string, []byte) ([]byte, error) {
		return message(7), nil
	}
	if _, err := p.Pack(context.Background(), req); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestMaxRectsPlacementsDoNotOverlap(t *testing.T) {
	var islands []Island
	for i, s := range []image.Point{{20, 10}, {10, 20}, {7, 7}, {7, 7}, {30, 3}, {3, 30}} {
		islands = append(islands, Island{Faces: []int{i}, Rect: image.Rectangle{Max: s}})
	}
	layout, err := MaxRects{}.Pack(context.Background(), Request{Islands: islands, MaxSize: 128})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	bounds := image.Rect(0, 0, layout.Size, layout.Size)
	placed := make([]image.Rectangle, len(islands))
	for i, is := range islands {
		placed[i] = image.Rectangle{Min: layout.Offsets[i], Max: layout.Offsets[i].Add(is.Rect.Size())}
		if !placed[i].In(bounds) {
			t.Fatalf("island %d at %v outside %v", i, placed[i], bounds)
		}
		for j := range i {
			if placed[i].Overlaps(placed[j]) {
				t.Fatalf("islands %d and %d overlap: %v %v", i, j, placed[i], placed[j])
			}
		}
	}
}
