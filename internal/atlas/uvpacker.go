package atlas

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"lightmapper/internal/logging"
	"lightmapper/internal/services"
)

// Reply message types of the UV packer protocol.
const (
	uvpSuccess  uint32 = 0
	uvpProgress uint32 = 1
	uvpError    uint32 = 2
)

// uvpVersion is the plugin protocol version announced to the packer.
var uvpVersion = [3]uint32{1, 1, 0}

type commandRunner func(ctx context.Context, name string, stdin []byte) ([]byte, error)

// UVPacker delegates island placement to an external UV-Packer executable
// speaking the plugin binary protocol over stdin/stdout. Rotation and
// rescaling are disabled so every island moves by a pure translation.
type UVPacker struct {
	Path    string
	Timeout time.Duration
	logger  *slog.Logger
	run     commandRunner
}

// NewUVPacker returns a packer running the executable at path.
func NewUVPacker(path string, timeout time.Duration, logger *slog.Logger) *UVPacker {
	return &UVPacker{
		Path:    path,
		Timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "uvpacker"),
		run:     defaultCommandRunner,
	}
}

func defaultCommandRunner(ctx context.Context, name string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Pack implements Packer.
func (u *UVPacker) Pack(ctx context.Context, req Request) (Layout, error) {
	if len(req.Islands) == 0 {
		return Layout{Size: 1}, nil
	}
	for size := startSize(req.Islands); size <= req.MaxSize; size *= 2 {
		offsets, err := u.packAt(ctx, req, size)
		if err != nil {
			return Layout{}, err
		}
		if fits(req.Islands, offsets, size) {
			return Layout{Size: size, Offsets: offsets}, nil
		}
		u.logger.Debug("uv packer overflow, growing atlas", logging.Int("size", size))
	}
	return Layout{}, services.Wrap(services.ErrValidation, "pack", "uvpacker",
		fmt.Sprintf("%d islands do not fit a %dx%d atlas", len(req.Islands), req.MaxSize, req.MaxSize), nil)
}

func fits(islands []Island, offsets []image.Point, size int) bool {
	bounds := image.Rect(0, 0, size, size)
	for i, is := range islands {
		r := image.Rectangle{Min: offsets[i], Max: offsets[i].Add(is.Rect.Size())}
		if !r.In(bounds) {
			return false
		}
	}
	return true
}

func (u *UVPacker) packAt(ctx context.Context, req Request, size int) ([]image.Point, error) {
	runCtx := ctx
	if u.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, u.Timeout)
		defer cancel()
	}
	payload := encodeRequest(req, size)
	out, err := u.run(runCtx, u.Path, payload)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "pack", "uvpacker", "run "+u.Path, err)
	}
	uvs, err := u.decodeReplies(out)
	if err != nil {
		return nil, err
	}
	if len(uvs) != len(req.Islands) {
		return nil, services.Wrap(services.ErrExternalTool, "pack", "uvpacker",
			fmt.Sprintf("expected %d islands in reply, got %d", len(req.Islands), len(uvs)), nil)
	}
	offsets := make([]image.Point, len(req.Islands))
	for i, is := range req.Islands {
		first := req.Mesh.Faces[is.Faces[0]].V[0]
		local := islandLocal(req, is, first)
		placed, ok := uvs[i]
		if !ok || len(placed) == 0 {
			return nil, services.Wrap(services.ErrExternalTool, "pack", "uvpacker",
				"missing uvs for island "+strconv.Itoa(i), nil)
		}
		px := placed[0][0] * float64(size)
		py := (1 - placed[0][1]) * float64(size)
		offsets[i] = image.Pt(int(math.Round(px-local[0])), int(math.Round(py-local[1])))
	}
	return offsets, nil
}

// islandLocal returns the pixel position of vertex v relative to the
// island's padded rectangle.
func islandLocal(req Request, is Island, v int) [2]float64 {
	size := req.Sizes[is.Source]
	c := req.Coords[v]
	return [2]float64{
		float64(c.X)*float64(size.X) - float64(is.Rect.Min.X),
		float64(c.Y)*float64(size.Y) - float64(is.Rect.Min.Y),
	}
}

// encodeRequest serializes the islands as one packer object each, with
// texture coordinates in the packer convention (v up).
func encodeRequest(req Request, size int) []byte {
	var body bytes.Buffer
	w := func(v any) { _ = binary.Write(&body, binary.LittleEndian, v) }
	for _, v := range uvpVersion {
		w(v)
	}
	w(uint32(1)) // best pack mode
	w(uint32(size))
	w(uint32(size))
	w(float64(req.Padding) / float64(size))
	w(true)  // combine
	w(false) // rescale
	w(false) // pre-rotate
	w(false) // full rotation
	w(uint32(0))
	w(uint32(1)) // tiles x
	w(uint32(1)) // tiles y
	w(uint32(len(req.Islands)))
	for i, is := range req.Islands {
		w(uint32(i))
		name := []byte("island" + strconv.Itoa(i))
		w(uint32(len(name)))
		body.Write(name)

		local := make(map[int]int)
		var verts []int
		for _, f := range is.Faces {
			for _, v := range req.Mesh.Faces[f].V {
				if _, ok := local[v]; !ok {
					local[v] = len(verts)
					verts = append(verts, v)
				}
			}
		}
		w(uint32(len(verts)))
		for _, v := range verts {
			p := req.Mesh.Positions[v]
			w([3]float64{float64(p.X), float64(p.Y), float64(p.Z)})
		}
		w(uint32(len(is.Faces)))
		loop := uint32(0)
		for _, f := range is.Faces {
			w(uint32(3))
			for _, v := range req.Mesh.Faces[f].V {
				uv := islandLocal(req, is, v)
				w(uint32(local[v]))
				w([3]float64{0, 0, 1})
				w([2]float64{uv[0] / float64(size), 1 - uv[1]/float64(size)})
				w(false)
				w(loop)
				loop++
			}
		}
	}
	var framed bytes.Buffer
	_ = binary.Write(&framed, binary.LittleEndian, uint32(body.Len()))
	framed.Write(body.Bytes())
	return framed.Bytes()
}

// decodeReplies reads packer messages until success and returns the placed
// loop coordinates of every object keyed by object id.
func (u *UVPacker) decodeReplies(out []byte) (map[int][][2]float64, error) {
	r := bytes.NewReader(out)
	for {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, protocolError("read message size", err)
		}
		msg := make([]byte, size)
		if _, err := io.ReadFull(r, msg); err != nil {
			return nil, protocolError("read message", err)
		}
		mr := bytes.NewReader(msg)
		var kind uint32
		if err := binary.Read(mr, binary.LittleEndian, &kind); err != nil {
			return nil, protocolError("read message type", err)
		}
		switch kind {
		case uvpSuccess:
			return decodeSuccess(mr)
		case uvpProgress:
			var progress float64
			if err := binary.Read(mr, binary.LittleEndian, &progress); err != nil {
				return nil, protocolError("read progress", err)
			}
			u.logger.Debug("uv packer progress", logging.Float64("progress", progress))
		case uvpError:
			text, err := readString(mr)
			if err != nil {
				return nil, protocolError("read error message", err)
			}
			return nil, services.Wrap(services.ErrExternalTool, "pack", "uvpacker", text, nil)
		default:
			return nil, protocolError(fmt.Sprintf("unsupported message type %d", kind), nil)
		}
	}
}

func decodeSuccess(r *bytes.Reader) (map[int][][2]float64, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, protocolError("read object count", err)
	}
	result := make(map[int][][2]float64, count)
	for range count {
		var id, loops uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, protocolError("read object id", err)
		}
		if _, err := readString(r); err != nil {
			return nil, protocolError("read object name", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &loops); err != nil {
			return nil, protocolError("read loop count", err)
		}
		uvs := make([][2]float64, loops)
		if err := binary.Read(r, binary.LittleEndian, uvs); err != nil {
			return nil, protocolError("read loop uvs", err)
		}
		result[int(id)] = uvs
	}
	var coverage float64
	if err := binary.Read(r, binary.LittleEndian, &coverage); err != nil && !errors.Is(err, io.EOF) {
		return nil, protocolError("read coverage", err)
	}
	return result, nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func protocolError(msg string, err error) error {
	return services.Wrap(services.ErrExternalTool, "pack", "uvpacker protocol", msg, err)
}
