package importer

import (
	"errors"
	"fmt"
	"path/filepath"

	"cogentcore.org/core/math32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"lightmapper/internal/mesh"
)

// geometryLoader builds object meshes and caches the glTF documents it
// opens, since many objects usually share one file.
type geometryLoader struct {
	dir  string
	docs map[string]*gltf.Document
}

func newGeometryLoader(dir string) geometryLoader {
	return geometryLoader{dir: dir, docs: make(map[string]*gltf.Document)}
}

func (g geometryLoader) load(spec geometrySpec) (*mesh.Mesh, error) {
	sources := 0
	if spec.Box != nil {
		sources++
	}
	if len(spec.Vertices) > 0 {
		sources++
	}
	if spec.GLTF != "" {
		sources++
	}
	if sources != 1 {
		return nil, errors.New("geometry needs exactly one of box, vertices or gltf")
	}
	switch {
	case spec.Box != nil:
		return mesh.Box(vec3(spec.Box.Min), vec3(spec.Box.Max)), nil
	case len(spec.Vertices) > 0:
		return inlineMesh(spec)
	default:
		return g.gltfMesh(spec.GLTF, spec.Mesh)
	}
}

func inlineMesh(spec geometrySpec) (*mesh.Mesh, error) {
	if len(spec.UVs) > 0 && len(spec.UVs) != len(spec.Vertices) {
		return nil, fmt.Errorf("%d uvs for %d vertices", len(spec.UVs), len(spec.Vertices))
	}
	if len(spec.Triangles) == 0 {
		return nil, errors.New("inline geometry has no triangles")
	}
	m := mesh.New(len(spec.Vertices), len(spec.Triangles))
	for i, v := range spec.Vertices {
		var uv math32.Vector2
		if len(spec.UVs) > 0 {
			uv = math32.Vec2(spec.UVs[i][0], spec.UVs[i][1])
		}
		m.AddVertex(vec3(v), uv)
	}
	for i, tri := range spec.Triangles {
		for _, idx := range tri {
			if idx < 0 || idx >= len(spec.Vertices) {
				return nil, fmt.Errorf("triangle %d: vertex index %d out of range", i, idx)
			}
		}
		m.AddFace(tri[0], tri[1], tri[2], "", 0)
	}
	return m, nil
}

func (g geometryLoader) open(rel string) (*gltf.Document, error) {
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.dir, rel)
	}
	if doc, ok := g.docs[path]; ok {
		return doc, nil
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf %s: %w", rel, err)
	}
	g.docs[path] = doc
	return doc, nil
}

// gltfMesh reads every triangle primitive of the named mesh into one mesh
// in the z-up table frame.
func (g geometryLoader) gltfMesh(rel, name string) (*mesh.Mesh, error) {
	doc, err := g.open(rel)
	if err != nil {
		return nil, err
	}
	var src *gltf.Mesh
	for _, m := range doc.Meshes {
		if name == "" || m.Name == name {
			src = m
			break
		}
	}
	if src == nil {
		return nil, fmt.Errorf("gltf %s: mesh %q not found", rel, name)
	}

	out := mesh.New(0, 0)
	for p, prim := range src.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			return nil, fmt.Errorf("gltf %s: primitive %d is not a triangle list", rel, p)
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			return nil, fmt.Errorf("gltf %s: primitive %d has no positions", rel, p)
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("gltf %s: read positions: %w", rel, err)
		}
		var uvs [][2]float32
		if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil); err != nil {
				return nil, fmt.Errorf("gltf %s: read uvs: %w", rel, err)
			}
		}
		var indices []uint32
		if prim.Indices != nil {
			if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
				return nil, fmt.Errorf("gltf %s: read indices: %w", rel, err)
			}
		} else {
			for i := range positions {
				indices = append(indices, uint32(i))
			}
		}
		if len(indices)%3 != 0 {
			return nil, fmt.Errorf("gltf %s: primitive %d index count %d is not a multiple of 3", rel, p, len(indices))
		}

		base := out.VertexCount()
		for i, pos := range positions {
			var uv math32.Vector2
			if i < len(uvs) {
				uv = math32.Vec2(uvs[i][0], uvs[i][1])
			}
			out.AddVertex(math32.Vec3(pos[0], -pos[2], pos[1]), uv)
		}
		for i := 0; i < len(indices); i += 3 {
			a, b, c := int(indices[i]), int(indices[i+1]), int(indices[i+2])
			if max(a, b, c) >= len(positions) {
				return nil, fmt.Errorf("gltf %s: index out of range in primitive %d", rel, p)
			}
			out.AddFace(base+a, base+b, base+c, "", 0)
		}
	}
	if out.Empty() {
		return nil, fmt.Errorf("gltf %s: mesh %q has no triangles", rel, src.Name)
	}
	return out, nil
}
