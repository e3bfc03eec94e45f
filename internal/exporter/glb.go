package exporter

import (
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// writeGLB saves one part as a binary glTF. World space is z-up while
// glTF is y-up, so positions map (x, y, z) to (x, z, -y); that rotation
// keeps the face winding. Texture coordinates already use the glTF
// convention (origin top-left).
func writeGLB(path, name string, p Part, texture string) error {
	m := p.Mesh
	positions := make([][3]float32, len(m.Positions))
	for i, v := range m.Positions {
		positions[i] = [3]float32{v.X, v.Z, -v.Y}
	}
	uvs := make([][2]float32, len(m.UVs))
	for i, uv := range m.UVs {
		uvs[i] = [2]float32{uv.X, uv.Y}
	}
	indices := make([]uint32, 0, 3*len(m.Faces))
	for _, f := range m.Faces {
		indices = append(indices, uint32(f.V[0]), uint32(f.V[1]), uint32(f.V[2]))
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "lightmapper"
	attrs := map[string]int{
		gltf.POSITION:   modeler.WritePosition(doc, positions),
		gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, uvs),
	}
	if m.Colors != nil {
		colors := make([][4]float32, len(m.Colors))
		for i, c := range m.Colors {
			colors[i] = [4]float32{c, c, c, 1}
		}
		attrs[gltf.COLOR_0] = modeler.WriteColor(doc, colors)
	}

	pbr := &gltf.PBRMetallicRoughness{
		MetallicFactor:  gltf.Float(0),
		RoughnessFactor: gltf.Float(1),
	}
	if texture != "" {
		doc.Images = append(doc.Images, &gltf.Image{Name: texture, URI: texture})
		doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(0)})
		pbr.BaseColorTexture = &gltf.TextureInfo{Index: 0}
	}
	material := &gltf.Material{Name: name, PBRMetallicRoughness: pbr, AlphaMode: gltf.AlphaOpaque}
	if p.Kind == KindLightmap || !p.Opaque {
		material.AlphaMode = gltf.AlphaBlend
	}
	doc.Materials = []*gltf.Material{material}

	doc.Meshes = []*gltf.Mesh{{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Attributes: attrs,
			Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
			Material:   gltf.Index(0),
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return gltf.SaveBinary(doc, path)
}
