package importer

import (
	"fmt"

	"cogentcore.org/core/math32"

	"lightmapper/internal/camera"
	"lightmapper/internal/scene"
)

type tableFile struct {
	Camera      *cameraSpec      `toml:"camera" yaml:"camera"`
	Playfield   playfieldSpec    `toml:"playfield" yaml:"playfield"`
	BakeGroups  []bakeGroupSpec  `toml:"bake_groups" yaml:"bake_groups"`
	LightGroups []lightGroupSpec `toml:"light_groups" yaml:"light_groups"`
	Objects     []objectSpec     `toml:"objects" yaml:"objects"`
}

type cameraSpec struct {
	Position [3]float32 `toml:"position" yaml:"position"`
	Target   [3]float32 `toml:"target" yaml:"target"`
	Up       [3]float32 `toml:"up" yaml:"up"`
	FOV      float32    `toml:"fov" yaml:"fov"`
	Aspect   float32    `toml:"aspect" yaml:"aspect"`
	Near     float32    `toml:"near" yaml:"near"`
}

type playfieldSpec struct {
	Min [2]float32 `toml:"min" yaml:"min"`
	Max [2]float32 `toml:"max" yaml:"max"`
}

type bakeGroupSpec struct {
	Name       string `toml:"name" yaml:"name"`
	Mode       string `toml:"mode" yaml:"mode"`
	Opaque     *bool  `toml:"opaque" yaml:"opaque"`
	SyncObject string `toml:"sync_object" yaml:"sync_object"`
}

type lightGroupSpec struct {
	Name   string `toml:"name" yaml:"name"`
	Mode   string `toml:"mode" yaml:"mode"`
	Hidden bool   `toml:"hidden" yaml:"hidden"`
}

type objectSpec struct {
	ID         string   `toml:"id" yaml:"id"`
	Name       string   `toml:"name" yaml:"name"`
	Kind       string   `toml:"kind" yaml:"kind"`
	BakeGroup  string   `toml:"bake_group" yaml:"bake_group"`
	LightGroup string   `toml:"light_group" yaml:"light_group"`
	Class      string   `toml:"class" yaml:"class"`
	Locked     []string `toml:"locked" yaml:"locked"`

	Location *[3]float32 `toml:"location" yaml:"location"`
	Rotation *[3]float32 `toml:"rotation" yaml:"rotation"`
	Scale    *[3]float32 `toml:"scale" yaml:"scale"`

	Material *materialSpec `toml:"material" yaml:"material"`
	Light    *lightSpec    `toml:"light" yaml:"light"`
	Geometry *geometrySpec `toml:"geometry" yaml:"geometry"`
}

type materialSpec struct {
	Name     string      `toml:"name" yaml:"name"`
	Color    *[3]float32 `toml:"color" yaml:"color"`
	Opaque   *bool       `toml:"opaque" yaml:"opaque"`
	Emission float32     `toml:"emission" yaml:"emission"`
}

type lightSpec struct {
	Color        *[3]float32 `toml:"color" yaml:"color"`
	Energy       float32     `toml:"energy" yaml:"energy"`
	ShadowRadius float32     `toml:"shadow_radius" yaml:"shadow_radius"`
	AOI          *bool       `toml:"aoi" yaml:"aoi"`
}

type geometrySpec struct {
	Box       *boxSpec     `toml:"box" yaml:"box"`
	Vertices  [][3]float32 `toml:"vertices" yaml:"vertices"`
	UVs       [][2]float32 `toml:"uvs" yaml:"uvs"`
	Triangles [][3]int     `toml:"triangles" yaml:"triangles"`
	// GLTF is a .gltf or .glb path relative to the table file.
	GLTF string `toml:"gltf" yaml:"gltf"`
	// Mesh selects a mesh of the glTF file by name; empty takes the first.
	Mesh string `toml:"mesh" yaml:"mesh"`
}

type boxSpec struct {
	Min [3]float32 `toml:"min" yaml:"min"`
	Max [3]float32 `toml:"max" yaml:"max"`
}

func vec3(v [3]float32) math32.Vector3 {
	return math32.Vec3(v[0], v[1], v[2])
}

// toScene converts the decoded file. Missing camera fields fall back to
// the default camera for the playfield at the configured aspect.
func (t *tableFile) toScene(g geometryLoader, aspect float32) (*scene.Scene, error) {
	pf := camera.Playfield{MinX: t.Playfield.Min[0], MinY: t.Playfield.Min[1], MaxX: t.Playfield.Max[0], MaxY: t.Playfield.Max[1]}
	sc := &scene.Scene{Playfield: pf, Camera: camera.Default(pf, aspect)}
	if c := t.Camera; c != nil {
		sc.Camera.Position = vec3(c.Position)
		sc.Camera.Target = vec3(c.Target)
		if c.Up != [3]float32{} {
			sc.Camera.Up = vec3(c.Up)
		}
		if c.FOV != 0 {
			sc.Camera.FOV = c.FOV
		}
		if c.Aspect != 0 {
			sc.Camera.Aspect = c.Aspect
		}
		if c.Near != 0 {
			sc.Camera.Near = c.Near
		}
	}

	for _, bg := range t.BakeGroups {
		group := scene.BakeGroup{Name: bg.Name, Mode: scene.BakeMode(bg.Mode), Opaque: true, SyncObject: bg.SyncObject}
		if group.Mode == "" {
			group.Mode = scene.BakeDefault
		}
		if bg.Opaque != nil {
			group.Opaque = *bg.Opaque
		}
		sc.BakeGroups = append(sc.BakeGroups, group)
	}
	for _, lg := range t.LightGroups {
		group := scene.LightGroup{Name: lg.Name, Mode: scene.LightMode(lg.Mode), Hidden: lg.Hidden}
		if group.Mode == "" {
			group.Mode = scene.LightGroupMode
		}
		sc.LightGroups = append(sc.LightGroups, group)
	}

	for i, spec := range t.Objects {
		obj, err := spec.toObject(g, i)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", spec.ID, err)
		}
		sc.Objects = append(sc.Objects, obj)
	}
	return sc, nil
}

func (o objectSpec) toObject(g geometryLoader, declared int) (*scene.Object, error) {
	obj := &scene.Object{
		ID:         o.ID,
		Name:       o.Name,
		Kind:       scene.Kind(o.Kind),
		BakeGroup:  o.BakeGroup,
		LightGroup: o.LightGroup,
		Class:      scene.Class(o.Class),
		Locked:     o.Locked,
		Transform:  scene.Identity(),
		Declared:   declared,
		Material:   scene.Material{Color: [3]float32{0.8, 0.8, 0.8}, Opaque: true},
	}
	if obj.Name == "" {
		obj.Name = o.ID
	}
	if obj.Kind == "" {
		obj.Kind = scene.KindMesh
		if o.Light != nil && o.Geometry == nil {
			obj.Kind = scene.KindLight
		}
	}
	if o.Location != nil {
		obj.Transform.Location = vec3(*o.Location)
	}
	if o.Rotation != nil {
		obj.Transform.Rotation = vec3(*o.Rotation)
	}
	if o.Scale != nil {
		obj.Transform.Scale = vec3(*o.Scale)
	}

	if m := o.Material; m != nil {
		obj.Material.Name = m.Name
		obj.Material.Emission = m.Emission
		if m.Color != nil {
			obj.Material.Color = *m.Color
		}
		if m.Opaque != nil {
			obj.Material.Opaque = *m.Opaque
		}
	}
	if l := o.Light; l != nil {
		light := &scene.Light{Color: [3]float32{1, 1, 1}, Energy: l.Energy, ShadowRadius: l.ShadowRadius, AOI: true}
		if l.Color != nil {
			light.Color = *l.Color
		}
		if l.AOI != nil {
			light.AOI = *l.AOI
		}
		obj.Light = light
	}

	if obj.Kind == scene.KindMesh {
		if o.Geometry == nil {
			return nil, fmt.Errorf("mesh objects need geometry")
		}
		m, err := g.load(*o.Geometry)
		if err != nil {
			return nil, err
		}
		obj.Mesh = m
	}
	return obj, nil
}
