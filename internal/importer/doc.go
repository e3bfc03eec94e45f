// Package importer reads table descriptions into scene objects.
//
// A table is described in TOML or YAML: the bake camera, the playfield
// rectangle, bake and light groups, and the objects with their group
// membership. Object geometry is either a box primitive, inline vertex and
// triangle lists, or a mesh from a glTF/glb file resolved relative to the
// table. glTF is y-up; positions are converted to the z-up table frame on
// load.
package importer
