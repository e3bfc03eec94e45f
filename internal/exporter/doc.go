// Package exporter writes the results of a bake: one binary glTF per mesh,
// one 16-bit PNG per atlas, a manifest describing meshes, situations and
// HDR ranges, and a VBScript that keeps every lightmap's opacity in step
// with the intensity of the lights it was baked from.
//
// The PNG atlases store radiance divided by hostrender.HDRScale; the
// manifest records the scale so consumers can restore absolute values.
package exporter
