package exporter

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestName is the file name of the export manifest.
const ManifestName = "manifest.json"

const manifestVersion = 1

// Manifest describes one export directory.
type Manifest struct {
	Version   int    `json:"version"`
	Generator string `json:"generator"`
	BatchID   string `json:"batch_id"`
	Table     string `json:"table"`
	// HDRScale is the radiance of a full-scale atlas channel.
	HDRScale float32        `json:"hdr_scale"`
	Script   string         `json:"script,omitempty"`
	Meshes   []ManifestMesh `json:"meshes"`
}

// ManifestMesh is one exported mesh.
type ManifestMesh struct {
	Name        string   `json:"name"`
	Identifier  string   `json:"identifier"`
	Kind        Kind     `json:"kind"`
	Groups      []string `json:"groups"`
	Situation   string   `json:"situation"`
	Lights      []Light  `json:"lights,omitempty"`
	HDRRange    float32  `json:"hdr_range"`
	Opaque      bool     `json:"opaque"`
	File        string   `json:"file"`
	Texture     string   `json:"texture,omitempty"`
	TextureSize [2]int   `json:"texture_size"`
	Vertices    int      `json:"vertices"`
	Faces       int      `json:"faces"`
}

// Lightmaps returns the lightmap entries in manifest order.
func (m *Manifest) Lightmaps() []ManifestMesh {
	var out []ManifestMesh
	for _, mm := range m.Meshes {
		if mm.Kind == KindLightmap {
			out = append(out, mm)
		}
	}
	return out
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d", path, m.Version)
	}
	return &m, nil
}
