package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"lightmapper/internal/config"
	"lightmapper/internal/fileutil"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/logging"
	"lightmapper/internal/mesh"
	"lightmapper/internal/services"
	"lightmapper/internal/textutil"
)

// Kind tells solid meshes from lightmaps.
type Kind string

const (
	KindSolid    Kind = "solid"
	KindLightmap Kind = "lightmap"
)

// Light names one emitter driving a lightmap.
type Light struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Part is one mesh ready for export together with its atlas.
type Part struct {
	Kind Kind
	// Groups lists the bake groups merged into the mesh.
	Groups        []string
	SituationID   string
	SituationName string
	Lights        []Light
	HDRRange      float32
	Opaque        bool
	Mesh          *mesh.Mesh
	Image         *image.NRGBA64
}

// Name returns the display name of the part, e.g. "LM.Parts.Environment".
func (p Part) Name(prefix string) string {
	return strings.Join([]string{prefix, strings.Join(p.Groups, "+"), p.SituationName}, ".")
}

// Options controls where and what the exporter writes.
type Options struct {
	Dir        string
	Prefix     string
	SyncScript bool
	ScriptName string
}

// OptionsFromConfig derives export options from the configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Dir:        cfg.Paths.ExportDir,
		Prefix:     cfg.Export.Prefix,
		SyncScript: cfg.Export.SyncScript,
		ScriptName: cfg.Export.ScriptName,
	}
}

// Exporter writes bake results to disk.
type Exporter struct {
	opts   Options
	logger *slog.Logger
}

// New returns an exporter.
func New(opts Options, logger *slog.Logger) *Exporter {
	if opts.Prefix == "" {
		opts.Prefix = "LM"
	}
	if opts.ScriptName == "" {
		opts.ScriptName = "lightmaps.vbs"
	}
	return &Exporter{opts: opts, logger: logging.NewComponentLogger(logger, "exporter")}
}

// Meta identifies the batch an export belongs to.
type Meta struct {
	BatchID   string
	TablePath string
}

// Write exports parts and returns the manifest with the paths written, in
// write order. Parts without faces are skipped.
func (e *Exporter) Write(ctx context.Context, meta Meta, parts []Part) (*Manifest, []string, error) {
	dir := e.opts.Dir
	if strings.TrimSpace(dir) == "" {
		return nil, nil, services.Wrap(services.ErrConfiguration, "export", "output", "export directory is not configured", nil)
	}
	manifest := &Manifest{
		Version:   manifestVersion,
		BatchID:   meta.BatchID,
		Table:     filepath.Base(meta.TablePath),
		HDRScale:  hostrender.HDRScale,
		Generator: "lightmapper",
	}
	var written []string
	if meta.TablePath != "" {
		// the export is self-contained: keep the table it was baked from
		path := filepath.Join(dir, manifest.Table)
		if err := fileutil.CopyFileVerified(meta.TablePath, path); err != nil {
			return nil, nil, services.Wrap(services.ErrTransient, "export", "copy table", meta.TablePath, err)
		}
		written = append(written, path)
	}
	seen := make(map[string]bool)
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, written, err
		}
		if p.Mesh == nil || p.Mesh.Empty() {
			continue
		}
		name := p.Name(e.opts.Prefix)
		base := textutil.FileName(e.opts.Prefix, strings.Join(p.Groups, "+"), p.SituationName)
		if seen[base] {
			return nil, written, services.Wrap(services.ErrValidation, "export", "naming",
				fmt.Sprintf("two parts export as %q", base), nil)
		}
		seen[base] = true

		entry := ManifestMesh{
			Name:       name,
			Identifier: textutil.Identifier(e.opts.Prefix, strings.Join(p.Groups, " "), p.SituationName),
			Kind:       p.Kind,
			Groups:     slices.Clone(p.Groups),
			Situation:  p.SituationID,
			Lights:     slices.Clone(p.Lights),
			HDRRange:   p.HDRRange,
			Opaque:     p.Opaque,
			Vertices:   p.Mesh.VertexCount(),
			Faces:      p.Mesh.FaceCount(),
		}
		if p.Image != nil {
			entry.Texture = base + ".png"
			entry.TextureSize = [2]int{p.Image.Rect.Dx(), p.Image.Rect.Dy()}
			path := filepath.Join(dir, entry.Texture)
			if _, err := fileutil.WriteAtomic(path, func(w io.Writer) error {
				return png.Encode(w, p.Image)
			}); err != nil {
				return nil, written, services.Wrap(services.ErrTransient, "export", "write atlas", path, err)
			}
			written = append(written, path)
		}
		entry.File = base + ".glb"
		path := filepath.Join(dir, entry.File)
		if err := writeGLB(path, name, p, entry.Texture); err != nil {
			return nil, written, services.Wrap(services.ErrTransient, "export", "write mesh", path, err)
		}
		written = append(written, path)
		manifest.Meshes = append(manifest.Meshes, entry)

		e.logger.DebugContext(ctx, "mesh exported",
			logging.String("mesh", name),
			logging.Int("faces", entry.Faces),
			logging.Int("vertices", entry.Vertices),
			logging.String("path", path),
		)
	}

	if e.opts.SyncScript {
		path := filepath.Join(dir, e.opts.ScriptName)
		if _, err := fileutil.WriteAtomic(path, func(w io.Writer) error {
			return writeScript(w, e.opts.Prefix, manifest)
		}); err != nil {
			return nil, written, services.Wrap(services.ErrTransient, "export", "write script", path, err)
		}
		manifest.Script = e.opts.ScriptName
		written = append(written, path)
	}

	path := filepath.Join(dir, ManifestName)
	if _, err := fileutil.WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	}); err != nil {
		return nil, written, services.Wrap(services.ErrTransient, "export", "write manifest", path, err)
	}
	written = append(written, path)

	e.logger.InfoContext(ctx, "export written",
		logging.Int("meshes", len(manifest.Meshes)),
		logging.String("path", dir),
		logging.String(logging.FieldEventType, "export_complete"),
	)
	return manifest, written, nil
}
