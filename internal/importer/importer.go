package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"lightmapper/internal/config"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
)

// Format is the encoding of a table description.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf derives the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", services.Wrap(services.ErrValidation, "import", "format",
		fmt.Sprintf("unsupported table extension %q (want .toml, .yaml or .yml)", filepath.Ext(path)), nil)
}

// Options controls decoding.
type Options struct {
	// Aspect is used for the default camera and for cameras that omit it.
	Aspect float32
	// Dir resolves relative glTF paths.
	Dir string
}

// OptionsFromConfig returns options matching the configured render aspect.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{Aspect: float32(cfg.Bake.AspectRatio)}
}

// Load reads and validates the table description at path. Relative glTF
// paths resolve against the table directory.
func Load(path string, opts Options) (*scene.Scene, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "import", "read table", path, err)
		}
		return nil, fmt.Errorf("read table: %w", err)
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Dir(path)
	}
	return Decode(bytes.NewReader(data), format, opts)
}

// Decode parses a table description. Unknown keys are rejected.
func Decode(r io.Reader, format Format, opts Options) (*scene.Scene, error) {
	var table tableFile
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&table); err != nil {
			return nil, decodeError(err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&table); err != nil && !errors.Is(err, io.EOF) {
			return nil, decodeError(err)
		}
	default:
		return nil, services.Wrap(services.ErrValidation, "import", "format", fmt.Sprintf("unknown format %q", format), nil)
	}

	sc, err := table.toScene(newGeometryLoader(opts.Dir), opts.Aspect)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "import", "objects", "", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "import", "validate", "", err)
	}
	return sc, nil
}

func decodeError(err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return services.Wrap(services.ErrValidation, "import", "decode",
			fmt.Sprintf("line %d column %d", row, col), err)
	}
	var smerr *toml.StrictMissingError
	if errors.As(err, &smerr) {
		return services.Wrap(services.ErrValidation, "import", "decode", strings.TrimSpace(smerr.String()), err)
	}
	return services.Wrap(services.ErrValidation, "import", "decode", "", err)
}

// Into loads the table at path and merges it into store. Locked attributes
// keep their stored values and vanished objects move to the trash class.
func Into(store *scene.Store, path string, opts Options) (scene.ImportReport, error) {
	sc, err := Load(path, opts)
	if err != nil {
		return scene.ImportReport{}, err
	}
	report, err := store.Import(sc)
	if err != nil {
		return report, services.Wrap(services.ErrValidation, "import", "merge", path, err)
	}
	return report, nil
}

// Changes lists the objects whose bake-relevant state differs after a
// reload. It resolves object IDs to the bake groups they belonged to
// before and after the reload.
type Changes struct {
	IDs    []string
	groups map[string][]string
}

// GroupsOf implements rendercache.GroupResolver.
func (c Changes) GroupsOf(ids []string) []string {
	var out []string
	for _, id := range ids {
		for _, g := range c.groups[id] {
			if !slices.Contains(out, g) {
				out = append(out, g)
			}
		}
	}
	slices.Sort(out)
	return out
}

type objectState struct {
	fingerprint string
	group       string
	lightGroup  string
}

func snapshot(store *scene.Store) map[string]objectState {
	out := make(map[string]objectState)
	for _, obj := range store.Objects() {
		out[obj.ID] = objectState{fingerprint: obj.Fingerprint(), group: obj.BakeGroup, lightGroup: obj.LightGroup}
	}
	return out
}

// Reload merges the table at path into store and reports which objects
// changed.
func Reload(store *scene.Store, path string, opts Options) (scene.ImportReport, Changes, error) {
	before := snapshot(store)
	report, err := Into(store, path, opts)
	if err != nil {
		return report, Changes{}, err
	}
	changes := Changes{groups: make(map[string][]string)}
	for id, now := range snapshot(store) {
		was, ok := before[id]
		if ok && was == now {
			continue
		}
		changes.IDs = append(changes.IDs, id)
		for _, g := range []string{was.group, now.group} {
			if g != "" && !slices.Contains(changes.groups[id], g) {
				changes.groups[id] = append(changes.groups[id], g)
			}
		}
	}
	slices.Sort(changes.IDs)
	return report, changes, nil
}
