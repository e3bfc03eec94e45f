package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	CacheDir  string `toml:"cache_dir"`
	ExportDir string `toml:"export_dir"`
	LogDir    string `toml:"log_dir"`
}

// Bake contains the camera-space resolution settings shared by every stage.
type Bake struct {
	// RenderHeight is the vertical resolution of every situation render.
	RenderHeight int `toml:"render_height"`
	// AspectRatio is width / height of the renders.
	AspectRatio float64 `toml:"aspect_ratio"`
	// MaskHeight is the vertical resolution of partition coverage masks.
	MaskHeight int `toml:"mask_height"`
	// Padding is the texel border kept between partition members, in render pixels.
	Padding       int  `toml:"padding"`
	EnableAOI     bool `toml:"enable_aoi"`
	EnableMovable bool `toml:"enable_movable"`
}

// Render contains the situation renderer settings.
type Render struct {
	Workers int `toml:"workers"`
	// StalePolicy is one of "error", "reuse", or "rerender".
	StalePolicy string `toml:"stale_policy"`
	// Ambient is the environment light intensity of the base pass.
	Ambient float64 `toml:"ambient"`
}

// Mesh contains the mesh optimizer tolerances.
type Mesh struct {
	MergeDistance       float64 `toml:"merge_distance"`
	DissolveAngle       float64 `toml:"dissolve_angle"`
	BackfaceLimit       float64 `toml:"backface_limit"`
	KeepReflectionFaces bool    `toml:"keep_reflection_faces"`
	SubdivideThreshold  float64 `toml:"subdivide_threshold"`
	SubdividePasses     int     `toml:"subdivide_passes"`
	LightmapThreshold   float64 `toml:"lightmap_threshold"`
	PruneResolution     int     `toml:"prune_resolution"`
}

// Pack contains atlas packing settings.
type Pack struct {
	Padding         int    `toml:"padding"`
	MaxSize         int    `toml:"max_size"`
	UVPackerPath    string `toml:"uvpacker_path"`
	UVPackerTimeout int    `toml:"uvpacker_timeout"`
}

// Export contains table export settings.
type Export struct {
	SyncScript bool   `toml:"sync_script"`
	ScriptName string `toml:"script_name"`
	Prefix     string `toml:"prefix"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lightmapper.
//
// Configuration sections by subsystem:
//   - Paths: state, render cache, export and log directories
//   - Bake: render and partition mask resolution, feature flags
//   - Render: situation renderer concurrency and stale cache policy
//   - Mesh: optimizer tolerances and light mesh pruning
//   - Pack: atlas padding, size limit and external UV packer
//   - Export: synchronization script generation
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Bake    Bake    `toml:"bake"`
	Render  Render  `toml:"render"`
	Mesh    Mesh    `toml:"mesh"`
	Pack    Pack    `toml:"pack"`
	Export  Export  `toml:"export"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		if env, ok := os.LookupEnv("LIGHTMAPPER_CONFIG"); ok && strings.TrimSpace(env) != "" {
			path = env
		}
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lightmapper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a batch writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.CacheDir, c.Paths.ExportDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RenderSize returns the width and height of situation renders.
func (c *Config) RenderSize() (int, int) {
	return scaledWidth(c.Bake.RenderHeight, c.Bake.AspectRatio), c.Bake.RenderHeight
}

// MaskSize returns the width and height of partition coverage masks.
func (c *Config) MaskSize() (int, int) {
	return scaledWidth(c.Bake.MaskHeight, c.Bake.AspectRatio), c.Bake.MaskHeight
}

// MaskPadding converts the render padding into mask pixels.
func (c *Config) MaskPadding() int {
	if c.Bake.RenderHeight <= 0 {
		return 0
	}
	return int(math.Ceil(float64(c.Bake.MaskHeight*c.Bake.Padding) / float64(c.Bake.RenderHeight)))
}

// PruneSize returns the resolution of the light mesh visibility maps.
func (c *Config) PruneSize() (int, int) {
	h := min(c.Mesh.PruneResolution, c.Bake.RenderHeight)
	return scaledWidth(h, c.Bake.AspectRatio), h
}

// BatchDBPath is the sqlite database recording batch runs.
func (c *Config) BatchDBPath() string {
	return filepath.Join(c.Paths.StateDir, "batches.db")
}

// CacheDBPath is the sqlite index of the render cache.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.CacheDir, "index.db")
}

// CacheLockPath guards the render cache against concurrent batches.
func (c *Config) CacheLockPath() string {
	return filepath.Join(c.Paths.CacheDir, "cache.lock")
}

func scaledWidth(height int, aspect float64) int {
	w := int(math.Round(float64(height) * aspect))
	if w < 1 {
		w = 1
	}
	return w
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	expanded, err := homedir.Expand(pathValue)
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	cleaned := filepath.Clean(expanded)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
