package testsupport

import (
	"path/filepath"
	"testing"

	"lightmapper/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Resolutions are kept small so pipeline tests stay fast; the aspect ratio
// matches the Table fixture camera.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.ExportDir = filepath.Join(base, "export")
	cfgVal.Paths.LogDir = ""
	cfgVal.Bake.RenderHeight = 64
	cfgVal.Bake.MaskHeight = 128
	cfgVal.Bake.AspectRatio = 0.5
	cfgVal.Render.Workers = 2
	cfgVal.Pack.MaxSize = 1024

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithRenderHeight overrides render and mask resolution.
func WithRenderHeight(height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bake.RenderHeight = height
		b.cfg.Bake.MaskHeight = height
	}
}

// WithMaskHeight overrides the partition mask resolution.
func WithMaskHeight(height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bake.MaskHeight = height
	}
}

// WithAOI toggles area-of-influence culling.
func WithAOI(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bake.EnableAOI = enabled
	}
}

// WithStalePolicy overrides the render cache stale policy.
func WithStalePolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.StalePolicy = policy
	}
}

// WithMovable enables the movable bake mode.
func WithMovable() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bake.EnableMovable = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
