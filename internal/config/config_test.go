package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"lightmapper/internal/config"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	homedir.DisableCache = true
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LIGHTMAPPER_CONFIG", "")
	t.Setenv("LIGHTMAPPER_UVPACKER", "")
	t.Chdir(home)
	return home
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolateHome(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(home, ".local", "share", "lightmapper")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.CacheDir != filepath.Join(home, ".cache", "lightmapper", "renders") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if !filepath.IsAbs(cfg.Paths.ExportDir) {
		t.Fatalf("expected absolute export dir, got %q", cfg.Paths.ExportDir)
	}
	if cfg.Render.StalePolicy != config.StalePolicyError {
		t.Fatalf("unexpected stale policy: %q", cfg.Render.StalePolicy)
	}
	if cfg.Bake.EnableMovable {
		t.Fatal("expected movable bake mode disabled by default")
	}
	if !cfg.Bake.EnableAOI {
		t.Fatal("expected AOI culling enabled by default")
	}
	if cfg.Render.Workers <= 0 {
		t.Fatalf("expected positive worker count, got %d", cfg.Render.Workers)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "custom.toml")
	content := `
[paths]
cache_dir = "~/renders"

[bake]
render_height = 1024
aspect_ratio = 0.5
mask_height = 256
padding = 4

[render]
stale_policy = "Rerender"

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.CacheDir != filepath.Join(home, "renders") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.Render.StalePolicy != config.StalePolicyRerender {
		t.Fatalf("expected lowercased stale policy, got %q", cfg.Render.StalePolicy)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
	w, h := cfg.RenderSize()
	if w != 512 || h != 1024 {
		t.Fatalf("unexpected render size %dx%d", w, h)
	}
	if got := cfg.MaskPadding(); got != 1 {
		t.Fatalf("unexpected mask padding: got %d want 1", got)
	}
	pw, ph := cfg.PruneSize()
	if pw != 128 || ph != 256 {
		t.Fatalf("unexpected prune size %dx%d", pw, ph)
	}
}

func TestLoadUsesEnvironmentConfigPath(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "env.toml")
	if err := os.WriteFile(path, []byte("[bake]\nrender_height = 512\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LIGHTMAPPER_CONFIG", path)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected env config path, got %q exists=%v", resolved, exists)
	}
	if cfg.Bake.RenderHeight != 512 {
		t.Fatalf("unexpected render height %d", cfg.Bake.RenderHeight)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "bad.toml")
	if err := os.WriteFile(path, []byte("[bake]\nrender_heigth = 512\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestUVPackerFromEnvironment(t *testing.T) {
	home := isolateHome(t)
	t.Setenv("LIGHTMAPPER_UVPACKER", "~/bin/UVPacker")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Pack.UVPackerPath != filepath.Join(home, "bin", "UVPacker") {
		t.Fatalf("unexpected uv packer path: %q", cfg.Pack.UVPackerPath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"render height", func(c *config.Config) { c.Bake.RenderHeight = 4 }, "bake.render_height"},
		{"aspect", func(c *config.Config) { c.Bake.AspectRatio = 0 }, "bake.aspect_ratio"},
		{"stale policy", func(c *config.Config) { c.Render.StalePolicy = "ignore" }, "render.stale_policy"},
		{"dissolve", func(c *config.Config) { c.Mesh.DissolveAngle = 95 }, "mesh.dissolve_angle"},
		{"threshold", func(c *config.Config) { c.Mesh.LightmapThreshold = 1.5 }, "mesh.lightmap_threshold"},
		{"max size", func(c *config.Config) { c.Pack.MaxSize = 64 }, "pack.max_size"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error %q", tc.want, err)
			}
		})
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	var parsed config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &parsed); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	def := config.Default()
	if parsed.Bake.RenderHeight != def.Bake.RenderHeight {
		t.Fatalf("sample render_height %d differs from default %d", parsed.Bake.RenderHeight, def.Bake.RenderHeight)
	}
	if parsed.Mesh.LightmapThreshold != def.Mesh.LightmapThreshold {
		t.Fatalf("sample lightmap_threshold %v differs from default %v", parsed.Mesh.LightmapThreshold, def.Mesh.LightmapThreshold)
	}
	if parsed.Pack.MaxSize != def.Pack.MaxSize {
		t.Fatalf("sample max_size %d differs from default %d", parsed.Pack.MaxSize, def.Pack.MaxSize)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[bake]") {
		t.Fatal("expected bake section in sample config")
	}
}
