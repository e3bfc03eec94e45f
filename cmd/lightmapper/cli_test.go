package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"lightmapper/internal/importer"
	"lightmapper/internal/logging"
	"lightmapper/internal/rendercache"
	"lightmapper/internal/scene"
	"lightmapper/internal/testsupport"
)

const cliTable = `
[playfield]
min = [0.0, 0.0]
max = [1.0, 2.0]

[[bake_groups]]
name = "Parts"

[[light_groups]]
name = "GI"

[[objects]]
id = "base"
name = "Base"
bake_group = "Parts"
[objects.geometry.box]
min = [0.2, 0.7, 0.0]
max = [0.8, 1.3, 0.05]

[[objects]]
id = "post"
name = "Post"
bake_group = "Parts"
[objects.geometry.box]
min = [0.4, 0.9, 0.05]
max = [0.6, 1.1, 0.25]

[[objects]]
id = "gi1"
name = "GI 1"
light_group = "GI"
location = [0.5, 1.0, 0.5]
[objects.light]
energy = 1.0
`

type cliEnv struct {
	configPath string
	tablePath  string
	exportDir  string
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	configPath := testsupport.WriteTable(t, base, "lightmapper.toml", string(data))
	return &cliEnv{
		configPath: configPath,
		tablePath:  testsupport.WriteTable(t, base, "table.toml", cliTable),
		exportDir:  cfg.Paths.ExportDir,
	}
}

func runCLI(t *testing.T, env *cliEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func requireContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}

func TestConfigInitShowAndValidate(t *testing.T) {
	env := setupCLI(t)
	out, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Render size: 32x64")

	out, err = runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "render_height = 64")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestImportSummarizesTable(t *testing.T) {
	env := setupCLI(t)
	out, err := runCLI(t, env, "import", env.tablePath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, out, "Bake groups: 1  Light groups: 1  Objects: 3")
	requireContains(t, out, "Environment")

	out, err = runCLI(t, env, "import", "--json", env.tablePath)
	if err != nil {
		t.Fatalf("import --json: %v", err)
	}
	var summary importSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Situations) != 2 || summary.Situations[1].ID != "GI" {
		t.Fatalf("unexpected situations %+v", summary.Situations)
	}
}

func TestBakeExportsAndRecordsBatch(t *testing.T) {
	env := setupCLI(t)
	out, err := runCLI(t, env, "bake", env.tablePath)
	if err != nil {
		t.Fatalf("bake: %v\n%s", err, out)
	}
	requireContains(t, out, ": completed")
	requireContains(t, out, "manifest.json")
	if _, err := os.Stat(filepath.Join(env.exportDir, "manifest.json")); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}

	out, err = runCLI(t, env, "batches", "--json")
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	var batches []map[string]any
	if err := json.Unmarshal([]byte(out), &batches); err != nil {
		t.Fatalf("decode batches: %v", err)
	}
	if len(batches) != 1 || batches[0]["Status"] != "completed" {
		t.Fatalf("unexpected batches %v", batches)
	}
	out, err = runCLI(t, env, "batches", "show", batches[0]["ID"].(string))
	if err != nil {
		t.Fatalf("batches show: %v", err)
	}
	requireContains(t, out, "(batch)")

	out, err = runCLI(t, env, "cache", "stats", "--json")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	var stats rendercache.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries == 0 || stats.Groups["Parts"] != stats.Entries {
		t.Fatalf("unexpected cache stats %+v", stats)
	}

	out, err = runCLI(t, env, "cache", "invalidate", "--group", "Parts")
	if err != nil {
		t.Fatalf("cache invalidate: %v", err)
	}
	requireContains(t, out, "Invalidated")
	if _, err := runCLI(t, env, "cache", "invalidate"); err == nil {
		t.Fatal("expected invalidate without a filter to fail")
	}
}

func TestStageCommandStopsEarly(t *testing.T) {
	env := setupCLI(t)
	out, err := runCLI(t, env, "render", env.tablePath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	requireContains(t, out, ": completed")
	if strings.Contains(out, "Wrote") {
		t.Fatalf("render command exported files:\n%s", out)
	}
	if _, err := runCLI(t, env, "partition", "--group", "Ramps", env.tablePath); err == nil {
		t.Fatal("expected unknown group to fail")
	}
}

func TestWatcherReloadInvalidatesChangedGroups(t *testing.T) {
	env := setupCLI(t)
	if _, err := runCLI(t, env, "render", env.tablePath); err != nil {
		t.Fatalf("render: %v", err)
	}

	ctx := newCommandContext(&env.configPath, new(string))
	sess, err := ctx.openSession()
	if err != nil {
		t.Fatalf("openSession: %v", err)
	}
	defer sess.Close()
	var out bytes.Buffer
	w := &tableWatcher{path: env.tablePath, store: scene.NewStore(), sess: sess, out: &out, logger: logging.NewNop()}
	if _, err := importer.Into(w.store, env.tablePath, importer.OptionsFromConfig(sess.cfg)); err != nil {
		t.Fatalf("Into: %v", err)
	}

	if err := w.reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	requireContains(t, out.String(), "without bake-relevant changes")

	edited := strings.Replace(cliTable, "max = [0.6, 1.1, 0.25]", "max = [0.6, 1.1, 0.3]", 1)
	if err := os.WriteFile(env.tablePath, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	requireContains(t, out.String(), "Changed: post")
	stats, err := sess.cache.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 0 {
		t.Fatalf("expected the Parts renders to be invalidated, %d remain", stats.Entries)
	}
}
