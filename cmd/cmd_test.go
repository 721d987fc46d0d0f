package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/blockpipe/internal/config"
	"github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/tasks"
	"github.com/conneroisu/blockpipe/internal/tool/tooltest"
	"github.com/conneroisu/blockpipe/internal/version"
)

const projectDoc = `{
  "blocks": {"page": []},
  "dirs": {"source": "src", "build": "build", "blocksName": "blocks"},
  "addJsAfter": ["src/js/script.js"]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newProject creates a small site in a temp dir and makes it the working
// directory.
func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvVar, "")

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "projectConfig.json"), projectDoc)
	writeFile(t, filepath.Join(dir, "src", "blocks", "page", "page.scss"), ".page{}")
	writeFile(t, filepath.Join(dir, "src", "blocks", "page", "page.js"), "var page;")
	writeFile(t, filepath.Join(dir, "src", "js", "script.js"), "init();")
	writeFile(t, filepath.Join(dir, "src", "index.pug"), "html")
	t.Chdir(dir)
	return dir
}

type harness struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	runner *tooltest.Recorder
}

func (h *harness) execute(args ...string) error {
	a := newApp(&h.stdout, &h.stderr)
	a.runner = h.runner
	root := a.rootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func newHarness() *harness {
	return &harness{runner: tooltest.NewRecorder()}
}

func TestVersionCommand(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.execute("version"))
	assert.Contains(t, h.stdout.String(), "blockpipe ")

	h = newHarness()
	require.NoError(t, h.execute("version", "--format", "json"))
	var info version.Info
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &info))
	assert.NotEmpty(t, info.GoVersion)

	h = newHarness()
	assert.Error(t, h.execute("version", "--format", "xml"))
}

func TestBuildCommand(t *testing.T) {
	dir := newProject(t)
	h := newHarness()

	require.NoError(t, h.execute("build"))

	bundle, err := os.ReadFile(filepath.Join(dir, "build", tasks.JSDir, tasks.ScriptBundle))
	require.NoError(t, err)
	assert.Equal(t, "var page;\ninit();\n", string(bundle))
	assert.Len(t, h.runner.CallsTo("sass"), 1)
	assert.Len(t, h.runner.CallsTo("pug"), 1)
}

func TestBuildCommand_NamedTasks(t *testing.T) {
	newProject(t)
	h := newHarness()

	require.NoError(t, h.execute("build", "style"))
	assert.Len(t, h.runner.CallsTo("sass"), 1)
	assert.Empty(t, h.runner.CallsTo("pug"))

	h = newHarness()
	err := h.execute("build", "nope")
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestBuildCommand_ProductionMinifies(t *testing.T) {
	newProject(t)
	t.Setenv(config.EnvVar, "production")
	h := newHarness()

	require.NoError(t, h.execute("build", "js"))
	require.Len(t, h.runner.CallsTo("terser"), 1)
}

func TestBuildCommand_BadMode(t *testing.T) {
	newProject(t)
	t.Setenv(config.EnvVar, "staging")

	err := newHarness().execute("build")
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestCleanCommand(t *testing.T) {
	dir := newProject(t)
	stale := filepath.Join(dir, "build", "old.html")
	writeFile(t, stale, "stale")

	require.NoError(t, newHarness().execute("clean"))
	assert.NoFileExists(t, stale)
	assert.DirExists(t, filepath.Join(dir, "build"))
}

func TestPublishCommand(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "build", "index.html"), "<html></html>")
	h := newHarness()

	require.NoError(t, h.execute("publish", "--branch", "pages"))

	calls := h.runner.CallsTo("gh-pages")
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Args, "pages")
	assert.Contains(t, calls[0].Args, "origin")
}

func TestOptimizeImagesCommand(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "photos", "a.jpg"), "JPG")
	h := newHarness()

	require.NoError(t, h.execute("optimize-images", "photos"))
	assert.Len(t, h.runner.CallsTo("imagemin"), 1)

	assert.Error(t, newHarness().execute("optimize-images", "a", "b"))
}

func TestOptimizeImagesCommand_NoDirIsSkipped(t *testing.T) {
	newProject(t)
	h := newHarness()

	require.NoError(t, h.execute("--log-level", "debug", "optimize-images"))
	assert.Empty(t, h.runner.Calls())
	assert.Contains(t, h.stderr.String(), "Task skipped")
	assert.Contains(t, h.stderr.String(), "no directory given")
	assert.Contains(t, h.stderr.String(), "skipped=1")
}

func TestTasksCommand(t *testing.T) {
	newProject(t)
	h := newHarness()

	require.NoError(t, h.execute("tasks", "--format", "json"))

	var out tasksOutput
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &out))
	assert.Len(t, out.Tasks, 12)
	assert.Equal(t, tasks.Clean, out.Tasks[0].Name)
	assert.Contains(t, out.Plan, "[clean] -> [sprite:svg, sprite:png]")
	assert.Equal(t, []string{
		filepath.Join("src", "blocks", "page", "page.js"),
		"src/js/script.js",
	}, out.Scripts)

	h = newHarness()
	require.NoError(t, h.execute("tasks"))
	assert.Contains(t, h.stdout.String(), "DEPENDS ON")
	assert.Contains(t, h.stdout.String(), "Build plan: [clean]")
	assert.Empty(t, h.runner.Calls())
}

func TestSettingsFileAndFlags(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "site.json"), projectDoc)
	writeFile(t, filepath.Join(dir, "custom.yml"), "project: site.json\ntools:\n  style:\n    command: dart-sass\n")
	h := newHarness()

	require.NoError(t, h.execute("--config", "custom.yml", "build", "style"))
	assert.Len(t, h.runner.CallsTo("dart-sass"), 1)
	assert.Empty(t, h.runner.CallsTo("sass"))
}

func TestSetupErrors(t *testing.T) {
	newProject(t)

	tests := []struct {
		name string
		args []string
	}{
		{"bad log level", []string{"--log-level", "loud", "build"}},
		{"bad log format", []string{"--log-format", "xml", "build"}},
		{"missing settings file", []string{"--config", "missing.yml", "build"}},
		{"missing project", []string{"--project", "missing.json", "build"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			assert.Error(t, h.execute(tt.args...))
			assert.Empty(t, h.runner.Calls())
		})
	}
}
