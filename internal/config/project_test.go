package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/blockpipe/internal/errors"
)

const sampleJSON = `{
  "blocks": {
    "page": [],
    "header": ["__logo", "__nav"],
    "sprite-svg": [],
    "footer": null
  },
  "dirs": {"source": "./src/", "build": "./build/", "blocksName": "blocks"},
  "addCssBefore": ["./src/scss/variables.scss"],
  "addCssAfter": ["./src/scss/print.scss"],
  "addJsBefore": [],
  "addJsAfter": ["./src/js/script.js"],
  "addImg": ["./src/img/*.{jpg,png}"],
  "copiedCss": ["./node_modules/normalize.css/normalize.css"],
  "copiedJs": []
}`

func TestParseProjectPreservesBlockOrder(t *testing.T) {
	p, err := ParseProject(strings.NewReader(sampleJSON))
	require.NoError(t, err)

	names := make([]string, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"page", "header", "sprite-svg", "footer"}, names)
	assert.Equal(t, []string{"__logo", "__nav"}, p.Blocks[1].Elements)
	assert.Empty(t, p.Blocks[0].Elements)
	assert.Empty(t, p.Blocks[3].Elements)

	assert.Equal(t, "src", p.SourceDir())
	assert.Equal(t, "build", p.BuildDir())
	assert.Equal(t, filepath.Join("src", "blocks", "header"), p.BlockDir("header"))
	assert.True(t, p.HasSpriteSVG())
	assert.False(t, p.HasSpritePNG())
	assert.Equal(t, []string{"./src/js/script.js"}, p.AddJSAfter)
}

func TestParseProjectYAML(t *testing.T) {
	doc := `
blocks:
  zeta: []
  alpha:
    - _mod
dirs:
  source: src
  build: dist
  blocksName: blocks
`
	p, err := ParseProject(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, p.Blocks, 2)
	assert.Equal(t, "zeta", p.Blocks[0].Name)
	assert.Equal(t, "alpha", p.Blocks[1].Name)
	assert.Equal(t, []string{"_mod"}, p.Blocks[1].Elements)
}

func TestParseProjectErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{
			name: "empty document",
			doc:  "",
			code: errors.ErrCodeConfigMissing,
		},
		{
			name: "missing dirs",
			doc:  `{"blocks": {}}`,
			code: errors.ErrCodeConfigMissing,
		},
		{
			name: "missing build dir",
			doc:  `{"dirs": {"source": "src", "blocksName": "blocks"}}`,
			code: errors.ErrCodeConfigMissing,
		},
		{
			name: "unknown layout field",
			doc:  `{"dirs": {"source": "src", "build": "b", "blocksName": "blocks", "buildPath": "x"}}`,
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "unknown top level field",
			doc:  `{"dirs": {"source": "src", "build": "b", "blocksName": "blocks"}, "wowJS": []}`,
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "build dir is working dir",
			doc:  `{"dirs": {"source": "src", "build": "./", "blocksName": "blocks"}}`,
			code: errors.ErrCodeUnsafeOutputDir,
		},
		{
			name: "duplicate block",
			doc:  "blocks:\n  a: []\n  a: []\ndirs: {source: src, build: b, blocksName: blocks}\n",
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "blocks not a mapping",
			doc:  `{"blocks": ["a"], "dirs": {"source": "src", "build": "b", "blocksName": "blocks"}}`,
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "element with separator",
			doc:  `{"blocks": {"a": ["../x"]}, "dirs": {"source": "src", "build": "b", "blocksName": "blocks"}}`,
			code: errors.ErrCodeConfigInvalid,
		},
		{
			name: "element list is a string",
			doc:  `{"blocks": {"a": "x"}, "dirs": {"source": "src", "build": "b", "blocksName": "blocks"}}`,
			code: errors.ErrCodeConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProject(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, errors.IsConfigError(err), "expected config error, got %v", err)

			pe, ok := errors.AsPipelineError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, pe.Code)
		})
	}
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projectConfig.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	p, err := LoadProject(path)
	require.NoError(t, err)
	assert.Len(t, p.Blocks, 4)

	_, err = LoadProject(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	pe, ok := errors.AsPipelineError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeConfigMissing, pe.Code)
	assert.Contains(t, err.Error(), "missing.json")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"dirs": {}}`), 0o644))
	_, err = LoadProject(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}
