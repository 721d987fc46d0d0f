package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/blockpipe/internal/errors"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv(EnvVar, "")

	s, err := LoadSettings(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "projectConfig.json", s.ProjectFile)
	assert.Equal(t, "localhost", s.Server.Host)
	assert.Equal(t, 8080, s.Server.Port)
	assert.True(t, s.Server.Open)
	assert.Equal(t, 300*time.Millisecond, s.Watch.Debounce)
	assert.Equal(t, "gh-pages", s.Publish.Branch)
	assert.Equal(t, ModeDevelopment, s.Mode)

	style, ok := s.Tool(ToolStyle)
	require.True(t, ok)
	assert.Equal(t, "sass", style.Command)
	assert.Contains(t, style.ArgsFor(ModeDevelopment), "--embed-source-map")
	assert.Contains(t, style.ArgsFor(ModeProduction), "--style=compressed")
	assert.NotContains(t, style.ArgsFor(ModeProduction), "--embed-source-map")
}

func TestLoadSettingsFromFile(t *testing.T) {
	t.Setenv(EnvVar, "production")

	dir := t.TempDir()
	path := filepath.Join(dir, ".blockpipe.yml")
	content := `
project: site.yml
server:
  port: 3000
  open: false
watch:
  debounce: 1s
tools:
  style:
    command: dart-sass
  templates:
    args: ["-o", "{output}", "{input}"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := NewViper()
	require.NoError(t, ReadSettingsFile(v, path))

	s, err := LoadSettings(v)
	require.NoError(t, err)

	assert.Equal(t, "site.yml", s.ProjectFile)
	assert.Equal(t, 3000, s.Server.Port)
	assert.False(t, s.Server.Open)
	assert.Equal(t, time.Second, s.Watch.Debounce)
	assert.Equal(t, ModeProduction, s.Mode)

	assert.Equal(t, "dart-sass", s.Tools[ToolStyle].Command)
	assert.Equal(t, "pug", s.Tools[ToolTemplates].Command)
	assert.Equal(t, []string{"-o", "{output}", "{input}"}, s.Tools[ToolTemplates].Args)
	assert.Equal(t, "terser", s.Tools[ToolJSMinify].Command)
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  interface{}
	}{
		{name: "port", key: "server.port", val: 70000},
		{name: "host", key: "server.host", val: "local host"},
		{name: "command with args", key: "tools.style.command", val: "sass --watch"},
		{name: "shell in args", key: "tools.publish.args", val: []string{"--dist", "{dir};rm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvVar, "")
			v := NewViper()
			v.Set(tt.key, tt.val)

			s, err := LoadSettings(v)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.IsConfigError(err))
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeDevelopment},
		{in: "dev", want: ModeDevelopment},
		{in: "Development", want: ModeDevelopment},
		{in: "production", want: ModeProduction},
		{in: "prod", want: ModeProduction},
		{in: "staging", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.True(t, errors.IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeToggles(t *testing.T) {
	assert.True(t, ModeDevelopment.SizeReports())
	assert.False(t, ModeProduction.SizeReports())
	assert.True(t, ModeProduction.IsProduction())
}

func TestBadModeFailsSettings(t *testing.T) {
	t.Setenv(EnvVar, "qa")
	_, err := LoadSettings(NewViper())
	assert.True(t, errors.IsConfigError(err))
}

func TestReadSettingsFile(t *testing.T) {
	t.Setenv(EnvVar, "")

	t.Run("explicit file must exist", func(t *testing.T) {
		err := ReadSettingsFile(NewViper(), filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
		assert.True(t, errors.IsConfigError(err))
	})

	t.Run("default file is optional", func(t *testing.T) {
		t.Chdir(t.TempDir())
		v := NewViper()
		require.NoError(t, ReadSettingsFile(v, ""))

		s, err := LoadSettings(v)
		require.NoError(t, err)
		assert.Equal(t, 8080, s.Server.Port)
	})

	t.Run("default file is read", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, SettingsFile), []byte("server:\n  port: 4000\n"), 0o644))
		t.Chdir(dir)

		v := NewViper()
		require.NoError(t, ReadSettingsFile(v, ""))

		s, err := LoadSettings(v)
		require.NoError(t, err)
		assert.Equal(t, 4000, s.Server.Port)
	})
}
