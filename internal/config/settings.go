// Package config loads the two configuration inputs of a build: the
// project document describing blocks and directories, and the tool
// settings describing the dev server, watch timing and external commands.
//
// Tool settings are read through a viper instance from .blockpipe.yml and
// command-line flags. The only environment variable consulted is
// BLOCKPIPE_ENV, which selects development or production mode.
package config

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/validation"
)

// EnvVar is the environment variable holding the build mode.
const EnvVar = "BLOCKPIPE_ENV"

// Tool names understood by the build tasks.
const (
	ToolStyle         = "style"
	ToolJSMinify      = "js_minify"
	ToolTemplates     = "templates"
	ToolSpriteSVG     = "sprite_svg"
	ToolSpritePNG     = "sprite_png"
	ToolImageOptimize = "image_optimize"
	ToolPublish       = "publish"
)

// Settings holds everything that is not part of the project document.
type Settings struct {
	ProjectFile string                  `mapstructure:"project"`
	Server      ServerSettings          `mapstructure:"server"`
	Watch       WatchSettings           `mapstructure:"watch"`
	Publish     PublishSettings         `mapstructure:"publish"`
	Tools       map[string]ToolSettings `mapstructure:"tools"`
	Mode        Mode                    `mapstructure:"-"`
}

type ServerSettings struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Open           bool     `mapstructure:"open"`
	StartPath      string   `mapstructure:"start_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WatchSettings struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type PublishSettings struct {
	Branch string `mapstructure:"branch"`
	Remote string `mapstructure:"remote"`
}

// ToolSettings describes one external command. DevArgs and ProdArgs are
// appended to Args depending on the mode.
type ToolSettings struct {
	Command  string   `mapstructure:"command"`
	Args     []string `mapstructure:"args"`
	DevArgs  []string `mapstructure:"dev_args"`
	ProdArgs []string `mapstructure:"prod_args"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("project", "projectConfig.json")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.open", true)
	v.SetDefault("server.start_path", "index.html")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("watch.debounce", "300ms")

	v.SetDefault("publish.branch", "gh-pages")
	v.SetDefault("publish.remote", "origin")

	for name, tool := range DefaultTools() {
		v.SetDefault("tools."+name+".command", tool.Command)
		v.SetDefault("tools."+name+".args", tool.Args)
		v.SetDefault("tools."+name+".dev_args", tool.DevArgs)
		v.SetDefault("tools."+name+".prod_args", tool.ProdArgs)
	}
}

// DefaultTools returns the stock command lines for every tool.
func DefaultTools() map[string]ToolSettings {
	return map[string]ToolSettings{
		ToolStyle: {
			Command:  "sass",
			Args:     []string{"--no-error-css", "{input}", "{output}"},
			DevArgs:  []string{"--embed-source-map"},
			ProdArgs: []string{"--style=compressed", "--no-source-map"},
		},
		ToolJSMinify: {
			Command: "terser",
			Args:    []string{"{input}", "--compress", "--mangle", "--output", "{output}"},
		},
		ToolTemplates: {
			Command: "pug",
			Args:    []string{"--out", "{output}", "{input}"},
			DevArgs: []string{"--pretty"},
		},
		ToolSpriteSVG: {
			Command: "svg-sprite",
			Args:    []string{"--symbol", "--symbol-dest", "{output}", "--symbol-sprite", "sprite-svg.svg", "{input}/*.svg"},
		},
		ToolSpritePNG: {
			Command: "spritesmith",
			Args:    []string{"--padding", "4", "--image", "{output}", "--css", "{css}", "{input}/*.png"},
		},
		ToolImageOptimize: {
			Command: "imagemin",
			Args:    []string{"{input}/*.{jpg,jpeg,gif,png,svg}", "--out-dir={input}"},
		},
		ToolPublish: {
			Command: "gh-pages",
			Args:    []string{"--dist", "{dir}", "--branch", "{branch}", "--remote", "{remote}"},
		},
	}
}

// NewViper returns a viper instance with defaults registered and the mode
// variable bound. No other environment variables are read.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	_ = v.BindEnv("env", EnvVar)
	return v
}

// SettingsFile is the default settings file name, searched for in the
// working directory.
const SettingsFile = ".blockpipe.yml"

// ReadSettingsFile reads path into v. With an empty path the default file
// is used when present and silently skipped when it is not.
func ReadSettingsFile(v *viper.Viper, path string) error {
	if path == "" {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(SettingsFile, ".yml"))
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if stderrors.As(err, &notFound) {
				return nil
			}
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("reading %s: %v", SettingsFile, err))
		}
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigMissing, fmt.Sprintf("reading %s: %v", path, err))
	}
	return nil
}

// LoadSettings unmarshals and validates the settings held by v.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("decoding settings: %v", err))
	}

	mode, err := ParseMode(v.GetString("env"))
	if err != nil {
		return nil, err
	}
	s.Mode = mode

	// Tools that were only partially overridden keep the stock command.
	defaults := DefaultTools()
	if s.Tools == nil {
		s.Tools = make(map[string]ToolSettings, len(defaults))
	}
	for name, def := range defaults {
		tool, ok := s.Tools[name]
		if !ok {
			s.Tools[name] = def
			continue
		}
		if tool.Command == "" {
			tool.Command = def.Command
		}
		s.Tools[name] = tool
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks the settings for values that cannot work.
func (s *Settings) Validate() error {
	if s.ProjectFile == "" {
		return errors.NewConfigError(errors.ErrCodeConfigMissing, "project file path is required")
	}
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("server.port %d out of range 1-65535", s.Server.Port))
	}
	if strings.ContainsAny(s.Server.Host, " \t/") {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("server.host %q is not a hostname", s.Server.Host))
	}
	if s.Watch.Debounce < 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "watch.debounce must not be negative")
	}

	for name, tool := range s.Tools {
		if err := validation.ValidateCommand(tool.Command); err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("tools.%s: %v", name, err))
		}
		for _, group := range [][]string{tool.Args, tool.DevArgs, tool.ProdArgs} {
			for _, arg := range group {
				if err := validation.ValidateArgument(arg); err != nil {
					return errors.NewConfigError(errors.ErrCodeConfigInvalid,
						fmt.Sprintf("tools.%s: argument %q: %v", name, arg, err))
				}
			}
		}
	}

	return nil
}

// Tool returns the settings of the named tool.
func (s *Settings) Tool(name string) (ToolSettings, bool) {
	t, ok := s.Tools[name]
	return t, ok
}

// ArgsFor returns the argument template for the current mode.
func (t ToolSettings) ArgsFor(mode Mode) []string {
	args := make([]string, 0, len(t.Args)+len(t.DevArgs)+len(t.ProdArgs))
	args = append(args, t.Args...)
	if mode.IsProduction() {
		args = append(args, t.ProdArgs...)
	} else {
		args = append(args, t.DevArgs...)
	}
	return args
}
