// Package cmd provides the command-line interface of blockpipe.
//
// Configuration:
//
//	Tool settings come from .blockpipe.yml in the working directory, or the
//	file given with --config. Flags override file values. The build mode is
//	read from BLOCKPIPE_ENV (dev or production); no other environment
//	variable is consulted.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/blockpipe/internal/config"
	"github.com/conneroisu/blockpipe/internal/logging"
	"github.com/conneroisu/blockpipe/internal/pipeline"
	"github.com/conneroisu/blockpipe/internal/tool"
)

// app carries the state shared by the commands of one invocation.
type app struct {
	v      *viper.Viper
	runner tool.Runner
	stdout io.Writer
	stderr io.Writer

	configFile string
	logLevel   string
	logFormat  string

	logger   logging.Logger
	settings *config.Settings
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		v:      config.NewViper(),
		stdout: stdout,
		stderr: stderr,
	}
}

// Execute runs the command line and returns the first error.
func Execute() error {
	return NewRootCmd(os.Stdout, os.Stderr).Execute()
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	return newApp(stdout, stderr).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "blockpipe",
		Short: "Build and serve block-structured static sites",
		Long: `blockpipe builds a static site out of blocks: per-block styles, scripts
and images are gathered in declaration order, compiled by external tools
and written to the build directory.

Quick Start:
  blockpipe build                 Build the site once
  blockpipe serve                 Build, serve and rebuild on change
  blockpipe tasks                 Show tasks, inputs and the build plan

Set BLOCKPIPE_ENV=production for minified output without source maps.`,
		SilenceUsage: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "settings file (default is ./"+config.SettingsFile+")")
	flags.StringVarP(&a.logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "text", "log format (text, json)")
	flags.String("project", "", "project document (default projectConfig.json)")
	if err := bindFlags(a.v, flags, map[string]string{"project": "project"}); err != nil {
		panic(err)
	}

	root.AddCommand(
		a.buildCmd(),
		a.serveCmd(),
		a.cleanCmd(),
		a.optimizeImagesCmd(),
		a.publishCmd(),
		a.tasksCmd(),
		a.versionCmd(),
	)
	return root
}

// bindFlags binds the named flags of fs to viper keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// setup builds the logger and loads the settings.
func (a *app) setup() error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	format := strings.ToLower(a.logFormat)
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported log format %q (supported: text, json)", a.logFormat)
	}
	a.logger = logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: a.stderr,
	})

	if err := config.ReadSettingsFile(a.v, a.configFile); err != nil {
		return err
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug(context.Background(), "Using settings file", "path", used)
	}

	a.settings, err = config.LoadSettings(a.v)
	return err
}

// newPipeline loads the project document and assembles the pipeline.
func (a *app) newPipeline() (*pipeline.Pipeline, error) {
	if err := a.setup(); err != nil {
		return nil, err
	}

	project, err := config.LoadProject(a.settings.ProjectFile)
	if err != nil {
		return nil, err
	}

	runner := a.runner
	if runner == nil {
		runner = tool.NewExecRunner(a.logger)
	}

	a.logger.Debug(context.Background(), "Project loaded",
		"project", a.settings.ProjectFile,
		"blocks", len(project.Blocks),
		"mode", a.settings.Mode)

	return pipeline.New(project, a.settings, runner, a.logger)
}
