// Package tasks implements the build tasks of a block-structured site:
// sprites, styles, scripts, asset copies, templates and publishing. Each
// task writes a disjoint part of the build directory, so tasks of the same
// stage can run concurrently.
package tasks

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/blockpipe/internal/config"
	"github.com/conneroisu/blockpipe/internal/logging"
	"github.com/conneroisu/blockpipe/internal/resolver"
	"github.com/conneroisu/blockpipe/internal/task"
	"github.com/conneroisu/blockpipe/internal/tool"
)

// Task names.
const (
	Clean     = "clean"
	SpriteSVG = "sprite:svg"
	SpritePNG = "sprite:png"
	Style     = "style"
	JS        = "js"
	CopyCSS   = "copy:css"
	CopyJS    = "copy:js"
	CopyImg   = "copy:img"
	CopyFonts = "copy:fonts"
	Templates = "templates"
	ImgOpt    = "img:opt"
	Publish   = "publish"
)

// Output locations inside the build directory.
const (
	CSSDir       = "css"
	JSDir        = "js"
	ImgDir       = "img"
	FontsDir     = "fonts"
	StyleBundle  = "style.min.css"
	ScriptBundle = "script.min.js"
)

// FontPattern selects the font files copied by copy:fonts.
const FontPattern = "*.{ttf,woff,woff2,eot,svg}"

// Env is everything the tasks need. It is built once and shared read-only.
type Env struct {
	Project  *config.Project
	Settings *config.Settings
	Lists    resolver.FileLists
	Runner   tool.Runner
	Logger   logging.Logger
	Sizes    *SizeReporter

	// ImageDir is the operator supplied directory for img:opt.
	ImageDir string
}

// NewEnv resolves the file lists of project and wires the defaults.
func NewEnv(project *config.Project, settings *config.Settings, runner tool.Runner, logger logging.Logger) *Env {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Env{
		Project:  project,
		Settings: settings,
		Lists:    resolver.Resolve(project),
		Runner:   runner,
		Logger:   logger.WithComponent("tasks"),
		Sizes:    NewSizeReporter(logger, settings.Mode.SizeReports()),
	}
}

// Register adds every build task to reg.
func Register(reg *task.Registry, env *Env) error {
	table := []task.Task{
		{Name: Clean, Description: "remove the contents of the build directory", Action: env.clean},
		{Name: SpriteSVG, Description: "build the SVG symbol sprite", Action: env.spriteSVG},
		{Name: SpritePNG, Description: "build the PNG sprite and its scss", Action: env.spritePNG},
		{Name: Style, Description: "compile styles into " + CSSDir + "/" + StyleBundle, Deps: []string{SpritePNG}, Action: env.style},
		{Name: JS, Description: "concatenate scripts into " + JSDir + "/" + ScriptBundle, Action: env.js},
		{Name: CopyCSS, Description: "copy copiedCss files", Action: env.copyCSS},
		{Name: CopyJS, Description: "copy copiedJs files", Action: env.copyJS},
		{Name: CopyImg, Description: "copy block and extra images", Deps: []string{SpriteSVG, SpritePNG}, Action: env.copyImg},
		{Name: CopyFonts, Description: "copy fonts", Action: env.copyFonts},
		{Name: Templates, Description: "render top-level templates", Deps: []string{Style, JS}, Action: env.templates},
		{Name: ImgOpt, Description: "optimize images in a directory", Action: env.imgOpt},
		{Name: Publish, Description: "publish the build directory", Action: env.publish},
	}

	for _, t := range table {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) buildPath(parts ...string) string {
	return filepath.Join(append([]string{e.Project.BuildDir()}, parts...)...)
}

func (e *Env) sourcePath(parts ...string) string {
	return filepath.Join(append([]string{e.Project.SourceDir()}, parts...)...)
}

// runTool runs a configured tool with vars for the current mode.
func (e *Env) runTool(ctx context.Context, name string, vars tool.Vars) error {
	ts, ok := e.Settings.Tool(name)
	if !ok {
		ts = config.DefaultTools()[name]
	}
	spec, err := tool.FromSettings(name, ts, e.Settings.Mode, vars)
	if err != nil {
		return err
	}
	out, err := e.Runner.Run(ctx, spec)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		e.Logger.Debug(ctx, "Tool output", "tool", name, "output", string(out))
	}
	return nil
}
