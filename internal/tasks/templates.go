package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/blockpipe/internal/config"
	perrors "github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/task"
	"github.com/conneroisu/blockpipe/internal/tool"
)

// TemplatePattern selects the pages rendered by the templates task.
// Partials live in sub-directories and are not rendered on their own.
const TemplatePattern = "*.pug"

// ImagePattern selects the files handled by img:opt.
const ImagePattern = "*.{jpg,jpeg,gif,png,svg}"

func (e *Env) templates(ctx context.Context) error {
	pages, err := globAll([]string{e.sourcePath(TemplatePattern)})
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return perrors.NewNotFoundError(e.sourcePath(TemplatePattern), "no pages")
	}

	out := e.Project.BuildDir()
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	if err := e.runTool(ctx, config.ToolTemplates, tool.Vars{
		tool.VarInput:  e.sourcePath(TemplatePattern),
		tool.VarOutput: out,
	}); err != nil {
		return err
	}

	rendered := make([]string, 0, len(pages))
	for _, p := range pages {
		base := filepath.Base(p)
		rendered = append(rendered, filepath.Join(out, base[:len(base)-len(filepath.Ext(base))]+".html"))
	}
	e.Sizes.Report(ctx, Templates, existing(rendered)...)
	return nil
}

func (e *Env) imgOpt(ctx context.Context) error {
	if e.ImageDir == "" {
		return task.Skip("no directory given")
	}
	if !dirExists(e.ImageDir) {
		return fmt.Errorf("image directory %s does not exist", e.ImageDir)
	}

	before, err := globAll([]string{filepath.Join(e.ImageDir, ImagePattern)})
	if err != nil {
		return err
	}
	if len(before) == 0 {
		return task.Skipf("no images in %s", e.ImageDir)
	}

	if err := e.runTool(ctx, config.ToolImageOptimize, tool.Vars{tool.VarInput: e.ImageDir}); err != nil {
		return err
	}

	e.Sizes.Report(ctx, ImgOpt, before...)
	return nil
}

func (e *Env) publish(ctx context.Context) error {
	dir := e.Project.BuildDir()
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return fmt.Errorf("nothing to publish in %s, run build first", dir)
	}

	return e.runTool(ctx, config.ToolPublish, tool.Vars{
		tool.VarDir:    dir,
		tool.VarBranch: e.Settings.Publish.Branch,
		tool.VarRemote: e.Settings.Publish.Remote,
	})
}
