package tasks

import (
	"context"
	"path/filepath"

	perrors "github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/task"
)

// copyInto copies the files matching patterns into the build sub-directory
// dir. Unchanged files are left alone.
func (e *Env) copyInto(ctx context.Context, name, dir string, patterns []string) error {
	files, err := globAll(patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return task.Skipf("no files match %d pattern(s)", len(patterns))
	}

	dst := e.buildPath(dir)
	var copied []string
	for _, f := range files {
		out, changed, err := copyIfNewer(f, dst)
		if err != nil {
			return err
		}
		if changed {
			copied = append(copied, out)
		}
	}

	e.Logger.Debug(ctx, "Copied files", "task", name, "copied", len(copied), "unchanged", len(files)-len(copied))
	e.Sizes.Report(ctx, name, copied...)
	return nil
}

func (e *Env) copyCSS(ctx context.Context) error {
	if len(e.Project.CopiedCSS) == 0 {
		return task.Skip("copiedCss is empty")
	}
	return e.copyInto(ctx, CopyCSS, CSSDir, e.Project.CopiedCSS)
}

func (e *Env) copyJS(ctx context.Context) error {
	if len(e.Project.CopiedJS) == 0 {
		return task.Skip("copiedJs is empty")
	}
	return e.copyInto(ctx, CopyJS, JSDir, e.Project.CopiedJS)
}

func (e *Env) copyImg(ctx context.Context) error {
	if len(e.Lists.Images) == 0 {
		return task.Skip("no image sources")
	}
	return e.copyInto(ctx, CopyImg, ImgDir, e.Lists.Images)
}

// FontsSourceDir is the directory fonts are copied from.
func (e *Env) FontsSourceDir() string {
	return e.sourcePath(FontsDir)
}

func (e *Env) copyFonts(ctx context.Context) error {
	src := e.FontsSourceDir()
	if !dirExists(src) {
		return perrors.NewNotFoundError(src, "no fonts directory")
	}
	return e.copyInto(ctx, CopyFonts, FontsDir, []string{filepath.Join(src, FontPattern)})
}
