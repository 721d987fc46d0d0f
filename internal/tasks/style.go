package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/blockpipe/internal/config"
	"github.com/conneroisu/blockpipe/internal/task"
	"github.com/conneroisu/blockpipe/internal/tool"
)

// StyleEntryPath is the generated import manifest fed to the style tool.
func StyleEntryPath(p *config.Project) string {
	return filepath.Join(p.SourceDir(), "scss", "style.scss")
}

// StyleManifest renders one @import per style file, relative to the
// manifest directory.
func StyleManifest(manifestDir string, styles []string) string {
	var b strings.Builder
	for _, f := range styles {
		ref := f
		if rel, err := filepath.Rel(manifestDir, f); err == nil {
			ref = rel
		}
		fmt.Fprintf(&b, "@import '%s';\n", filepath.ToSlash(ref))
	}
	return b.String()
}

func (e *Env) style(ctx context.Context) error {
	files := existing(e.Lists.Styles)
	if missing := len(e.Lists.Styles) - len(files); missing > 0 {
		e.Logger.Debug(ctx, "Style files not present", "missing", missing)
	}
	if len(files) == 0 {
		return task.Skip("no style sources")
	}

	entry := StyleEntryPath(e.Project)
	written, err := writeIfChanged(entry, []byte(StyleManifest(filepath.Dir(entry), files)))
	if err != nil {
		return err
	}
	if written {
		e.Logger.Debug(ctx, "Style manifest updated", "path", entry, "imports", len(files))
	}

	out := e.buildPath(CSSDir, StyleBundle)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}

	if err := e.runTool(ctx, config.ToolStyle, tool.Vars{
		tool.VarInput:  entry,
		tool.VarOutput: out,
	}); err != nil {
		return err
	}

	e.Sizes.Report(ctx, Style, out)
	return nil
}
