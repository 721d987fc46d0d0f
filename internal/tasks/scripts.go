package tasks

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/conneroisu/blockpipe/internal/config"
	"github.com/conneroisu/blockpipe/internal/task"
	"github.com/conneroisu/blockpipe/internal/tool"
)

// Concat joins script files in order. Each file is terminated by a newline
// so a missing trailing semicolon cannot merge two statements.
func Concat(files []string) ([]byte, error) {
	var buf bytes.Buffer
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

func (e *Env) js(ctx context.Context) error {
	if len(e.Lists.Scripts) == 0 {
		return task.Skip("no scripts configured")
	}
	files := existing(e.Lists.Scripts)
	if len(files) == 0 {
		return task.Skip("none of the configured scripts exist")
	}

	bundle, err := Concat(files)
	if err != nil {
		return err
	}

	out := e.buildPath(JSDir, ScriptBundle)

	if !e.Settings.Mode.IsProduction() {
		if _, err := writeIfChanged(out, bundle); err != nil {
			return err
		}
		e.Sizes.Report(ctx, JS, out)
		return nil
	}

	// The minifier reads the concatenation from a scratch file.
	tmp, err := os.CreateTemp("", "blockpipe-*.js")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(bundle); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return e.runTool(ctx, config.ToolJSMinify, tool.Vars{
		tool.VarInput:  tmp.Name(),
		tool.VarOutput: out,
	})
}
