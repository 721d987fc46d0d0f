package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/blockpipe/internal/validation"
)

// clean removes everything inside the build directory but keeps the
// directory itself so a running dev server keeps serving it.
func (e *Env) clean(ctx context.Context) error {
	dir := e.Project.BuildDir()
	if err := validation.ValidateOutputDir(dir, e.Project.SourceDir()); err != nil {
		return fmt.Errorf("refusing to clean: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("removing %s: %w", entry.Name(), err)
		}
	}

	e.Logger.Debug(ctx, "Cleaned build directory", "dir", dir, "entries", len(entries))
	return nil
}
