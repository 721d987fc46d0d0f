package tasks

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// writeIfChanged writes data to path unless the file already holds exactly
// data. It reports whether the file was written.
func writeIfChanged(path string, data []byte) (bool, error) {
	current, err := os.ReadFile(path)
	if err == nil && bytes.Equal(current, data) {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

// copyIfNewer copies src into dstDir keeping its base name and mtime. The
// copy is skipped when the destination is at least as new as src.
func copyIfNewer(src, dstDir string) (string, bool, error) {
	dst := filepath.Join(dstDir, filepath.Base(src))

	srcInfo, err := os.Stat(src)
	if err != nil {
		return dst, false, err
	}
	if dstInfo, err := os.Stat(dst); err == nil && !dstInfo.ModTime().Before(srcInfo.ModTime()) {
		return dst, false, nil
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return dst, false, fmt.Errorf("creating %s: %w", dstDir, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return dst, false, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return dst, false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return dst, false, fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return dst, false, err
	}

	if err := os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		return dst, true, err
	}
	return dst, true, nil
}

// globAll expands patterns into a sorted, de-duplicated file list. Plain
// paths are kept when they exist. Directories are dropped.
func globAll(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			if info, err := os.Stat(m); err != nil || info.IsDir() {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// existing keeps the files of list that exist, in order.
func existing(list []string) []string {
	out := make([]string, 0, len(list))
	for _, f := range list {
		if info, err := os.Stat(f); err == nil && !info.IsDir() {
			out = append(out, f)
		}
	}
	return out
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
