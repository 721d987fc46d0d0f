package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// outputEntry is one file of the build directory.
type outputEntry struct {
	Path string
	Size int64
}

// listOutput walks fsys and returns every file, sorted by path.
func listOutput(fsys fs.FS) ([]outputEntry, error) {
	var entries []outputEntry
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, outputEntry{Path: p, Size: info.Size()})
		return nil
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, err
}

func escapeURLPath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return "/" + path.Join(parts...)
}

// outputIndex renders the listing shown when the build has no index page.
func outputIndex(title string, entries []outputEntry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
		b.WriteString(templ.EscapeString(title))
		b.WriteString("</title></head><body><h1>")
		b.WriteString(templ.EscapeString(title))
		b.WriteString("</h1>")

		if len(entries) == 0 {
			b.WriteString("<p>The build directory is empty.</p>")
		} else {
			b.WriteString("<ul>")
			for _, e := range entries {
				fmt.Fprintf(&b, `<li><a href="%s">%s</a> <small>%d B</small></li>`,
					templ.EscapeString(escapeURLPath(e.Path)), templ.EscapeString(e.Path), e.Size)
			}
			b.WriteString("</ul>")
		}
		b.WriteString("</body></html>")

		_, err := io.WriteString(w, b.String())
		return err
	})
}
