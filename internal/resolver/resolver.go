// Package resolver expands a project description into the ordered input
// lists consumed by the build tasks.
package resolver

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/blockpipe/internal/config"
)

// ImageExtensions is the brace set used for block image globs.
const ImageExtensions = "{jpg,jpeg,gif,png,svg}"

// FileLists holds the resolved inputs. Styles are order-significant.
type FileLists struct {
	Styles  []string
	Scripts []string
	Images  []string
}

// Resolve computes the file lists for p. It does not touch the filesystem.
func Resolve(p *config.Project) FileLists {
	styles := concat(p.AddCSSBefore, blockFiles(p, "scss"), p.AddCSSAfter)
	scripts := concat(p.AddJSBefore, blockFiles(p, "js"), p.AddJSAfter)
	images := concat(ImageGlobs(p), p.AddImg)

	return FileLists{
		Styles:  Exclude(styles, p.ExcludeCSS),
		Scripts: Exclude(scripts, p.ExcludeJS),
		Images:  Exclude(images, p.ExcludeImg),
	}
}

// blockFiles emits the block file followed by one file per element.
func blockFiles(p *config.Project, ext string) []string {
	var out []string
	for _, b := range p.Blocks {
		dir := p.BlockDir(b.Name)
		out = append(out, filepath.Join(dir, b.Name+"."+ext))
		for _, el := range b.Elements {
			out = append(out, filepath.Join(dir, b.Name+el+"."+ext))
		}
	}
	return out
}

// ImageGlobs returns one image glob per block.
func ImageGlobs(p *config.Project) []string {
	out := make([]string, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		out = append(out, filepath.Join(p.BlockDir(b.Name), "img", "*."+ImageExtensions))
	}
	return out
}

// Exclude drops every entry matching one of patterns and keeps the order
// of the rest. Entries and patterns are compared in cleaned slash form, so
// "./src/a.scss" and "src/a.scss" are the same file.
func Exclude(files, patterns []string) []string {
	if len(patterns) == 0 {
		return files
	}

	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		cleaned = append(cleaned, Normalize(p))
	}

	out := make([]string, 0, len(files))
	for _, f := range files {
		if !Matches(cleaned, Normalize(f)) {
			out = append(out, f)
		}
	}
	return out
}

// Matches reports whether name matches any of patterns. Both sides must
// already be normalized. Invalid patterns never match.
func Matches(patterns []string, name string) bool {
	for _, pat := range patterns {
		if pat == name {
			return true
		}
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Normalize converts p to a cleaned, slash separated path.
func Normalize(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

func concat(lists ...[]string) []string {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]string, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
