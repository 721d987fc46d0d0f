package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/validation"
)

// Block names with special meaning to the build.
const (
	SpriteSVGBlock = "sprite-svg"
	SpritePNGBlock = "sprite-png"
)

// Block is one content block and its element suffixes, in declared order.
type Block struct {
	Name     string
	Elements []string
}

// Dirs is the directory layout of a project.
type Dirs struct {
	Source     string `yaml:"source"`
	Build      string `yaml:"build"`
	BlocksName string `yaml:"blocksName"`
}

// Project is the declarative project description. It is loaded once and
// must be treated as read-only afterwards.
type Project struct {
	Blocks []Block
	Dirs   Dirs

	AddCSSBefore []string
	AddCSSAfter  []string
	AddJSBefore  []string
	AddJSAfter   []string
	AddImg       []string

	ExcludeCSS []string
	ExcludeJS  []string
	ExcludeImg []string

	CopiedCSS []string
	CopiedJS  []string
}

// rawProject mirrors the document. Blocks stay a node so declaration order
// survives decoding.
type rawProject struct {
	Blocks yaml.Node `yaml:"blocks"`
	Dirs   *Dirs     `yaml:"dirs"`

	AddCSSBefore []string `yaml:"addCssBefore"`
	AddCSSAfter  []string `yaml:"addCssAfter"`
	AddJSBefore  []string `yaml:"addJsBefore"`
	AddJSAfter   []string `yaml:"addJsAfter"`
	AddImg       []string `yaml:"addImg"`

	ExcludeCSS []string `yaml:"excludeCss"`
	ExcludeJS  []string `yaml:"excludeJs"`
	ExcludeImg []string `yaml:"excludeImg"`

	CopiedCSS []string `yaml:"copiedCss"`
	CopiedJS  []string `yaml:"copiedJs"`
}

// LoadProject reads and validates the project document at path.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewConfigError(errors.ErrCodeConfigMissing, "project file not found").WithPath(path)
		}
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error()).WithPath(path)
	}

	project, err := ParseProject(bytes.NewReader(data))
	if err != nil {
		if pe, ok := errors.AsPipelineError(err); ok && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}

	return project, nil
}

// ParseProject decodes a YAML or JSON project document. Unknown fields,
// duplicate blocks and missing directory fields are configuration errors.
func ParseProject(r io.Reader) (*Project, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw rawProject
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, errors.NewConfigError(errors.ErrCodeConfigMissing, "project document is empty")
		}
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("decoding project: %v", err))
	}

	if raw.Dirs == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigMissing, "dirs is required")
	}

	blocks, err := decodeBlocks(&raw.Blocks)
	if err != nil {
		return nil, err
	}

	p := &Project{
		Blocks:       blocks,
		Dirs:         *raw.Dirs,
		AddCSSBefore: raw.AddCSSBefore,
		AddCSSAfter:  raw.AddCSSAfter,
		AddJSBefore:  raw.AddJSBefore,
		AddJSAfter:   raw.AddJSAfter,
		AddImg:       raw.AddImg,
		ExcludeCSS:   raw.ExcludeCSS,
		ExcludeJS:    raw.ExcludeJS,
		ExcludeImg:   raw.ExcludeImg,
		CopiedCSS:    raw.CopiedCSS,
		CopiedJS:     raw.CopiedJS,
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

func decodeBlocks(node *yaml.Node) ([]Block, error) {
	// Absent or null blocks means an empty project.
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("blocks must be a mapping (line %d)", node.Line))
	}

	seen := make(map[string]bool, len(node.Content)/2)
	blocks := make([]Block, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		name := key.Value
		if seen[name] {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("duplicate block %q (line %d)", name, key.Line))
		}
		seen[name] = true

		var elements []string
		switch {
		case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
		case value.Kind == yaml.SequenceNode:
			if err := value.Decode(&elements); err != nil {
				return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
					fmt.Sprintf("block %q: elements must be strings: %v", name, err))
			}
		default:
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("block %q: expected a list of elements (line %d)", name, value.Line))
		}

		blocks = append(blocks, Block{Name: name, Elements: elements})
	}

	return blocks, nil
}

// Validate checks the layout and names. It never fills in defaults: an
// unresolved directory must not fall back to the working directory.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Dirs.Source) == "" {
		return errors.NewConfigError(errors.ErrCodeConfigMissing, "dirs.source is required")
	}
	if strings.TrimSpace(p.Dirs.Build) == "" {
		return errors.NewConfigError(errors.ErrCodeConfigMissing, "dirs.build is required")
	}
	if strings.TrimSpace(p.Dirs.BlocksName) == "" {
		return errors.NewConfigError(errors.ErrCodeConfigMissing, "dirs.blocksName is required")
	}
	if err := validation.ValidateName(p.Dirs.BlocksName); err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("dirs.blocksName: %v", err))
	}
	if err := validation.ValidateOutputDir(p.Dirs.Build, p.Dirs.Source); err != nil {
		return errors.NewConfigError(errors.ErrCodeUnsafeOutputDir, err.Error()).WithPath(p.Dirs.Build)
	}

	for _, b := range p.Blocks {
		if err := validation.ValidateName(b.Name); err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("block %q: %v", b.Name, err))
		}
		for _, el := range b.Elements {
			if el == "" || strings.ContainsAny(el, `/\`) {
				return errors.NewConfigError(errors.ErrCodeConfigInvalid,
					fmt.Sprintf("block %q: invalid element %q", b.Name, el))
			}
		}
	}

	return nil
}

// HasBlock reports whether a block with this name is declared.
func (p *Project) HasBlock(name string) bool {
	for _, b := range p.Blocks {
		if b.Name == name {
			return true
		}
	}
	return false
}

// HasSpriteSVG reports whether the SVG sprite feature is enabled.
func (p *Project) HasSpriteSVG() bool { return p.HasBlock(SpriteSVGBlock) }

// HasSpritePNG reports whether the PNG sprite feature is enabled.
func (p *Project) HasSpritePNG() bool { return p.HasBlock(SpritePNGBlock) }

// BlocksDir is the directory holding one sub-directory per block.
func (p *Project) BlocksDir() string {
	return filepath.Join(p.Dirs.Source, p.Dirs.BlocksName)
}

// BlockDir is the directory of a single block.
func (p *Project) BlockDir(block string) string {
	return filepath.Join(p.BlocksDir(), block)
}

// BuildDir is the output root.
func (p *Project) BuildDir() string {
	return filepath.Clean(p.Dirs.Build)
}

// SourceDir is the source root.
func (p *Project) SourceDir() string {
	return filepath.Clean(p.Dirs.Source)
}
