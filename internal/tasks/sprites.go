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

// Sprite file names written into the sprite blocks.
const (
	SpriteSVGFile = "sprite-svg.svg"
	SpritePNGFile = "sprite-png.png"
	SpritePNGSCSS = "sprite-png.scss"
)

// SpriteSVGSourceDir is where the SVG icons of the sprite block live.
func SpriteSVGSourceDir(p *config.Project) string {
	return filepath.Join(p.BlockDir(config.SpriteSVGBlock), "svg")
}

// SpritePNGSourceDir is where the PNG icons of the sprite block live.
func SpritePNGSourceDir(p *config.Project) string {
	return filepath.Join(p.BlockDir(config.SpritePNGBlock), "png")
}

func (e *Env) spriteSVG(ctx context.Context) error {
	if !e.Project.HasSpriteSVG() {
		return task.Skipf("block %q is not used", config.SpriteSVGBlock)
	}
	src := SpriteSVGSourceDir(e.Project)
	if !dirExists(src) {
		return perrors.NewNotFoundError(src, "no icon directory")
	}

	imgDir := filepath.Join(e.Project.BlockDir(config.SpriteSVGBlock), ImgDir)
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return err
	}

	if err := e.runTool(ctx, config.ToolSpriteSVG, tool.Vars{
		tool.VarInput:  src,
		tool.VarOutput: imgDir,
	}); err != nil {
		return err
	}

	e.Sizes.Report(ctx, SpriteSVG, filepath.Join(imgDir, SpriteSVGFile))
	return nil
}

func (e *Env) spritePNG(ctx context.Context) error {
	if !e.Project.HasSpritePNG() {
		return task.Skipf("block %q is not used", config.SpritePNGBlock)
	}
	src := SpritePNGSourceDir(e.Project)
	if !dirExists(src) {
		return perrors.NewNotFoundError(src, "no icon directory")
	}

	blockDir := e.Project.BlockDir(config.SpritePNGBlock)
	imgDir := filepath.Join(blockDir, ImgDir)
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return err
	}

	// Stale sprite sheets from earlier runs would be copied into the build.
	stale, err := filepath.Glob(filepath.Join(imgDir, "*.png"))
	if err != nil {
		return err
	}
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("removing old sprite %s: %w", f, err)
		}
	}

	image := filepath.Join(imgDir, SpritePNGFile)
	if err := e.runTool(ctx, config.ToolSpritePNG, tool.Vars{
		tool.VarInput:  src,
		tool.VarOutput: image,
		tool.VarCSS:    filepath.Join(blockDir, SpritePNGSCSS),
	}); err != nil {
		return err
	}

	e.Sizes.Report(ctx, SpritePNG, image)
	return nil
}
