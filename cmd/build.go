package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/blockpipe/internal/pipeline"
	"github.com/conneroisu/blockpipe/internal/scheduler"
	"github.com/conneroisu/blockpipe/internal/tasks"
)

// signalContext is cancelled on SIGINT or SIGTERM so running tools stop.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "build [task...]",
		Aliases: []string{"b"},
		Short:   "Build the site",
		Long: `Run the full build: clean, sprites, styles, scripts, asset copies and
templates. Named tasks run together with their dependencies instead.

Examples:
  blockpipe build                 # Full build
  blockpipe build style js        # Only styles and scripts
  BLOCKPIPE_ENV=production blockpipe build`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pl, err := a.newPipeline()
			if err != nil {
				return err
			}

			plan := pipeline.DefaultPlan()
			if len(args) > 0 {
				if plan, err = pl.Scheduler.Expand(args...); err != nil {
					return err
				}
			}
			return a.runPlan(cmd, pl, plan)
		},
	}
}

func (a *app) cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the contents of the build directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pl, err := a.newPipeline()
			if err != nil {
				return err
			}
			return a.runPlan(cmd, pl, scheduler.Sequence(tasks.Clean))
		},
	}
}

func (a *app) optimizeImagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize-images [dir]",
		Short: "Losslessly optimize the images of a directory in place",
		Long: `Losslessly optimize the images of a directory in place. Without a
directory nothing is optimized and the task reports skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pl, err := a.newPipeline()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				pl.Env.ImageDir = args[0]
			}
			return a.runPlan(cmd, pl, scheduler.Sequence(tasks.ImgOpt))
		},
	}
}

func (a *app) publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the build directory",
		Long: `Publish the build directory with the configured publish tool, by default
gh-pages pushing to the gh-pages branch of origin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pl, err := a.newPipeline()
			if err != nil {
				return err
			}
			return a.runPlan(cmd, pl, scheduler.Sequence(tasks.Publish))
		},
	}

	cmd.Flags().String("branch", "", "branch to publish to")
	cmd.Flags().String("remote", "", "remote to push to")
	if err := bindFlags(a.v, cmd.Flags(), map[string]string{
		"branch": "publish.branch",
		"remote": "publish.remote",
	}); err != nil {
		panic(err)
	}
	return cmd
}

func (a *app) runPlan(cmd *cobra.Command, pl *pipeline.Pipeline, plan scheduler.Plan) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	_, err := pl.Run(ctx, plan)
	return err
}
