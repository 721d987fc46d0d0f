package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/conneroisu/blockpipe/internal/pipeline"
	"github.com/conneroisu/blockpipe/internal/server"
	"github.com/conneroisu/blockpipe/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Build, serve the site and rebuild on change",
		Long: `Run the full build, serve the build directory with live reload and watch
the sources. A change reruns only the task bound to the changed file; style
changes refresh stylesheets in place, everything else reloads the page.
A failed rebuild is logged and the session keeps running.

Examples:
  blockpipe serve                 # Serve on localhost:8080
  blockpipe serve -p 3000 --no-open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pl, err := a.newPipeline()
			if err != nil {
				return err
			}
			if noOpen, _ := cmd.Flags().GetBool("no-open"); noOpen {
				a.settings.Server.Open = false
			}
			return a.serve(cmd, pl)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "port to serve on")
	cmd.Flags().String("host", "localhost", "host to bind to")
	cmd.Flags().Bool("no-open", false, "don't open the browser")
	cmd.Flags().Duration("debounce", 0, "delay that groups file events into one rebuild")
	if err := bindFlags(a.v, cmd.Flags(), map[string]string{
		"port":     "server.port",
		"host":     "server.host",
		"debounce": "watch.debounce",
	}); err != nil {
		panic(err)
	}
	return cmd
}

func (a *app) serve(cmd *cobra.Command, pl *pipeline.Pipeline) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	// The session starts even when the first build fails.
	if _, err := pl.Build(ctx); err != nil && ctx.Err() == nil {
		a.logger.Warn(ctx, err, "Initial build failed, watching for changes")
	}
	if ctx.Err() != nil {
		return nil
	}

	buildDir := pl.Env.Project.BuildDir()
	srv := server.New(buildDir, a.settings.Server, a.logger)
	srv.SetBuildStatus(pl.Metrics.Status)

	router := watcher.NewRouter(pl, a.logger)
	pl.Bind(router, srv.Hub())

	fw, err := watcher.NewFileWatcher(a.settings.Watch.Debounce, a.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(watcher.NotUnderFilter(buildDir))
	for _, pattern := range router.Patterns() {
		if err := fw.AddPattern(pattern); err != nil {
			a.logger.Warn(ctx, err, "Cannot watch pattern", "pattern", pattern)
		}
	}

	var g run.Group

	// OS signals.
	{
		g.Add(
			func() error {
				<-ctx.Done()
				a.logger.Info(context.Background(), "Shutting down")
				return nil
			},
			func(error) {
				cancel()
			},
		)
	}

	// File watcher and rebuilds.
	{
		watchCtx, watchCancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				fw.AddHandler(router.Handler(watchCtx))
				if err := fw.Start(watchCtx); err != nil {
					return fmt.Errorf("starting watcher: %w", err)
				}
				a.logger.Info(watchCtx, "Watching for changes", "paths", len(fw.WatchList()))
				<-watchCtx.Done()
				return nil
			},
			func(error) {
				watchCancel()
				_ = fw.Stop()
				router.Wait()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				return srv.ListenAndServe(ctx)
			},
			func(error) {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
					a.logger.Warn(shutdownCtx, err, "Server shutdown failed")
				}
			},
		)
	}

	return g.Run()
}
