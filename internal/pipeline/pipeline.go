// Package pipeline assembles the build: it registers the tasks, runs the
// default plan, reruns single tasks for the watcher and binds source
// patterns to tasks and browser reloads.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/blockpipe/internal/config"
	"github.com/conneroisu/blockpipe/internal/logging"
	"github.com/conneroisu/blockpipe/internal/scheduler"
	"github.com/conneroisu/blockpipe/internal/task"
	"github.com/conneroisu/blockpipe/internal/tasks"
	"github.com/conneroisu/blockpipe/internal/tool"
	"github.com/conneroisu/blockpipe/internal/watcher"
)

// DefaultPlan is the full build.
func DefaultPlan() scheduler.Plan {
	return scheduler.Plan{
		{tasks.Clean},
		{tasks.SpriteSVG, tasks.SpritePNG},
		{tasks.Style, tasks.JS, tasks.CopyCSS, tasks.CopyImg, tasks.CopyJS, tasks.CopyFonts},
		{tasks.Templates},
	}
}

// Reloader notifies browsers after a rebuild.
type Reloader interface {
	Reload(ctx context.Context)
	ReloadCSS(ctx context.Context)
}

// Pipeline owns the registry and scheduler of one project.
type Pipeline struct {
	Env       *tasks.Env
	Registry  *task.Registry
	Scheduler *scheduler.Scheduler
	Metrics   *Metrics

	logger logging.Logger
}

// New registers every task of project. runner executes the external tools.
func New(project *config.Project, settings *config.Settings, runner tool.Runner, logger logging.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	env := tasks.NewEnv(project, settings, runner, logger)
	reg := task.NewRegistry()
	if err := tasks.Register(reg, env); err != nil {
		return nil, err
	}

	p := &Pipeline{
		Env:       env,
		Registry:  reg,
		Scheduler: scheduler.New(reg, logger),
		Metrics:   NewMetrics(),
		logger:    logger.WithComponent("pipeline"),
	}
	p.Scheduler.OnComplete(p.Metrics.RecordRun)
	return p, nil
}

// Build runs the default plan.
func (p *Pipeline) Build(ctx context.Context) (*scheduler.Summary, error) {
	return p.Run(ctx, DefaultPlan())
}

// Run executes plan and logs its summary.
func (p *Pipeline) Run(ctx context.Context, plan scheduler.Plan) (*scheduler.Summary, error) {
	summary, err := p.Scheduler.Run(ctx, plan)
	p.logSummary(ctx, summary)
	return summary, err
}

// RunTask reruns name, preceded by whichever dependencies have not
// completed yet in this session.
func (p *Pipeline) RunTask(ctx context.Context, name string) error {
	plan, err := p.Scheduler.PlanFor(name)
	if err != nil {
		return err
	}
	_, err = p.Run(ctx, plan)
	return err
}

func (p *Pipeline) logSummary(ctx context.Context, s *scheduler.Summary) {
	if s == nil {
		return
	}
	fields := []interface{}{
		"run", s.RunID,
		"plan", s.Plan.String(),
		"succeeded", s.Succeeded,
		"skipped", s.Skipped,
		"failed", s.Failed,
		"duration", s.Duration.String(),
	}
	if s.Err != nil {
		p.logger.Error(ctx, s.Err, "Build failed", fields...)
		return
	}
	for _, r := range s.Tasks {
		if r.SkipReason != "" {
			p.logger.Debug(ctx, "Task skipped", "task", r.Name, "reason", r.SkipReason)
		}
	}
	p.logger.Info(ctx, "Build finished", fields...)
}

// Bind subscribes the watch bindings of the project to router. reloader
// may be nil when nobody listens for reloads.
func (p *Pipeline) Bind(router *watcher.Router, reloader Reloader) {
	full, css := reloadFuncs(reloader)
	for _, b := range p.WatchBindings() {
		onDone := full
		if b.CSSOnly {
			onDone = css
		}
		router.Subscribe(b.Patterns, b.Task, onDone)
	}
}

func reloadFuncs(r Reloader) (full, css func(context.Context)) {
	if r == nil {
		return nil, nil
	}
	return r.Reload, r.ReloadCSS
}

// WatchBinding is one pattern set and the task it triggers.
type WatchBinding struct {
	Patterns []string
	Task     string
	CSSOnly  bool
}

// WatchBindings lists the bindings of the project. Bindings without
// patterns are left out.
func (p *Pipeline) WatchBindings() []WatchBinding {
	proj := p.Env.Project
	lists := p.Env.Lists
	src := proj.SourceDir()
	blocks := proj.BlocksDir()

	styles := []string{
		tasks.StyleEntryPath(proj),
		filepath.Join(blocks, "**", "*.scss"),
	}
	styles = append(styles, proj.AddCSSBefore...)
	styles = append(styles, proj.AddCSSAfter...)

	all := []WatchBinding{
		{Patterns: styles, Task: tasks.Style, CSSOnly: true},
		{Patterns: proj.CopiedCSS, Task: tasks.CopyCSS, CSSOnly: true},
		{Patterns: lists.Images, Task: tasks.CopyImg},
		{Patterns: proj.CopiedJS, Task: tasks.CopyJS},
		{Patterns: []string{
			filepath.Join(src, tasks.TemplatePattern),
			filepath.Join(src, "_include", tasks.TemplatePattern),
			filepath.Join(blocks, "**", tasks.TemplatePattern),
		}, Task: tasks.Templates},
		{Patterns: lists.Scripts, Task: tasks.JS},
	}
	if proj.HasSpriteSVG() {
		all = append(all, WatchBinding{
			Patterns: []string{filepath.Join(tasks.SpriteSVGSourceDir(proj), "*.svg")},
			Task:     tasks.SpriteSVG,
		})
	}
	if proj.HasSpritePNG() {
		all = append(all, WatchBinding{
			Patterns: []string{filepath.Join(tasks.SpritePNGSourceDir(proj), "*.png")},
			Task:     tasks.SpritePNG,
		})
	}
	all = append(all, WatchBinding{
		Patterns: []string{filepath.Join(p.Env.FontsSourceDir(), "*")},
		Task:     tasks.CopyFonts,
	})

	out := all[:0]
	for _, b := range all {
		if len(b.Patterns) > 0 {
			out = append(out, b)
		}
	}
	return out
}
