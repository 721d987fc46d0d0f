package watcher

import (
	"context"
	"sync"

	perrors "github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/logging"
	"github.com/conneroisu/blockpipe/internal/resolver"
)

// TaskRunner reruns a task by name.
type TaskRunner interface {
	RunTask(ctx context.Context, name string) error
}

// TaskRunnerFunc adapts a function to TaskRunner.
type TaskRunnerFunc func(ctx context.Context, name string) error

// RunTask calls f.
func (f TaskRunnerFunc) RunTask(ctx context.Context, name string) error {
	return f(ctx, name)
}

// BindingState is the lifecycle state of a binding.
type BindingState string

const (
	StateIdle    BindingState = "idle"
	StateRunning BindingState = "running"
	// StatePending means running with one more run queued.
	StatePending BindingState = "pending"
	// StateDisabled means a run failed in a way no rebuild can fix.
	StateDisabled BindingState = "disabled"
)

// Binding ties path patterns to a task. It never runs its task twice at
// the same time; triggers during a run collapse into a single rerun.
type Binding struct {
	Patterns []string
	Task     string
	OnDone   func(ctx context.Context)

	normalized []string

	mu       sync.Mutex
	running  bool
	dirty    bool
	disabled bool
	runs     int
}

// Matches reports whether path matches one of the binding's patterns.
func (b *Binding) Matches(path string) bool {
	return resolver.Matches(b.normalized, resolver.Normalize(path))
}

// State returns the current state.
func (b *Binding) State() BindingState {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.disabled:
		return StateDisabled
	case b.running && b.dirty:
		return StatePending
	case b.running:
		return StateRunning
	default:
		return StateIdle
	}
}

// Runs returns how many times the task was started.
func (b *Binding) Runs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runs
}

// Router dispatches changed paths to bindings.
type Router struct {
	runner TaskRunner
	logger logging.Logger
	errs   *perrors.Handler

	mu       sync.RWMutex
	bindings []*Binding
	inflight sync.WaitGroup
}

// NewRouter creates a router running tasks through runner.
func NewRouter(runner TaskRunner, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("router")
	return &Router{
		runner: runner,
		logger: logger,
		errs:   perrors.NewHandler(logger),
	}
}

// Subscribe registers a binding. onDone may be nil and runs only after a
// successful run.
func (r *Router) Subscribe(patterns []string, task string, onDone func(ctx context.Context)) *Binding {
	b := &Binding{
		Patterns: append([]string(nil), patterns...),
		Task:     task,
		OnDone:   onDone,
	}
	for _, p := range patterns {
		b.normalized = append(b.normalized, resolver.Normalize(p))
	}

	r.mu.Lock()
	r.bindings = append(r.bindings, b)
	r.mu.Unlock()
	return b
}

// Bindings returns the registered bindings in subscription order.
func (r *Router) Bindings() []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Binding(nil), r.bindings...)
}

// Patterns returns every pattern of every binding.
func (r *Router) Patterns() []string {
	var out []string
	for _, b := range r.Bindings() {
		out = append(out, b.Patterns...)
	}
	return out
}

// Route triggers every binding matching at least one of paths, once.
func (r *Router) Route(ctx context.Context, paths []string) []*Binding {
	var hit []*Binding
	for _, b := range r.Bindings() {
		for _, p := range paths {
			if b.Matches(p) {
				hit = append(hit, b)
				break
			}
		}
	}

	for _, b := range hit {
		r.logger.Debug(ctx, "Change matched binding", "task", b.Task)
		r.Trigger(ctx, b)
	}
	return hit
}

// Handler adapts the router to a FileWatcher change handler.
func (r *Router) Handler(ctx context.Context) ChangeHandler {
	return func(events []ChangeEvent) error {
		paths := make([]string, 0, len(events))
		for _, e := range events {
			paths = append(paths, e.Path)
		}
		if hit := r.Route(ctx, paths); len(hit) == 0 {
			r.logger.Debug(ctx, "Change matched no binding", "files", len(paths))
		}
		return nil
	}
}

// Trigger requests a run of b. If b is already running the request is
// folded into a single follow-up run.
func (r *Router) Trigger(ctx context.Context, b *Binding) {
	b.mu.Lock()
	if b.disabled {
		b.mu.Unlock()
		r.logger.Debug(ctx, "Binding disabled, ignoring change", "task", b.Task)
		return
	}
	if b.running {
		if b.dirty {
			r.logger.Debug(ctx, "Rerun already queued, coalescing", "task", b.Task)
		}
		b.dirty = true
		b.mu.Unlock()
		return
	}
	b.running = true
	b.runs++
	b.mu.Unlock()

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.loop(ctx, b)
	}()
}

func (r *Router) loop(ctx context.Context, b *Binding) {
	for {
		op := logging.StartOperation(r.logger, b.Task)
		err := r.runner.RunTask(ctx, b.Task)
		switch {
		case err == nil:
			op.End(ctx, "Rebuilt", "task", b.Task)
			if b.OnDone != nil {
				b.OnDone(ctx)
			}
		case ctx.Err() != nil:
			// Shutting down.
		case !r.errs.Handle(ctx, err):
			// A failed rebuild never ends the watch session, but a binding
			// whose plan cannot run is switched off.
			r.logger.Warn(ctx, err, "Disabling binding", "task", b.Task)
			b.mu.Lock()
			b.disabled = true
			b.mu.Unlock()
		}

		b.mu.Lock()
		if b.dirty && !b.disabled && ctx.Err() == nil {
			b.dirty = false
			b.runs++
			b.mu.Unlock()
			continue
		}
		b.dirty = false
		b.running = false
		b.mu.Unlock()
		return
	}
}

// Wait blocks until no binding is running.
func (r *Router) Wait() {
	r.inflight.Wait()
}
