// Package scheduler runs staged plans of registered tasks. Tasks inside a
// stage run concurrently; stages run in order and the first failing stage
// stops the plan.
package scheduler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	perrors "github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/logging"
	"github.com/conneroisu/blockpipe/internal/task"
)

// Scheduler validates and executes plans against a registry. It remembers
// the last terminal status of every task so that a rerun of a single task
// can rely on dependencies finished by an earlier run.
type Scheduler struct {
	registry *task.Registry
	logger   logging.Logger

	mu      sync.Mutex
	history map[string]task.Status
	hooks   []func(*Summary)
}

// New creates a scheduler over reg.
func New(reg *task.Registry, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scheduler{
		registry: reg,
		logger:   logger.WithComponent("scheduler"),
		history:  make(map[string]task.Status),
	}
}

// OnComplete registers fn to be called with the summary of every run.
func (s *Scheduler) OnComplete(fn func(*Summary)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// LastStatus returns the most recent terminal status of name.
func (s *Scheduler) LastStatus(name string) (task.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.history[name]
	return st, ok
}

func (s *Scheduler) satisfied(name string) bool {
	st, ok := s.LastStatus(name)
	return ok && st.Satisfies()
}

// Validate checks plan without running anything.
func (s *Scheduler) Validate(plan Plan) error {
	return validate(s.registry, plan, s.satisfied)
}

// Expand builds a plan holding names and all of their dependencies.
func (s *Scheduler) Expand(names ...string) (Plan, error) {
	return expand(s.registry, names)
}

// PlanFor returns the smallest plan that reruns name: name itself plus
// every task of its dependency closure that has not completed in this
// session. Dependencies that already completed are left out.
func (s *Scheduler) PlanFor(name string) (Plan, error) {
	closure, err := s.Expand(name)
	if err != nil {
		return nil, err
	}

	var plan Plan
	for _, st := range closure {
		var keep Stage
		for _, n := range st {
			if n == name || !s.satisfied(n) {
				keep = append(keep, n)
			}
		}
		if len(keep) > 0 {
			plan = append(plan, keep)
		}
	}
	return plan, nil
}

// Run executes plan and waits for it.
func (s *Scheduler) Run(ctx context.Context, plan Plan) (*Summary, error) {
	return s.Start(ctx, plan).Wait()
}

// Start validates plan and executes it in the background. An invalid plan
// yields a run that is already finished with a configuration error and
// every task pending.
func (s *Scheduler) Start(ctx context.Context, plan Plan) *Run {
	run := newRun(plan)

	if err := s.Validate(plan); err != nil {
		s.complete(run, err)
		return run
	}

	s.registry.Seal()
	go s.execute(ctx, run)
	return run
}

func (s *Scheduler) execute(ctx context.Context, run *Run) {
	logger := s.logger.With("run", run.ID.String())
	logger.Debug(ctx, "Starting run", "plan", run.Plan.String())

	var runErr error
	for i, stage := range run.Plan {
		if err := ctx.Err(); err != nil {
			runErr = perrors.NewInternalError(perrors.ErrCodeInternalError, "run cancelled", err)
			break
		}

		errs := make([]error, len(stage))
		var wg conc.WaitGroup
		for j, name := range stage {
			j, name := j, name
			wg.Go(func() {
				errs[j] = s.runTask(ctx, logger, run, name)
			})
		}
		wg.Wait()

		if err := errors.Join(errs...); err != nil {
			runErr = err
			logger.Debug(ctx, "Stage failed, stopping", "stage", i+1)
			break
		}
	}

	s.complete(run, runErr)
}

// runTask executes one task and records its terminal state. The returned
// error is non-nil only for failures.
func (s *Scheduler) runTask(ctx context.Context, logger logging.Logger, run *Run, name string) error {
	t, err := s.registry.Lookup(name)
	if err != nil {
		run.markFinished(name, task.StatusFailed, err, "")
		return err
	}

	run.markRunning(name)
	op := logging.StartOperation(logger, name)
	op.Debug(ctx, "Task started")

	var actionErr error
	var pc panics.Catcher
	pc.Try(func() { actionErr = t.Action(ctx) })
	if r := pc.Recovered(); r != nil {
		actionErr = fmt.Errorf("panic: %w", r.AsError())
	}

	switch {
	case actionErr == nil:
		run.markFinished(name, task.StatusSucceeded, nil, "")
		s.record(name, task.StatusSucceeded)
		op.End(ctx, "Task finished", "status", task.StatusSucceeded)
		return nil
	case task.IsSkip(actionErr):
		reason := task.SkipReason(actionErr)
		run.markFinished(name, task.StatusSkipped, nil, reason)
		s.record(name, task.StatusSkipped)
		op.End(ctx, "Task skipped", "status", task.StatusSkipped, "reason", reason)
		return nil
	default:
		taskErr := perrors.NewTaskError(name, actionErr)
		run.markFinished(name, task.StatusFailed, taskErr, "")
		s.record(name, task.StatusFailed)
		op.EndWithError(ctx, actionErr, "Task failed", "status", task.StatusFailed)
		return taskErr
	}
}

func (s *Scheduler) record(name string, st task.Status) {
	s.mu.Lock()
	s.history[name] = st
	s.mu.Unlock()
}

func (s *Scheduler) complete(run *Run, err error) {
	summary := run.finish(err)

	s.mu.Lock()
	hooks := append([]func(*Summary){}, s.hooks...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(summary)
	}
	run.release()
}

func newID() ulid.ULID {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
}
