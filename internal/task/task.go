// Package task defines the unit of work the scheduler runs and the
// registry that names them.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	perrors "github.com/conneroisu/blockpipe/internal/errors"
)

// Action performs a task. It returns nil on success, a SkipError when the
// task does not apply, and any other error on failure.
type Action func(ctx context.Context) error

// Task is a named action with the names of the tasks it depends on.
type Task struct {
	Name        string
	Description string
	Deps        []string
	Action      Action
}

// Status is the lifecycle state of a task within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// Satisfies reports whether a dependency in state s lets dependents run.
func (s Status) Satisfies() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// SkipError marks a task that had nothing to do.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// Skip returns an error that makes the scheduler record the task as skipped.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

// Skipf is Skip with formatting.
func Skipf(format string, args ...interface{}) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// IsSkip reports whether err means skipped. Missing optional resources
// count as skipped too.
func IsSkip(err error) bool {
	var se *SkipError
	if errors.As(err, &se) {
		return true
	}
	return perrors.IsNotFound(err)
}

// SkipReason extracts the reason from a skip error.
func SkipReason(err error) string {
	var se *SkipError
	if errors.As(err, &se) {
		return se.Reason
	}
	if pe, ok := perrors.AsPipelineError(err); ok {
		if pe.Path != "" {
			return pe.Message + ": " + pe.Path
		}
		return pe.Message
	}
	return ""
}

// Registry maps names to tasks. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[string]Task
	order  []string
	sealed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds t. Names must be unique and non-empty.
func (r *Registry) Register(t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return perrors.NewInternalError(perrors.ErrCodeInternalError,
			fmt.Sprintf("registry is sealed, cannot register %q", t.Name), nil)
	}
	if t.Name == "" {
		return perrors.NewConfigError(perrors.ErrCodeConfigInvalid, "task name is required")
	}
	if t.Action == nil {
		return perrors.NewConfigError(perrors.ErrCodeConfigInvalid, fmt.Sprintf("task %q has no action", t.Name))
	}
	if _, ok := r.tasks[t.Name]; ok {
		return perrors.NewConfigError(perrors.ErrCodeDuplicateTask, fmt.Sprintf("task %q already registered", t.Name))
	}

	t.Deps = append([]string(nil), t.Deps...)
	r.tasks[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns the task named name.
func (r *Registry) Lookup(name string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]
	if !ok {
		return Task{}, perrors.NewConfigError(perrors.ErrCodeUnknownTask, fmt.Sprintf("unknown task %q", name))
	}
	return t, nil
}

// Names lists task names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Seal forbids further registration.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
