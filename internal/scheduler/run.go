package scheduler

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/conneroisu/blockpipe/internal/task"
)

// TaskResult is the outcome of one task within a run.
type TaskResult struct {
	Name       string
	Status     task.Status
	Err        error
	SkipReason string
	Started    time.Time
	Finished   time.Time
}

// Duration is the wall time the task ran for.
func (r TaskResult) Duration() time.Duration {
	if r.Started.IsZero() || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Summary aggregates the results of a finished run.
type Summary struct {
	RunID     string
	Plan      Plan
	Tasks     []TaskResult
	Duration  time.Duration
	Succeeded int
	Failed    int
	Skipped   int
	Pending   int
	Err       error
}

// OK reports whether no task failed and the plan was valid.
func (s *Summary) OK() bool {
	return s.Err == nil
}

// Result returns the result of the named task.
func (s *Summary) Result(name string) (TaskResult, bool) {
	for _, r := range s.Tasks {
		if r.Name == name {
			return r, true
		}
	}
	return TaskResult{}, false
}

// Status returns the final status of the named task, or pending.
func (s *Summary) Status(name string) task.Status {
	r, ok := s.Result(name)
	if !ok {
		return task.StatusPending
	}
	return r.Status
}

// Run is a plan in flight. Wait blocks until it is finished.
type Run struct {
	ID   ulid.ULID
	Plan Plan

	mu      sync.Mutex
	started time.Time
	results map[string]*TaskResult
	done    chan struct{}
	summary *Summary
}

func newRun(plan Plan) *Run {
	r := &Run{
		ID:      newID(),
		Plan:    plan,
		started: time.Now(),
		results: make(map[string]*TaskResult),
		done:    make(chan struct{}),
	}
	for _, name := range plan.Tasks() {
		r.results[name] = &TaskResult{Name: name, Status: task.StatusPending}
	}
	return r
}

// Status returns the current status of name within the run.
func (r *Run) Status(name string) task.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.results[name]; ok {
		return res.Status
	}
	return task.StatusPending
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is finished and returns its summary and error.
func (r *Run) Wait() (*Summary, error) {
	<-r.done
	return r.summary, r.summary.Err
}

func (r *Run) markRunning(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.results[name]
	res.Status = task.StatusRunning
	res.Started = time.Now()
}

func (r *Run) markFinished(name string, status task.Status, err error, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.results[name]
	res.Status = status
	res.Err = err
	res.SkipReason = reason
	res.Finished = time.Now()
}

// finish freezes the results into a summary. Waiters are released by
// release once completion hooks have run.
func (r *Run) finish(err error) *Summary {
	r.mu.Lock()
	s := &Summary{
		RunID:    r.ID.String(),
		Plan:     r.Plan,
		Duration: time.Since(r.started),
		Err:      err,
	}
	for _, name := range r.Plan.Tasks() {
		res := *r.results[name]
		s.Tasks = append(s.Tasks, res)
		switch res.Status {
		case task.StatusSucceeded:
			s.Succeeded++
		case task.StatusFailed:
			s.Failed++
		case task.StatusSkipped:
			s.Skipped++
		default:
			s.Pending++
		}
	}
	r.summary = s
	r.mu.Unlock()

	return s
}

func (r *Run) release() {
	close(r.done)
}
