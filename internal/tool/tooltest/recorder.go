// Package tooltest provides a scripted tool runner for tests.
package tooltest

import (
	"context"
	"sync"

	"github.com/conneroisu/blockpipe/internal/tool"
)

// Handler simulates one tool. It may write the files the real tool would.
type Handler func(ctx context.Context, spec tool.Spec) ([]byte, error)

// Recorder is a tool.Runner that records calls and dispatches them to
// per-command handlers. Commands without a handler succeed silently.
type Recorder struct {
	mu       sync.Mutex
	calls    []tool.Spec
	handlers map[string]Handler
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{handlers: make(map[string]Handler)}
}

// Handle installs h for command.
func (r *Recorder) Handle(command string, h Handler) {
	r.mu.Lock()
	r.handlers[command] = h
	r.mu.Unlock()
}

// Run implements tool.Runner.
func (r *Recorder) Run(ctx context.Context, spec tool.Spec) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, spec)
	h := r.handlers[spec.Command]
	r.mu.Unlock()

	if h == nil {
		return nil, nil
	}
	return h(ctx, spec)
}

// Calls returns every recorded spec.
func (r *Recorder) Calls() []tool.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tool.Spec(nil), r.calls...)
}

// CallsTo returns the recorded specs for command.
func (r *Recorder) CallsTo(command string) []tool.Spec {
	var out []tool.Spec
	for _, c := range r.Calls() {
		if c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls and keeps handlers.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
