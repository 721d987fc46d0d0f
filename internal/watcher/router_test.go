package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/blockpipe/internal/errors"
)

// blockingRunner runs tasks that wait for a release signal.
type blockingRunner struct {
	mu      sync.Mutex
	calls   map[string]int
	started chan string
	release chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		calls:   make(map[string]int),
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) RunTask(ctx context.Context, name string) error {
	r.mu.Lock()
	r.calls[name]++
	err := r.err
	r.mu.Unlock()

	r.started <- name
	<-r.release
	return err
}

func (r *blockingRunner) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func waitStarted(t *testing.T, r *blockingRunner) string {
	t.Helper()
	select {
	case name := <-r.started:
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("task did not start")
		return ""
	}
}

func TestRapidTriggersCoalesce(t *testing.T) {
	runner := newBlockingRunner()
	router := NewRouter(runner, nil)
	ctx := context.Background()

	var done atomic.Int32
	b := router.Subscribe([]string{"src/blocks/**/*.scss"}, "style", func(context.Context) { done.Add(1) })

	router.Trigger(ctx, b)
	waitStarted(t, runner)
	assert.Equal(t, StateRunning, b.State())

	router.Trigger(ctx, b)
	router.Trigger(ctx, b)
	router.Trigger(ctx, b)
	assert.Equal(t, StatePending, b.State())

	runner.release <- struct{}{}
	waitStarted(t, runner)
	runner.release <- struct{}{}
	router.Wait()

	assert.Equal(t, 2, runner.count("style"), "three triggers while running give exactly one extra run")
	assert.Equal(t, 2, b.Runs())
	assert.Equal(t, int32(2), done.Load())
	assert.Equal(t, StateIdle, b.State())
}

func TestOnDoneOnlyAfterSuccess(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = perrors.NewTaskError("templates", errors.New("pug: unexpected token"))
	router := NewRouter(runner, nil)
	ctx := context.Background()

	var done atomic.Int32
	b := router.Subscribe([]string{"src/*.pug"}, "templates", func(context.Context) { done.Add(1) })

	router.Trigger(ctx, b)
	waitStarted(t, runner)
	runner.release <- struct{}{}
	router.Wait()
	assert.Equal(t, int32(0), done.Load())
	assert.Equal(t, StateIdle, b.State(), "failure leaves the binding usable")

	runner.mu.Lock()
	runner.err = nil
	runner.mu.Unlock()

	router.Trigger(ctx, b)
	waitStarted(t, runner)
	runner.release <- struct{}{}
	router.Wait()
	assert.Equal(t, int32(1), done.Load())
}

func TestUnrecoverableFailureDisablesBinding(t *testing.T) {
	var calls atomic.Int32
	router := NewRouter(TaskRunnerFunc(func(_ context.Context, name string) error {
		calls.Add(1)
		return perrors.NewConfigError(perrors.ErrCodeUnknownTask, "unknown task "+name)
	}), nil)
	ctx := context.Background()

	b := router.Subscribe([]string{"src/*.pug"}, "templatez", nil)
	router.Trigger(ctx, b)
	router.Wait()
	assert.Equal(t, StateDisabled, b.State())

	assert.Len(t, router.Route(ctx, []string{"src/index.pug"}), 1)
	router.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, b.Runs())
}

func TestDifferentBindingsRunConcurrently(t *testing.T) {
	runner := newBlockingRunner()
	router := NewRouter(runner, nil)
	ctx := context.Background()

	style := router.Subscribe([]string{"src/**/*.scss"}, "style", nil)
	js := router.Subscribe([]string{"src/**/*.js"}, "js", nil)

	router.Trigger(ctx, style)
	router.Trigger(ctx, js)

	started := map[string]bool{waitStarted(t, runner): true, waitStarted(t, runner): true}
	assert.True(t, started["style"])
	assert.True(t, started["js"])

	close(runner.release)
	router.Wait()
}

func TestRouteMatchesPatterns(t *testing.T) {
	var mu sync.Mutex
	var ran []string
	runner := TaskRunnerFunc(func(_ context.Context, name string) error {
		mu.Lock()
		ran = append(ran, name)
		mu.Unlock()
		return nil
	})
	router := NewRouter(runner, nil)
	ctx := context.Background()

	router.Subscribe([]string{"./src/scss/style.scss", "src/blocks/**/*.scss"}, "style", nil)
	router.Subscribe([]string{"src/blocks/**/img/*.{jpg,jpeg,gif,png,svg}"}, "copy:img", nil)
	router.Subscribe([]string{"src/*.pug", "src/_include/*.pug", "src/blocks/**/*.pug"}, "templates", nil)

	hit := router.Route(ctx, []string{"src/blocks/header/header__logo.scss", "src/blocks/header/header.scss"})
	require.Len(t, hit, 1)
	assert.Equal(t, "style", hit[0].Task)

	hit = router.Route(ctx, []string{"src/blocks/header/img/logo.png", "src/_include/head.pug"})
	require.Len(t, hit, 2)

	assert.Empty(t, router.Route(ctx, []string{"README.md"}))

	router.Wait()
	mu.Lock()
	assert.ElementsMatch(t, []string{"style", "copy:img", "templates"}, ran)
	mu.Unlock()

	assert.Len(t, router.Patterns(), 6)
}

func TestHandlerRoutesEvents(t *testing.T) {
	calls := make(chan string, 4)
	router := NewRouter(TaskRunnerFunc(func(_ context.Context, name string) error {
		calls <- name
		return nil
	}), nil)
	router.Subscribe([]string{"src/js/*.js"}, "js", nil)

	handler := router.Handler(context.Background())
	require.NoError(t, handler([]ChangeEvent{{Path: "src/js/script.js", Type: EventTypeModified}}))

	select {
	case name := <-calls:
		assert.Equal(t, "js", name)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run the task")
	}
	router.Wait()
}
