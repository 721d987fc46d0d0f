package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineErrorMessage(t *testing.T) {
	testCases := []struct {
		name     string
		err      *PipelineError
		expected string
	}{
		{
			name:     "config error",
			err:      NewConfigError(ErrCodeConfigMissing, "dirs.source is required"),
			expected: "[ERR_CONFIG_MISSING] dirs.source is required",
		},
		{
			name:     "task error with cause",
			err:      NewTaskError("style", errors.New("sass exited 1")),
			expected: "[ERR_TASK_FAILED] task:style task failed: sass exited 1",
		},
		{
			name:     "not found with path",
			err:      NewNotFoundError("src/fonts", "font directory missing"),
			expected: "[ERR_RESOURCE_MISSING] src/fonts font directory missing",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestToolErrorIncludesOutput(t *testing.T) {
	err := NewToolError("sass", []byte("  Error: expected \";\"\n"), errors.New("exit status 65"))

	assert.Contains(t, err.Error(), "sass failed")
	assert.Contains(t, err.Error(), `Error: expected ";"`)
	assert.Contains(t, err.Error(), "exit status 65")
	assert.True(t, IsTaskError(err))
}

func TestClassification(t *testing.T) {
	cfg := NewConfigError(ErrCodeConfigInvalid, "bad")
	task := NewTaskError("js", errors.New("boom"))
	missing := NewNotFoundError("x", "gone")

	wrapped := fmt.Errorf("running build: %w", task)

	assert.True(t, IsConfigError(cfg))
	assert.False(t, IsConfigError(task))
	assert.True(t, IsTaskError(wrapped))
	assert.True(t, IsNotFound(missing))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestIsMatchesTypeAndCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewConfigError(ErrCodeDependencyCycle, "a -> b -> a"))

	assert.ErrorIs(t, err, NewConfigError(ErrCodeDependencyCycle, ""))
	assert.NotErrorIs(t, err, NewConfigError(ErrCodeUnknownTask, ""))
}

func TestTaskName(t *testing.T) {
	inner := NewToolError("pug", nil, errors.New("exit 1"))
	err := fmt.Errorf("stage 3: %w", NewTaskError("templates", inner))

	assert.Equal(t, "templates", TaskName(err))
	assert.Equal(t, "", TaskName(errors.New("plain")))
	assert.Equal(t, "", TaskName(nil))
}

func TestWithContext(t *testing.T) {
	err := NewConfigError(ErrCodeConfigInvalid, "bad block").
		WithContext("block", "header").
		WithPath("projectConfig.json")

	require.NotNil(t, err.Context)
	assert.Equal(t, "header", err.Context["block"])
	assert.Equal(t, "projectConfig.json", err.Path)
}

type recordingLogger struct {
	errors []string
	warns  []string
}

func (r *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.errors = append(r.errors, msg)
}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.warns = append(r.warns, msg)
}

func TestHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewHandler(logger)
	ctx := context.Background()

	assert.True(t, h.Handle(ctx, nil))
	assert.True(t, h.Handle(ctx, NewTaskError("style", errors.New("x"))))
	assert.True(t, h.Handle(ctx, NewNotFoundError("p", "missing")))
	assert.False(t, h.Handle(ctx, NewConfigError(ErrCodeConfigInvalid, "bad")))
	assert.False(t, h.Handle(ctx, errors.New("plain")))

	assert.Equal(t, []string{"Task failed", "Error occurred", "Unhandled error occurred"}, logger.errors)
	assert.Equal(t, []string{"Resource not found"}, logger.warns)
}
