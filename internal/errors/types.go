// Package errors defines the structured error taxonomy used across the
// pipeline: configuration errors abort startup, task errors abort the
// current build, and not-found errors degrade optional tasks to skipped.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeTask     ErrorType = "task"
	ErrorTypeNotFound ErrorType = "not_found"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeConfigMissing   = "ERR_CONFIG_MISSING"
	ErrCodeUnsafeOutputDir = "ERR_UNSAFE_OUTPUT_DIR"
	ErrCodeUnknownTask     = "ERR_UNKNOWN_TASK"
	ErrCodeDuplicateTask   = "ERR_DUPLICATE_TASK"
	ErrCodeInvalidPlan     = "ERR_INVALID_PLAN"
	ErrCodeDependencyCycle = "ERR_DEPENDENCY_CYCLE"
	ErrCodeTaskFailed      = "ERR_TASK_FAILED"
	ErrCodeToolFailed      = "ERR_TOOL_FAILED"
	ErrCodeResourceMissing = "ERR_RESOURCE_MISSING"
	ErrCodeInternalError   = "ERR_INTERNAL"
)

// PipelineError is a structured error type with context.
type PipelineError struct {
	Type    ErrorType
	Code    string
	Message string
	Task    string
	Path    string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Task != "" {
		parts = append(parts, "task:"+e.Task)
	}

	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so callers can compare against a template error.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath attaches the file or directory the error refers to.
func (e *PipelineError) WithPath(path string) *PipelineError {
	e.Path = path

	return e
}

// NewConfigError creates a configuration error. These are fatal at startup.
func NewConfigError(code, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewTaskError wraps the failure of a single task.
func NewTaskError(task string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeTask,
		Code:    ErrCodeTaskFailed,
		Message: "task failed",
		Task:    task,
		Cause:   cause,
	}
}

// NewToolError reports a failing external tool invocation. The first
// located diagnostic in output becomes the error path.
func NewToolError(command string, output []byte, cause error) *PipelineError {
	msg := fmt.Sprintf("%s failed", command)
	out := strings.TrimSpace(string(output))
	if out != "" {
		msg += "\n" + out
	}

	e := &PipelineError{
		Type:    ErrorTypeTask,
		Code:    ErrCodeToolFailed,
		Message: msg,
		Cause:   cause,
	}
	if diags := ParseDiagnostics(out); len(diags) > 0 {
		e.Path = diags[0].Location()
		e.WithContext("diagnostics", diags)
	}
	return e
}

// NewNotFoundError reports an absent optional input.
func NewNotFoundError(path, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeResourceMissing,
		Message: message,
		Path:    path,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsTaskError checks if an error is a task execution error.
func IsTaskError(err error) bool {
	return hasType(err, ErrorTypeTask)
}

// IsNotFound checks if an error reports a missing optional resource.
func IsNotFound(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// TaskName returns the name of the first task found in the error chain.
func TaskName(err error) string {
	for err != nil {
		var pe *PipelineError
		if !errors.As(err, &pe) {
			return ""
		}
		if pe.Task != "" {
			return pe.Task
		}
		err = pe.Cause
	}

	return ""
}

// AsPipelineError returns the first PipelineError in the chain.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func hasType(err error, t ErrorType) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}

// Logger is the subset of the logging interface the handler needs.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Handler logs errors according to their category.
type Handler struct {
	logger Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle logs err and reports whether the caller may keep going.
// Configuration and internal errors are not recoverable.
func (h *Handler) Handle(ctx context.Context, err error) bool {
	if err == nil {
		return true
	}

	var pe *PipelineError
	if !errors.As(err, &pe) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return false
	}

	switch pe.Type {
	case ErrorTypeTask:
		h.logger.Error(ctx, err, "Task failed", "task", TaskName(err), "code", pe.Code)
		return true
	case ErrorTypeNotFound:
		h.logger.Warn(ctx, err, "Resource not found", "path", pe.Path)
		return true
	default:
		h.logger.Error(ctx, err, "Error occurred", "type", pe.Type, "code", pe.Code)
		return false
	}
}
