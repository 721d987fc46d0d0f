// Package tool runs the external compilers the build delegates to. Commands
// are executed directly, never through a shell.
package tool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/blockpipe/internal/config"
	perrors "github.com/conneroisu/blockpipe/internal/errors"
	"github.com/conneroisu/blockpipe/internal/logging"
	"github.com/conneroisu/blockpipe/internal/validation"
)

// Placeholder keys understood in argument templates.
const (
	VarInput  = "input"
	VarOutput = "output"
	VarCSS    = "css"
	VarDir    = "dir"
	VarBranch = "branch"
	VarRemote = "remote"
)

var knownVars = []string{VarInput, VarOutput, VarCSS, VarDir, VarBranch, VarRemote}

// Vars holds placeholder values.
type Vars map[string]string

// Spec is a single command invocation.
type Spec struct {
	Name    string
	Command string
	Args    []string
	Dir     string
}

// String renders the invocation for logs.
func (s Spec) String() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

// FromSettings builds the invocation of a configured tool for mode.
// Placeholders are replaced and glob arguments expanded.
func FromSettings(name string, ts config.ToolSettings, mode config.Mode, vars Vars) (Spec, error) {
	args, err := ExpandGlobs(Substitute(ts.ArgsFor(mode), vars))
	if err != nil {
		return Spec{}, err
	}
	return Spec{Name: name, Command: ts.Command, Args: args}, nil
}

// Substitute replaces {key} placeholders for known keys. Other braces,
// such as glob alternatives, are left untouched.
func Substitute(args []string, vars Vars) []string {
	pairs := make([]string, 0, 2*len(knownVars))
	for _, k := range knownVars {
		if v, ok := vars[k]; ok {
			pairs = append(pairs, "{"+k+"}", v)
		}
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// ExpandGlobs replaces every non-flag argument holding a glob with the
// sorted list of matching files. A glob that matches nothing yields a
// not-found error so optional tasks can skip.
func ExpandGlobs(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, "-") || !strings.ContainsAny(a, "*?[") {
			out = append(out, a)
			continue
		}
		matches, err := doublestar.FilepathGlob(a)
		if err != nil {
			return nil, perrors.NewConfigError(perrors.ErrCodeConfigInvalid,
				fmt.Sprintf("bad glob argument %q: %v", a, err))
		}
		if len(matches) == 0 {
			return nil, perrors.NewNotFoundError(a, "no files match")
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out, nil
}

// Runner executes a Spec and returns its combined output.
type Runner interface {
	Run(ctx context.Context, spec Spec) ([]byte, error)
}

// ExecRunner runs specs as child processes.
type ExecRunner struct {
	logger logging.Logger
}

// NewExecRunner creates a runner that logs each invocation at debug level.
func NewExecRunner(logger logging.Logger) *ExecRunner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ExecRunner{logger: logger.WithComponent("tool")}
}

// Run validates the command name and executes spec. Argument templates
// are checked when settings load; expanded file names are passed as is.
// The process is killed when ctx ends.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) ([]byte, error) {
	if err := validation.ValidateCommand(spec.Command); err != nil {
		return nil, perrors.NewConfigError(perrors.ErrCodeConfigInvalid,
			fmt.Sprintf("tool %s: %v", spec.Name, err))
	}

	r.logger.Debug(ctx, "Running tool", "tool", spec.Name, "cmd", spec.String())

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return output, perrors.NewInternalError(perrors.ErrCodeInternalError,
				spec.Command+" interrupted", ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return output, perrors.NewToolError(spec.Command, nil,
				fmt.Errorf("not found in PATH, is it installed? %w", err))
		}
		return output, perrors.NewToolError(spec.Command, output, err)
	}

	return output, nil
}
