// Package validation provides the safety checks applied to configuration
// values before they reach the filesystem or an external process.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var shellMetacharacters = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}

// ValidateArgument rejects shell metacharacters in a tool argument template.
// Tools are never run through a shell, so this guards against configs that
// were written assuming one.
func ValidateArgument(arg string) error {
	for _, char := range shellMetacharacters {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	return nil
}

// ValidateCommand validates an external tool name.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if strings.ContainsAny(command, " \t") {
		return fmt.Errorf("command %q must not contain whitespace; put arguments in args", command)
	}
	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command %q: %w", command, err)
	}

	return nil
}

// ValidateName validates a single path segment such as a block name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("name %q is not allowed", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name %q must not contain path separators", name)
	}

	return nil
}

// ValidateOutputDir refuses output directories whose cleaning would delete
// the working directory, the filesystem root or the sources.
func ValidateOutputDir(build, source string) error {
	cleanBuild := filepath.Clean(build)
	if cleanBuild == "." || cleanBuild == string(filepath.Separator) || cleanBuild == "" {
		return fmt.Errorf("output directory %q resolves to the working directory or root", build)
	}
	if strings.Contains(filepath.ToSlash(cleanBuild), "../") || cleanBuild == ".." {
		return fmt.Errorf("output directory %q escapes the project", build)
	}

	absBuild, err := filepath.Abs(cleanBuild)
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}
	absSource, err := filepath.Abs(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("resolving source directory: %w", err)
	}

	if absBuild == absSource {
		return fmt.Errorf("output directory %q is the source directory", build)
	}
	rel, err := filepath.Rel(absBuild, absSource)
	if err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("output directory %q contains the source directory", build)
	}

	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(absBuild, cwd); err == nil && !strings.HasPrefix(rel, "..") {
			return fmt.Errorf("output directory %q contains the working directory", build)
		}
	}

	return nil
}
