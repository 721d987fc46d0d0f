package config

import (
	"fmt"
	"strings"

	"github.com/conneroisu/blockpipe/internal/errors"
)

// Mode selects development or production output.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode interprets the value of BLOCKPIPE_ENV. An empty value means
// development.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", "development":
		return ModeDevelopment, nil
	case "prod", "production":
		return ModeProduction, nil
	default:
		return "", errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("%s=%q: expected dev or production", EnvVar, s))
	}
}

// IsProduction reports whether minified output without source maps is wanted.
func (m Mode) IsProduction() bool { return m == ModeProduction }

// SizeReports reports whether per-file size reports are logged.
func (m Mode) SizeReports() bool { return !m.IsProduction() }
