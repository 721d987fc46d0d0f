package tasks

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/conneroisu/blockpipe/internal/logging"
)

// SizeReporter logs the size of produced files in development builds.
type SizeReporter struct {
	logger  logging.Logger
	printer *message.Printer
	enabled bool
}

// NewSizeReporter creates a reporter. A disabled reporter does nothing.
func NewSizeReporter(logger logging.Logger, enabled bool) *SizeReporter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SizeReporter{
		logger:  logger.WithComponent("size"),
		printer: message.NewPrinter(language.English),
		enabled: enabled,
	}
}

// Format renders n bytes with digit grouping, e.g. "12,345 B" or "1.5 MB".
func (r *SizeReporter) Format(n int64) string {
	switch {
	case n < 10*1024:
		return r.printer.Sprintf("%d B", n)
	case n < 1024*1024:
		return r.printer.Sprintf("%.1f kB", float64(n)/1024)
	default:
		return r.printer.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}

// Report logs one line per existing file.
func (r *SizeReporter) Report(ctx context.Context, taskName string, paths ...string) {
	if r == nil || !r.enabled {
		return
	}
	// Casers keep state, so one per call.
	title := cases.Title(language.English).String(taskName)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		r.logger.Info(ctx, title+" size", "file", filepath.Base(p), "size", r.Format(info.Size()))
	}
}
