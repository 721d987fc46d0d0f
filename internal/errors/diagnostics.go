package errors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Diagnostic is one located problem reported by an external tool.
type Diagnostic struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
	Raw     string `json:"raw"`
}

// Location renders "file:line:col", leaving out unknown parts.
func (d Diagnostic) Location() string {
	switch {
	case d.File == "":
		return ""
	case d.Line == 0:
		return d.File
	case d.Column == 0:
		return fmt.Sprintf("%s:%d", d.File, d.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", d.File, d.Line, d.Column)
	}
}

type diagnosticPattern struct {
	regex *regexp.Regexp
	parse func(m []string) Diagnostic
}

// Sass prints the message on one line and the location on a later one,
// e.g. "  src/blocks/page/page.scss 3:5  root stylesheet".
var (
	sassLocation = regexp.MustCompile(`^\s*(\S+\.s[ac]ss) (\d+):(\d+)\s+`)
	sassMessage  = regexp.MustCompile(`^Error: (.+)$`)
)

var diagnosticPatterns = []diagnosticPattern{
	{
		// file:line:col: message
		regex: regexp.MustCompile(`^(\S+?):(\d+):(\d+):? (.+)$`),
		parse: func(m []string) Diagnostic {
			return Diagnostic{File: m[1], Line: atoi(m[2]), Column: atoi(m[3]), Message: m[4]}
		},
	},
	{
		// terser: "Parse error at file:line,col"
		regex: regexp.MustCompile(`^Parse error at (\S+?):(\d+),(\d+)$`),
		parse: func(m []string) Diagnostic {
			return Diagnostic{File: m[1], Line: atoi(m[2]), Column: atoi(m[3]), Message: "parse error"}
		},
	},
	{
		// pug: "Error: file:line:col"
		regex: regexp.MustCompile(`^Error: (\S+\.pug):(\d+):(\d+)$`),
		parse: func(m []string) Diagnostic {
			return Diagnostic{File: m[1], Line: atoi(m[2]), Column: atoi(m[3]), Message: "template error"}
		},
	},
}

// ParseDiagnostics extracts located problems from tool output. Lines that
// carry no location are ignored.
func ParseDiagnostics(output string) []Diagnostic {
	var out []Diagnostic
	lines := strings.Split(output, "\n")

	pendingSass := ""
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := sassLocation.FindStringSubmatch(line); m != nil && pendingSass != "" {
			out = append(out, Diagnostic{
				File:    m[1],
				Line:    atoi(m[2]),
				Column:  atoi(m[3]),
				Message: pendingSass,
				Raw:     trimmed,
			})
			pendingSass = ""
			continue
		}

		if d, ok := matchDiagnostic(trimmed); ok {
			out = append(out, d)
			continue
		}

		if m := sassMessage.FindStringSubmatch(trimmed); m != nil {
			pendingSass = m[1]
		}
	}
	return out
}

func matchDiagnostic(line string) (Diagnostic, bool) {
	for _, p := range diagnosticPatterns {
		if m := p.regex.FindStringSubmatch(line); m != nil {
			d := p.parse(m)
			d.Raw = line
			return d, true
		}
	}
	return Diagnostic{}, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
