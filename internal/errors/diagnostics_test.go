package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []Diagnostic
	}{
		{
			name: "sass",
			output: "Error: expected \";\".\n" +
				"  ╷\n" +
				"3 │   color: red\n" +
				"  ╵\n" +
				"  src/blocks/page/page.scss 3:13  root stylesheet\n",
			want: []Diagnostic{{
				File: "src/blocks/page/page.scss", Line: 3, Column: 13,
				Message: `expected ";".`,
				Raw:     "src/blocks/page/page.scss 3:13  root stylesheet",
			}},
		},
		{
			name:   "pug",
			output: "Error: src/index.pug:4:3\n    2| html\n  > 4|   +missing()\nmissing is not a function\n",
			want: []Diagnostic{{
				File: "src/index.pug", Line: 4, Column: 3,
				Message: "template error",
				Raw:     "Error: src/index.pug:4:3",
			}},
		},
		{
			name:   "terser",
			output: "Parse error at /tmp/blockpipe-1.js:12,4\nSyntaxError: Unexpected token",
			want: []Diagnostic{{
				File: "/tmp/blockpipe-1.js", Line: 12, Column: 4,
				Message: "parse error",
				Raw:     "Parse error at /tmp/blockpipe-1.js:12,4",
			}},
		},
		{
			name:   "generic compiler style",
			output: "src/a.scss:1:2: unexpected token\nsrc/b.scss:7:1 missing brace",
			want: []Diagnostic{
				{File: "src/a.scss", Line: 1, Column: 2, Message: "unexpected token", Raw: "src/a.scss:1:2: unexpected token"},
				{File: "src/b.scss", Line: 7, Column: 1, Message: "missing brace", Raw: "src/b.scss:7:1 missing brace"},
			},
		},
		{
			name:   "no location",
			output: "something went wrong\nError: out of memory",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDiagnostics(tt.output))
		})
	}
}

func TestDiagnosticLocation(t *testing.T) {
	assert.Equal(t, "", Diagnostic{}.Location())
	assert.Equal(t, "a.scss", Diagnostic{File: "a.scss"}.Location())
	assert.Equal(t, "a.scss:3", Diagnostic{File: "a.scss", Line: 3}.Location())
	assert.Equal(t, "a.scss:3:4", Diagnostic{File: "a.scss", Line: 3, Column: 4}.Location())
}

func TestToolErrorCarriesLocation(t *testing.T) {
	out := []byte("Error: expected \";\".\n  src/page.scss 2:7  root stylesheet\n")
	err := NewToolError("sass", out, errors.New("exit status 65"))

	assert.Equal(t, "src/page.scss:2:7", err.Path)
	diags, ok := err.Context["diagnostics"].([]Diagnostic)
	require.True(t, ok)
	assert.Len(t, diags, 1)

	plain := NewToolError("sass", nil, errors.New("exit status 1"))
	assert.Empty(t, plain.Path)
	assert.Nil(t, plain.Context)
}
