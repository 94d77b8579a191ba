package process

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCommandLine(t *testing.T) {
	tests := map[string]struct {
		command string
		args    []string
		want    string
	}{
		"plain":              {command: "cmd.exe", args: []string{"/c", "dir"}, want: `cmd.exe /c dir`},
		"no args":            {command: "notepad", want: `notepad`},
		"space in command":   {command: `C:\Program Files\app.exe`, want: `"C:\Program Files\app.exe"`},
		"space in arg":       {command: "a", args: []string{"hello world"}, want: `a "hello world"`},
		"tab in arg":         {command: "a", args: []string{"x\ty"}, want: "a \"x\ty\""},
		"empty arg":          {command: "a", args: []string{""}, want: `a ""`},
		"embedded quote":     {command: "a", args: []string{`say "hi"`}, want: `a "say \"hi\""`},
		"bare quote":         {command: "a", args: []string{`"`}, want: `a "\""`},
		"backslash no quote": {command: "a", args: []string{`C:\dir\`}, want: `a C:\dir\`},
		"trailing backslash": {command: "a", args: []string{`C:\my dir\`}, want: `a "C:\my dir\\"`},
		"slashes then quote": {command: "a", args: []string{`x\"y z`}, want: `a "x\\\"y z"`},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := BuildCommandLine(test.command, test.args)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestBuildCommandLineTooLong(t *testing.T) {
	_, err := BuildCommandLine("a", []string{strings.Repeat("x", maxCommandLine)})
	assert.ErrorIs(t, err, ErrCommandLineTooLong)

	// Just under the limit, counting the separating space.
	_, err = BuildCommandLine("a", []string{strings.Repeat("x", maxCommandLine-4)})
	assert.NoError(t, err)
}
